package service

import (
	"context"
	"sort"
	"time"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/repository"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// UserService backs the admin users page.
type UserService struct {
	users    *repository.UserRepository
	subs     *repository.SubscriptionRepository
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

func NewUserService(users *repository.UserRepository, subs *repository.SubscriptionRepository, logger *zap.Logger) *UserService {
	return &UserService{
		users:    users,
		subs:     subs,
		validate: validator.New(),
		logger:   logger.Named("users"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListWithSubscriptions joins every user with their subscription record,
// most recently seen first.
func (s *UserService) ListWithSubscriptions(ctx context.Context) ([]domain.AdminUserView, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list users", err)
	}
	subs, err := s.subs.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list subscriptions", err)
	}

	now := s.now()
	views := make([]domain.AdminUserView, 0, len(users))
	for id, u := range users {
		view := domain.AdminUserView{
			ID:          id,
			Email:       firstNonEmpty(u.Email, "N/A"),
			DisplayName: firstNonEmpty(u.DisplayName, "User"),
			Role:        firstNonEmpty(u.Role, domain.RoleUser),
			CreatedAt:   u.CreatedAt,
			LastLogin:   u.LastLogin,
		}
		if sub, ok := subs[id]; ok {
			view.Subscription = summarize(&sub, now)
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		return lastSeen(views[i]).After(lastSeen(views[j]))
	})
	return views, nil
}

func summarize(sub *domain.Subscription, now time.Time) *domain.SubscriptionSummary {
	summary := &domain.SubscriptionSummary{
		Plan:     domain.PlanName(sub.PlanID),
		IsActive: sub.Active && sub.IsActiveAt(now),
	}
	if !sub.EndDate.IsZero() {
		end := sub.EndDate
		summary.ExpiresAt = &end
	}
	return summary
}

func lastSeen(v domain.AdminUserView) time.Time {
	if v.LastLogin != nil {
		return *v.LastLogin
	}
	return v.CreatedAt
}

// SetRole changes a user's stored role.
func (s *UserService) SetRole(ctx context.Context, id string, req *domain.UpdateRoleRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return domain.ErrValidation(formatValidationErrors(err))
	}

	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return domain.ErrInternal("failed to find user", err)
	}
	if u == nil {
		return domain.ErrNotFound("user not found")
	}
	if err := s.users.SetRole(ctx, id, req.Role); err != nil {
		return domain.ErrInternal("failed to update role", err)
	}
	s.logger.Info("user role changed", zap.String("user_id", id), zap.String("role", req.Role))
	return nil
}
