package service

import (
	"context"
	"time"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/repository"
	"go.uber.org/zap"
)

// SubscriptionService answers access checks. Expiry is detected on read:
// a record whose end date has passed is flipped inactive when first seen.
type SubscriptionService struct {
	repo   *repository.SubscriptionRepository
	policy *AdminPolicy
	logger *zap.Logger
	now    func() time.Time
}

func NewSubscriptionService(repo *repository.SubscriptionRepository, policy *AdminPolicy, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:   repo,
		policy: policy,
		logger: logger.Named("subscription"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Status returns the user's subscription and whether it grants access now.
func (s *SubscriptionService) Status(ctx context.Context, userID string) (*domain.SubscriptionStatus, error) {
	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load subscription", err)
	}
	if sub == nil {
		return &domain.SubscriptionStatus{}, nil
	}

	if !sub.IsActiveAt(s.now()) {
		if sub.Active {
			if err := s.repo.Deactivate(ctx, userID); err != nil {
				return nil, domain.ErrInternal("failed to expire subscription", err)
			}
			s.logger.Info("subscription expired", zap.String("user_id", userID), zap.Time("end_date", sub.EndDate))
			sub.Active = false
		}
		return &domain.SubscriptionStatus{Subscription: sub}, nil
	}
	return &domain.SubscriptionStatus{Active: sub.Active, Subscription: sub}, nil
}

// HasAccess reports whether the user may play content. Admins always can.
func (s *SubscriptionService) HasAccess(ctx context.Context, userID, email string) (bool, error) {
	isAdmin, err := s.policy.IsAdmin(ctx, userID, email)
	if err != nil {
		return false, domain.ErrInternal("failed to check permissions", err)
	}
	if isAdmin {
		return true, nil
	}
	status, err := s.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return status.Active, nil
}
