package repository

import (
	"context"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/store"
	"github.com/pkg/errors"
)

// SubscriptionRepository stores the single subscription record per user
// at subscriptions/{userId}.
type SubscriptionRepository struct {
	store store.Store
}

func NewSubscriptionRepository(s store.Store) *SubscriptionRepository {
	return &SubscriptionRepository{store: s}
}

// Save overwrites the user's subscription.
func (r *SubscriptionRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	if err := r.store.Set(ctx, nodePath(pathSubscriptions, sub.UserID), sub); err != nil {
		return errors.Wrap(err, "Cannot save subscription")
	}
	return nil
}

// FindByUserID returns nil when the user never subscribed.
func (r *SubscriptionRepository) FindByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	found, err := r.store.Get(ctx, nodePath(pathSubscriptions, userID), &sub)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot find subscription")
	}
	if !found {
		return nil, nil
	}
	if sub.UserID == "" {
		sub.UserID = userID
	}
	return &sub, nil
}

// Deactivate clears the active flag without touching the other fields.
func (r *SubscriptionRepository) Deactivate(ctx context.Context, userID string) error {
	err := r.store.Update(ctx, nodePath(pathSubscriptions, userID), map[string]interface{}{
		"active": false,
	})
	if err != nil {
		return errors.Wrap(err, "Cannot deactivate subscription")
	}
	return nil
}

// ListAll returns every subscription keyed by user id.
func (r *SubscriptionRepository) ListAll(ctx context.Context) (map[string]domain.Subscription, error) {
	children, err := r.store.Children(ctx, pathSubscriptions)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot list subscriptions")
	}
	subs, err := store.DecodeChildren[domain.Subscription](children)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot decode subscriptions")
	}
	return unescapeKeys(subs), nil
}
