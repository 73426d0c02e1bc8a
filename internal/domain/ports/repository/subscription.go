package repository

import (
	"context"

	"seat-marketplace/internal/domain/model"
)

// SubscriptionRepository persists listed subscriptions. FindByID locks the row when tx is set.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
}
