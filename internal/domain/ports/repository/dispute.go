package repository

import (
	"context"

	"seat-marketplace/internal/domain/model"
)

type DisputeRepository interface {
	Save(ctx context.Context, tx Tx, d *model.Dispute) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Dispute, error)
	// FindOpenByPurchase returns the open dispute raised about purchaseID, or ErrNotFound.
	FindOpenByPurchase(ctx context.Context, tx Tx, purchaseID string) (*model.Dispute, error)
	// CountOpenByReporter counts open disputes raised by reporterID against purchases of subscriptionID.
	CountOpenByReporter(ctx context.Context, tx Tx, reporterID, subscriptionID string) (int, error)
}
