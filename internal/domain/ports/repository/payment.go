package repository

import (
	"context"
	"time"

	"seat-marketplace/internal/domain/model"
)

// -----------------------------
// Purchases
// -----------------------------

type PurchaseRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Purchase) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Purchase, error)
}

// -----------------------------
// Transactions
// -----------------------------

type TransactionRepository interface {
	Save(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Transaction, error)
	FindByPurchaseID(ctx context.Context, tx Tx, purchaseID string) (*model.Transaction, error)
}

// -----------------------------
// Access tokens
// -----------------------------

type AccessTokenRepository interface {
	Save(ctx context.Context, tx Tx, t *model.AccessToken) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.AccessToken, error)
	FindByPurchaseAndHash(ctx context.Context, tx Tx, purchaseID, tokenHash string) (*model.AccessToken, error)
	// DeleteSpent removes tokens that were used or expired before the cutoff.
	DeleteSpent(ctx context.Context, tx Tx, before time.Time) (int64, error)
}
