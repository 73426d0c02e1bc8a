package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/repository"
)

var _ repository.PurchaseRepository = (*purchaseRepo)(nil)

type purchaseRepo struct {
	pool *pgxpool.Pool
}

func NewPurchaseRepo(pool *pgxpool.Pool) *purchaseRepo {
	return &purchaseRepo{pool: pool}
}

func (r *purchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	const q = `
INSERT INTO purchases (
  id, user_id, subscription_id, status, access_provided, access_provided_at,
  access_confirmed, access_confirmed_at, transaction_id, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  status=$4, access_provided=$5, access_provided_at=$6,
  access_confirmed=$7, access_confirmed_at=$8, transaction_id=$9, updated_at=$11;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.SubscriptionID, string(p.Status), p.AccessProvided, p.AccessProvidedAt,
		p.AccessConfirmed, p.AccessConfirmedAt, p.TransactionID, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *purchaseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Purchase, error) {
	q := `
SELECT id, user_id, subscription_id, status, access_provided, access_provided_at,
       access_confirmed, access_confirmed_at, transaction_id, created_at, updated_at
  FROM purchases WHERE id=$1`
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var (
		p      model.Purchase
		status string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.SubscriptionID, &status, &p.AccessProvided, &p.AccessProvidedAt,
		&p.AccessConfirmed, &p.AccessConfirmedAt, &p.TransactionID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	p.Status = model.PurchaseStatus(status)
	return &p, nil
}
