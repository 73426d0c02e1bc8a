package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"seat-marketplace/internal/domain"
	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, group_id, platform_id, status, slots_total, slots_available, price_minor, currency, access_instructions_ref, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  status=$4, slots_total=$5, slots_available=$6, price_minor=$7, currency=$8,
  access_instructions_ref=$9, updated_at=$11;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.GroupID, s.PlatformID, string(s.Status), s.SlotsTotal, s.SlotsAvailable,
		s.PricePerSlot.Minor(), s.PricePerSlot.Currency(), s.AccessInstructionsRef, s.CreatedAt, s.UpdatedAt)
	return err
}

// FindByID locks the row when called inside a transaction.
func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1`
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var (
		s        model.Subscription
		status   string
		minor    int64
		currency string
	)
	if err := row.Scan(&s.ID, &s.GroupID, &s.PlatformID, &status, &s.SlotsTotal, &s.SlotsAvailable,
		&minor, &currency, &s.AccessInstructionsRef, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	price, err := model.NewMoney(minor, currency)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	s.PricePerSlot = price
	return &s, nil
}
