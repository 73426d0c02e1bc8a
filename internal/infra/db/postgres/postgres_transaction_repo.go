package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"seat-marketplace/internal/domain"
	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionColumns = `id, buyer_id, seller_id, subscription_id, purchase_id, amount_minor, fee_minor, seller_minor,
       currency, payment_method, status, payment_provider, payment_id, failure_reason,
       completed_at, refunded_at, created_at, updated_at`

func (r *transactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (id) DO UPDATE SET
  status=$11, payment_provider=$12, payment_id=$13, failure_reason=$14,
  completed_at=$15, refunded_at=$16, updated_at=$18;`

	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.BuyerID, t.SellerID, t.SubscriptionID, t.PurchaseID,
		t.Amount.Minor(), t.PlatformFee.Minor(), t.SellerAmount.Minor(), t.Amount.Currency(),
		string(t.PaymentMethod), string(t.Status), t.PaymentProvider, t.PaymentID, t.FailureReason,
		t.CompletedAt, t.RefundedAt, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	return r.queryOne(ctx, tx, `SELECT `+transactionColumns+` FROM transactions WHERE id=$1`, id)
}

func (r *transactionRepo) FindByPurchaseID(ctx context.Context, tx repository.Tx, purchaseID string) (*model.Transaction, error) {
	return r.queryOne(ctx, tx, `SELECT `+transactionColumns+` FROM transactions WHERE purchase_id=$1`, purchaseID)
}

func (r *transactionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...any) (*model.Transaction, error) {
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanTransaction(row)
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		t                        model.Transaction
		amount, fee, sellerShare int64
		currency, method, status string
	)
	if err := row.Scan(&t.ID, &t.BuyerID, &t.SellerID, &t.SubscriptionID, &t.PurchaseID,
		&amount, &fee, &sellerShare, &currency, &method, &status, &t.PaymentProvider,
		&t.PaymentID, &t.FailureReason, &t.CompletedAt, &t.RefundedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	var err error
	if t.Amount, err = model.NewMoney(amount, currency); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	t.PlatformFee, _ = model.NewMoney(fee, currency)
	t.SellerAmount, _ = model.NewMoney(sellerShare, currency)
	t.PaymentMethod = model.PaymentMethod(method)
	t.Status = model.TransactionStatus(status)
	return &t, nil
}
