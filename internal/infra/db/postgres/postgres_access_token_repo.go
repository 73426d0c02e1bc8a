package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/repository"
)

var _ repository.AccessTokenRepository = (*accessTokenRepo)(nil)

type accessTokenRepo struct {
	pool *pgxpool.Pool
}

func NewAccessTokenRepo(pool *pgxpool.Pool) *accessTokenRepo {
	return &accessTokenRepo{pool: pool}
}

const accessTokenColumns = `id, purchase_id, token_hash, expires_at, used, used_at, ip_address, user_agent, created_at`

func (r *accessTokenRepo) Save(ctx context.Context, tx repository.Tx, t *model.AccessToken) error {
	const q = `
INSERT INTO access_tokens (` + accessTokenColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  used=$5, used_at=$6, ip_address=$7, user_agent=$8;`

	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.PurchaseID, t.TokenHash, t.ExpiresAt, t.Used, t.UsedAt, t.IPAddress, t.UserAgent, t.CreatedAt)
	return err
}

func (r *accessTokenRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AccessToken, error) {
	return r.queryOne(ctx, tx, `SELECT `+accessTokenColumns+` FROM access_tokens WHERE id=$1`, id)
}

func (r *accessTokenRepo) FindByPurchaseAndHash(ctx context.Context, tx repository.Tx, purchaseID, tokenHash string) (*model.AccessToken, error) {
	return r.queryOne(ctx, tx, `SELECT `+accessTokenColumns+` FROM access_tokens WHERE purchase_id=$1 AND token_hash=$2`, purchaseID, tokenHash)
}

// DeleteSpent removes tokens that were used before the cutoff or expired before it.
func (r *accessTokenRepo) DeleteSpent(ctx context.Context, tx repository.Tx, before time.Time) (int64, error) {
	const q = `
DELETE FROM access_tokens
 WHERE expires_at < $1
    OR (used AND used_at < $1);`
	tag, err := execSQL(ctx, r.pool, tx, q, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *accessTokenRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...any) (*model.AccessToken, error) {
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	var t model.AccessToken
	if err := row.Scan(&t.ID, &t.PurchaseID, &t.TokenHash, &t.ExpiresAt, &t.Used, &t.UsedAt,
		&t.IPAddress, &t.UserAgent, &t.CreatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &t, nil
}
