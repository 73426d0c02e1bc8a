package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"seat-marketplace/internal/domain/ports/repository"
)

var _ repository.NotificationLogRepository = (*notificationLogRepo)(nil)

type notificationLogRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationLogRepo(pool *pgxpool.Pool) repository.NotificationLogRepository {
	return &notificationLogRepo{pool: pool}
}

func (r *notificationLogRepo) Save(ctx context.Context, tx repository.Tx, userID, kind, relatedID string) error {
	// The UNIQUE (user_id, kind, related_id) constraint makes a repeated save a no-op.
	const q = `
INSERT INTO notification_log (id, user_id, kind, related_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, kind, related_id) DO NOTHING`
	_, err := execSQL(ctx, r.pool, tx, q, uuid.NewString(), userID, kind, relatedID)
	return err
}

func (r *notificationLogRepo) Exists(ctx context.Context, tx repository.Tx, userID, kind, relatedID string) (bool, error) {
	const q = `
SELECT EXISTS(
    SELECT 1 FROM notification_log
    WHERE user_id = $1 AND kind = $2 AND related_id = $3
)`
	row, err := pickRow(ctx, r.pool, tx, q, userID, kind, relatedID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, scanErr(err)
	}
	return exists, nil
}
