package repository

import (
	"context"
)

// -----------------------------
// Notifications Log
// -----------------------------

type NotificationLogRepository interface {
	// Save records that a notification of kind about relatedID was sent to userID.
	Save(ctx context.Context, tx Tx, userID, kind, relatedID string) error
	// Exists checks if that notification has already been sent.
	Exists(ctx context.Context, tx Tx, userID, kind, relatedID string) (bool, error)
}
