package adapter

import (
	"context"

	"seat-marketplace/internal/domain/model"
)

// EventPublisher receives domain events after the transaction that produced them commits.
type EventPublisher interface {
	PublishAll(ctx context.Context, events []model.Event)
}
