package worker

import (
	"context"

	"github.com/rs/zerolog"

	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/adapter"
)

var _ adapter.EventPublisher = (*AsyncPublisher)(nil)

// AsyncPublisher hands committed events to the pool so slow notification
// channels never hold up the request that produced them. When the pool
// cannot take the batch it is published inline.
type AsyncPublisher struct {
	pool *Pool
	next adapter.EventPublisher
	log  *zerolog.Logger
}

func NewAsyncPublisher(pool *Pool, next adapter.EventPublisher, logger *zerolog.Logger) *AsyncPublisher {
	l := logger.With().Str("component", "async_publisher").Logger()
	return &AsyncPublisher{pool: pool, next: next, log: &l}
}

func (a *AsyncPublisher) PublishAll(ctx context.Context, events []model.Event) {
	if len(events) == 0 {
		return
	}
	batch := append([]model.Event(nil), events...)
	err := a.pool.Submit(func(ctx context.Context) error {
		a.next.PublishAll(ctx, batch)
		return nil
	})
	if err != nil {
		a.log.Warn().Err(err).Int("events", len(batch)).Msg("publishing inline")
		a.next.PublishAll(context.WithoutCancel(ctx), batch)
	}
}
