package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/repository"
	"seat-marketplace/internal/infra/metrics"
	red "seat-marketplace/internal/infra/redis"
)

var _ repository.SubscriptionRepository = (*subscriptionRepoCacheDecorator)(nil)

// subscriptionRepoCacheDecorator serves non-transactional reads from Redis.
// Reads inside a transaction always go to the database so the row lock is taken.
type subscriptionRepoCacheDecorator struct {
	inner repository.SubscriptionRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewSubscriptionRepoCacheDecorator(inner repository.SubscriptionRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.SubscriptionRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	l := logger.With().Str("component", "subscription_cache").Logger()
	return &subscriptionRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func subscriptionKey(id string) string { return "subscription:id:" + id }

// cachedSubscription carries the fields Subscription keeps unexported or JSON-unfriendly.
type cachedSubscription struct {
	ID                    string      `json:"id"`
	GroupID               string      `json:"group_id"`
	PlatformID            string      `json:"platform_id"`
	Status                string      `json:"status"`
	SlotsTotal            int         `json:"slots_total"`
	SlotsAvailable        int         `json:"slots_available"`
	PricePerSlot          model.Money `json:"price_per_slot"`
	AccessInstructionsRef *string     `json:"access_instructions_ref,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

func (d *subscriptionRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if err := d.inner.Save(ctx, tx, s); err != nil {
		return err
	}
	if err := d.cache.Del(ctx, subscriptionKey(s.ID)); err != nil {
		d.log.Warn().Err(err).Str("subscription_id", s.ID).Msg("cache invalidation failed")
	}
	return nil
}

func (d *subscriptionRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	if tx != nil {
		metrics.IncCacheRequest("subscription", "bypass")
		return d.inner.FindByID(ctx, tx, id)
	}

	key := subscriptionKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var c cachedSubscription
		if json.Unmarshal([]byte(val), &c) == nil {
			metrics.IncCacheRequest("subscription", "hit")
			return c.toModel(), nil
		}
	} else if !red.IsMiss(err) {
		d.log.Warn().Err(err).Str("subscription_id", id).Msg("cache read failed")
	}

	metrics.IncCacheRequest("subscription", "miss")
	s, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(fromSubscription(s)); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return s, nil
}

func fromSubscription(s *model.Subscription) cachedSubscription {
	return cachedSubscription{
		ID: s.ID, GroupID: s.GroupID, PlatformID: s.PlatformID, Status: string(s.Status),
		SlotsTotal: s.SlotsTotal, SlotsAvailable: s.SlotsAvailable, PricePerSlot: s.PricePerSlot,
		AccessInstructionsRef: s.AccessInstructionsRef, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}
}

func (c cachedSubscription) toModel() *model.Subscription {
	return &model.Subscription{
		ID: c.ID, GroupID: c.GroupID, PlatformID: c.PlatformID, Status: model.SubscriptionStatus(c.Status),
		SlotsTotal: c.SlotsTotal, SlotsAvailable: c.SlotsAvailable, PricePerSlot: c.PricePerSlot,
		AccessInstructionsRef: c.AccessInstructionsRef, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}
