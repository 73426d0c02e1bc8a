package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/repository"
	"seat-marketplace/internal/infra/metrics"
	red "seat-marketplace/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
}

// NewUserRepoCacheDecorator caches users by id and by Telegram chat. Reads inside
// a transaction always go to the database.
func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration) repository.UserRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &userRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func userIDKey(id string) string      { return "user:id:" + id }
func userChatKey(chatID int64) string { return fmt.Sprintf("user:tgid:%d", chatID) }

// Save drops every key of the user, including the chat it is moving away from.
func (d *userRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	keys := []string{userIDKey(u.ID), userChatKey(u.TelegramID)}
	if prev, err := d.inner.FindByID(ctx, tx, u.ID); err == nil && prev.TelegramID != u.TelegramID {
		keys = append(keys, userChatKey(prev.TelegramID))
	}
	if err := d.inner.Save(ctx, tx, u); err != nil {
		return err
	}
	_ = d.cache.Del(ctx, keys...)
	return nil
}

func (d *userRepoCacheDecorator) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	key := userChatKey(tgID)
	if tx == nil {
		if user, ok := d.lookup(ctx, key); ok {
			return user, nil
		}
	}

	user, err := d.inner.FindByTelegramID(ctx, tx, tgID)
	if err != nil {
		return nil, err
	}
	d.store(ctx, user)
	return user, nil
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	key := userIDKey(id)
	if tx == nil {
		if user, ok := d.lookup(ctx, key); ok {
			return user, nil
		}
	}

	user, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, user)
	return user, nil
}

func (d *userRepoCacheDecorator) lookup(ctx context.Context, key string) (*model.User, bool) {
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.IncCacheRequest("user", "hit")
			return &user, true
		}
	}
	metrics.IncCacheRequest("user", "miss")
	return nil, false
}

// store warms both keys so either lookup hits next time.
func (d *userRepoCacheDecorator) store(ctx context.Context, user *model.User) {
	if user == nil {
		return
	}
	bytes, err := json.Marshal(user)
	if err != nil {
		return
	}
	_ = d.cache.Set(ctx, userIDKey(user.ID), bytes, d.ttl)
	if user.TelegramID > 0 {
		_ = d.cache.Set(ctx, userChatKey(user.TelegramID), bytes, d.ttl)
	}
}
