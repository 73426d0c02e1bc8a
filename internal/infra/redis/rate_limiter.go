package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter: the first hit in a window sets the expiry.
type RateLimiter struct {
	client RedisClient
	limit  int64
	window time.Duration
}

func NewRateLimiter(client RedisClient, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, r.window)
		if err != nil {
			return false, err
		}
	}

	if count > r.limit {
		return false, nil
	}

	return true, nil
}

// AccessCheckKey scopes unauthenticated access checks to one purchase and client address.
func AccessCheckKey(purchaseID, clientIP string) string {
	return fmt.Sprintf("rate_limit:access:%s:%s", purchaseID, clientIP)
}
