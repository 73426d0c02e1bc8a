package redis

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"seat-marketplace/internal/domain"
)

const linkCodePrefix = "tglink:"

// LinkCodes issues short one-time codes that tie a Telegram chat to a marketplace
// user. The code travels in a t.me deep link, so it stays well under 64 characters.
type LinkCodes struct {
	client RedisClient
	ttl    time.Duration
}

func NewLinkCodes(client RedisClient, ttl time.Duration) *LinkCodes {
	return &LinkCodes{client: client, ttl: ttl}
}

func (l *LinkCodes) Issue(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", domain.Invalid("user_id", "empty")
	}
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("link code: %w", err)
	}
	code := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b))
	if err := l.client.Set(ctx, linkCodePrefix+code, userID, l.ttl); err != nil {
		return "", err
	}
	return code, nil
}

// Redeem returns the user the code was issued for and deletes it.
// Unknown or expired codes yield domain.ErrNotFound.
func (l *LinkCodes) Redeem(ctx context.Context, code string) (string, error) {
	key := linkCodePrefix + strings.ToLower(strings.TrimSpace(code))
	userID, err := l.client.Get(ctx, key)
	if err != nil {
		if IsMiss(err) {
			return "", domain.NotFound("link_code", code)
		}
		return "", err
	}
	if err := l.client.Del(ctx, key); err != nil {
		return "", err
	}
	return userID, nil
}
