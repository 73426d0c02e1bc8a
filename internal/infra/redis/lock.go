package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrLockHeld is returned when another holder owns the lock.
	ErrLockHeld = errors.New("lock is held by another owner")
	// ErrLockLost is returned by Unlock when the lock expired or changed hands.
	ErrLockLost = errors.New("lock expired before release")
)

const lockPrefix = "lock:"

// Locker is a single-attempt mutual exclusion lock shared by every replica.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, name, token string) error
}

type RedisLocker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli}
}

// TryLock makes one attempt; the returned token must be passed to Unlock.
func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (string, error) {
	token := ulid.Make().String()
	ok, err := l.cli.SetNX(ctx, lockPrefix+name, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// compare-and-delete so a holder never releases a lock it no longer owns
var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *RedisLocker) Unlock(ctx context.Context, name, token string) error {
	n, err := luaUnlock.Run(ctx, l.cli, []string{lockPrefix + name}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}
