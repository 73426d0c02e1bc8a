package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"seat-marketplace/internal/domain/ports/repository"
	"seat-marketplace/internal/infra/metrics"
	"seat-marketplace/internal/infra/redis"
)

const (
	TokenPurgeJobName = "access_token_purge"
	tokenPurgeLockKey = TokenPurgeJobName
)

type spentTokenStore interface {
	DeleteSpent(ctx context.Context, tx repository.Tx, before time.Time) (int64, error)
}

// TokenPurge deletes access tokens that were used or expired longer than the retention ago.
// With a locker, only one replica purges per run.
type TokenPurge struct {
	tokens    spentTokenStore
	locker    redis.Locker
	retention time.Duration
	lockTTL   time.Duration
	now       func() time.Time
	log       *zerolog.Logger
}

func NewTokenPurge(tokens spentTokenStore, locker redis.Locker, retention time.Duration, logger *zerolog.Logger) *TokenPurge {
	l := logger.With().Str("component", "token_purge").Logger()
	return &TokenPurge{
		tokens:    tokens,
		locker:    locker,
		retention: retention,
		lockTTL:   5 * time.Minute,
		now:       time.Now,
		log:       &l,
	}
}

func (p *TokenPurge) Run(ctx context.Context) error {
	if p.locker != nil {
		token, err := p.locker.TryLock(ctx, tokenPurgeLockKey, p.lockTTL)
		if errors.Is(err, redis.ErrLockHeld) {
			return ErrSkipped
		}
		if err != nil {
			return err
		}
		defer func() {
			if err := p.locker.Unlock(context.Background(), tokenPurgeLockKey, token); err != nil {
				p.log.Warn().Err(err).Msg("release purge lock")
			}
		}()
	}

	cutoff := p.now().Add(-p.retention)
	n, err := p.tokens.DeleteSpent(ctx, repository.NoTX, cutoff)
	if err != nil {
		return err
	}
	metrics.AddAccessTokensPurged(n)
	if n > 0 {
		p.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("spent access tokens purged")
	}
	return nil
}
