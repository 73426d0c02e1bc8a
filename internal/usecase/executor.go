package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"seat-marketplace/internal/domain"
	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/adapter"
	"seat-marketplace/internal/domain/ports/repository"
	"seat-marketplace/internal/infra/logging"
	"seat-marketplace/internal/infra/metrics"
)

var tracer = otel.Tracer("seat-marketplace/usecase")

// Stores groups the storage ports shared by the use cases.
type Stores struct {
	TxManager     repository.TransactionManager
	Subscriptions repository.SubscriptionRepository
	Purchases     repository.PurchaseRepository
	Transactions  repository.TransactionRepository
	AccessTokens  repository.AccessTokenRepository
	Disputes      repository.DisputeRepository
	Groups        repository.GroupRepository
}

// RetryPolicy bounds the retry of a storage transaction that hit a serialization conflict.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 20 * time.Millisecond
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = 10 * p.BaseDelay
	}
	return p
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.MaxInterval = p.MaxDelay
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1)), ctx)
}

// unitOfWork mutates aggregates inside one storage transaction and returns the
// domain events to publish once it commits.
type unitOfWork func(ctx context.Context, tx repository.Tx) ([]model.Event, error)

// txExecutor runs units of work as begin -> work -> commit -> publish.
type txExecutor struct {
	tm        repository.TransactionManager
	publisher adapter.EventPublisher
	policy    RetryPolicy
	log       *zerolog.Logger
}

func newTxExecutor(tm repository.TransactionManager, publisher adapter.EventPublisher, policy RetryPolicy, log *zerolog.Logger) *txExecutor {
	return &txExecutor{tm: tm, publisher: publisher, policy: policy.withDefaults(), log: log}
}

// run executes work under serializable isolation. Only domain.ErrConflict is retried;
// every other error aborts immediately and is returned unchanged. Events are
// published once, after the attempt that committed.
func (e *txExecutor) run(ctx context.Context, op string, work unitOfWork, attrs ...attribute.KeyValue) error {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	defer span.End()

	log := logging.With(ctx, e.log)
	start := time.Now()
	attempt := 0
	var (
		events   []model.Event
		conflict error
	)

	err := backoff.RetryNotify(func() error {
		attempt++
		events = nil
		log.Debug().Str("op", op).Int("attempt", attempt).Msg("begin")
		err := e.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ctx context.Context, tx repository.Tx) error {
			evs, err := work(ctx, tx)
			if err != nil {
				return err
			}
			events = evs
			return nil
		})
		if err != nil && !errors.Is(err, domain.ErrConflict) {
			return backoff.Permanent(err)
		}
		conflict = err
		return err
	}, e.policy.backOff(ctx), func(err error, next time.Duration) {
		metrics.IncSagaRetry(op)
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("backoff", next).Msg("storage conflict, retrying")
	})
	if err != nil && conflict != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// a context that ends between attempts reports the conflict, not the cancellation
		err = conflict
	}

	metrics.ObserveSagaOperation(op, resultLabel(err), time.Since(start))
	span.SetAttributes(attribute.Int("attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, resultLabel(err))
		log.Debug().Err(err).Str("op", op).Msg("rolled back")
		return err
	}

	log.Info().Str("op", op).Int("events", len(events)).Msg("committed")
	if len(events) > 0 && e.publisher != nil {
		e.publisher.PublishAll(ctx, events)
	}
	return nil
}

// resultLabel buckets an error by kind for metrics and span status.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrBusinessRule):
		return "rule"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrToken):
		return "token"
	case errors.Is(err, domain.ErrPayment):
		return "payment"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

// notFoundAs converts a bare repository ErrNotFound into a NotFoundError naming the entity.
func notFoundAs(err error, entity, id string) error {
	if errors.Is(err, domain.ErrNotFound) {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return err
		}
		return domain.NotFound(entity, id)
	}
	return err
}

func newID() string { return uuid.NewString() }

func clockOrDefault(now func() time.Time) func() time.Time {
	if now != nil {
		return now
	}
	return func() time.Time { return time.Now().UTC() }
}
