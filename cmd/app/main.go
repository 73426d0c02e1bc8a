// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"seat-marketplace/internal/config"
	"seat-marketplace/internal/domain/ports/adapter"
	"seat-marketplace/internal/infra/api"
	pg "seat-marketplace/internal/infra/db/postgres"
	"seat-marketplace/internal/infra/i18n"
	"seat-marketplace/internal/infra/logging"
	"seat-marketplace/internal/infra/metrics"
	"seat-marketplace/internal/infra/notify"
	"seat-marketplace/internal/infra/payment"
	red "seat-marketplace/internal/infra/redis"
	"seat-marketplace/internal/infra/sched"
	"seat-marketplace/internal/infra/security"
	"seat-marketplace/internal/infra/telegram"
	"seat-marketplace/internal/infra/tracing"
	"seat-marketplace/internal/infra/worker"
	"seat-marketplace/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

const (
	devEncryptionKey = "0123456789abcdef0123456789abcdef"
	shutdownTimeout  = 10 * time.Second
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service stopped with error")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	if cfg.Runtime.Dev {
		logger.Warn().Msg("development mode enabled")
	}

	// ---- Tracing ----
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn().Err(err).Msg("flush traces")
		}
	}()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	// ---- Security ----
	encKey := cfg.Security.EncryptionKey
	if encKey == "" && cfg.Runtime.Dev {
		logger.Warn().Msg("security.encryption_key not set; using the development key (INSECURE)")
		encKey = devEncryptionKey
	}
	vault, err := security.NewEncryptionService(encKey)
	if err != nil {
		return fmt.Errorf("encryption: %w", err)
	}
	hasher, err := security.NewHMACTokenHasher(cfg.Access.TokenHashKey)
	if err != nil {
		return fmt.Errorf("token hasher: %w", err)
	}

	// ---- Repositories ----
	users := pg.NewUserRepoCacheDecorator(pg.NewPostgresUserRepo(pool), redisClient, cfg.Redis.TTL)
	stores := usecase.Stores{
		TxManager:     pg.NewTxManager(pool, logger),
		Subscriptions: pg.NewSubscriptionRepoCacheDecorator(pg.NewSubscriptionRepo(pool), redisClient, cfg.Redis.TTL, logger),
		Purchases:     pg.NewPurchaseRepo(pool),
		Transactions:  pg.NewTransactionRepo(pool),
		AccessTokens:  pg.NewAccessTokenRepo(pool),
		Disputes:      pg.NewDisputeRepo(pool),
		Groups:        pg.NewGroupRepo(pool),
	}
	userUC := usecase.NewUserUseCase(users, stores.TxManager, logger)

	g, gctx := errgroup.WithContext(ctx)

	// ---- Notifications ----
	var (
		sink        adapter.NotificationSink = notify.NewLogSink(logger)
		linkCodes   api.LinkCodeIssuer
		botUsername string
	)
	if cfg.Telegram.Enabled {
		codes := red.NewLinkCodes(redisClient, cfg.Telegram.LinkCodeTTL)
		bot, err := telegram.NewBot(cfg.Telegram, userUC, codes, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		sink = notify.NewTelegramSink(users, bot, logger)
		linkCodes = codes
		botUsername = bot.Username()
		g.Go(func() error { return bot.Run(gctx) })
	}
	msgs, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Notify.Language)
	if err != nil {
		return fmt.Errorf("notification messages: %w", err)
	}
	workers := worker.NewPool(cfg.Notify.Workers, cfg.Notify.QueueSize, logger)
	g.Go(func() error { return workers.Run(gctx) })
	notifier := worker.NewAsyncPublisher(workers,
		usecase.NewEventNotifier(sink, pg.NewNotificationLogRepo(pool), msgs, logger), logger)

	// ---- Use cases ----
	retry := usecase.RetryPolicy{
		MaxAttempts: cfg.Saga.MaxAttempts,
		BaseDelay:   cfg.Saga.BackoffBase,
		MaxDelay:    cfg.Saga.BackoffMax,
	}
	gateway := payment.WithTracing(payment.NewSandboxGateway(cfg.Payment.CheckoutURL))
	saga := usecase.NewPurchaseSaga(stores, gateway, notifier, usecase.SagaConfig{
		PlatformFeePercent: cfg.Saga.PlatformFeePercent,
		Currency:           cfg.Saga.Currency,
		CallbackURL:        cfg.HTTP.CallbackURL,
		Retry:              retry,
	}, logger)
	access := usecase.NewAccessGateway(stores, vault, hasher, notifier, usecase.AccessConfig{
		TokenTTL:       time.Duration(cfg.Access.TokenTTLMinutes) * time.Minute,
		ResolutionDays: cfg.Dispute.ResolutionDays,
		Retry:          retry,
	}, logger)
	disputes := usecase.NewDisputeUseCase(stores, notifier, retry, nil, logger)
	subscriptions := usecase.NewSubscriptionUseCase(stores, vault, notifier, retry, nil, logger)

	// ---- HTTP ----
	srv := api.NewServer(api.Deps{
		Saga:           saga,
		Access:         access,
		Disputes:       disputes,
		Subscriptions:  subscriptions,
		LinkCodes:      linkCodes,
		Limiter:        red.NewRateLimiter(redisClient, cfg.Access.VerifyLimit, cfg.Access.VerifyWindow),
		Auth:           api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0),
		WebhookSecret:  cfg.Payment.WebhookSecret,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		BotUsername:    botUsername,
		Dev:            cfg.Runtime.Dev,
	}, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})

	// ---- Scheduled jobs ----
	scheduler := sched.New(5*time.Minute, logger)
	purge := sched.NewTokenPurge(stores.AccessTokens, red.NewLocker(redisClient), cfg.Access.PurgeRetention, logger)
	if err := scheduler.Add(sched.TokenPurgeJobName, cfg.Scheduler.TokenPurgeCron, purge.Run); err != nil {
		return fmt.Errorf("schedule token purge: %w", err)
	}
	g.Go(func() error { return scheduler.Run(gctx) })

	g.Go(func() error {
		pg.ReportPoolStats(gctx, pool, 15*time.Second, logger)
		return nil
	})

	return g.Wait()
}
