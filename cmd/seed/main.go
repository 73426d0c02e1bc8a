package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"seat-marketplace/internal/config"
	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/repository"
	"seat-marketplace/internal/infra/api"
	pg "seat-marketplace/internal/infra/db/postgres"
	"seat-marketplace/internal/infra/logging"
	"seat-marketplace/internal/infra/security"
	"seat-marketplace/internal/usecase"
)

const (
	ownerID = "seed-owner"
	buyerID = "seed-buyer"
	groupID = "seed-group"
)

// seed inserts an owner, a buyer, a group and one listed subscription, then prints
// bearer tokens for both users so the HTTP flow can be exercised by hand.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	now := time.Now().UTC()
	users := pg.NewPostgresUserRepo(pool)
	for _, u := range []struct{ id, name string }{{ownerID, "owner"}, {buyerID, "buyer"}} {
		user, err := model.NewUser(u.id, 0, u.name, now)
		if err != nil {
			log.Fatalf("user %s: %v", u.id, err)
		}
		if err := users.Save(ctx, repository.NoTX, user); err != nil {
			log.Fatalf("save user %s: %v", u.id, err)
		}
	}
	groups := pg.NewGroupRepo(pool)
	if err := groups.Save(ctx, repository.NoTX, &model.Group{ID: groupID, OwnerID: ownerID, Name: "Seed household"}); err != nil {
		log.Fatalf("save group: %v", err)
	}

	sub, err := createSubscription(ctx, cfg, pool, logger)
	if err != nil {
		log.Fatalf("create subscription: %v", err)
	}
	fmt.Printf("seeded subscription %s (%d seats at %s)\n", sub.ID, sub.SlotsTotal, sub.PricePerSlot)

	auth := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 7*24*time.Hour)
	for _, id := range []string{ownerID, buyerID} {
		tok, err := auth.Mint(id)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Printf("%s bearer token:\n  %s\n", id, tok)
	}
}

func createSubscription(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *zerolog.Logger) (*model.Subscription, error) {
	key := cfg.Security.EncryptionKey
	if key == "" {
		key = "0123456789abcdef0123456789abcdef"
	}
	vault, err := security.NewEncryptionService(key)
	if err != nil {
		return nil, err
	}
	stores := usecase.Stores{
		TxManager:     pg.NewTxManager(pool, logger),
		Subscriptions: pg.NewSubscriptionRepo(pool),
		Groups:        pg.NewGroupRepo(pool),
	}
	uc := usecase.NewSubscriptionUseCase(stores, vault, nil, usecase.RetryPolicy{}, nil, logger)
	return uc.CreateSubscription(ctx, usecase.CreateSubscriptionRequest{
		ActorID:      ownerID,
		GroupID:      groupID,
		PlatformID:   "streaming-family",
		SlotsTotal:   4,
		Price:        "12.50",
		Currency:     cfg.Saga.Currency,
		Instructions: "Sign in at https://example.test with seat@example.test / change-me",
	})
}
