// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"seat-marketplace/internal/domain"
	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/adapter"
	"seat-marketplace/internal/domain/ports/repository"
	"seat-marketplace/internal/infra/logging"
)

// SubscriptionUseCase lists subscriptions and applies administrative edits.
// Every mutation requires the owner or an admin of the subscription's group.
type SubscriptionUseCase struct {
	stores Stores
	vault  adapter.InstructionVault
	exec   *txExecutor
	now    func() time.Time
	log    *zerolog.Logger
}

type CreateSubscriptionRequest struct {
	ActorID      string
	GroupID      string
	PlatformID   string
	SlotsTotal   int
	Price        string // decimal, e.g. "29.99"
	Currency     string
	Instructions string
}

// UpdateSubscriptionRequest holds an edit. Nil fields are left unchanged.
type UpdateSubscriptionRequest struct {
	ActorID        string
	Status         *string
	Price          *string
	Instructions   *string
	SlotsAvailable *int
}

func NewSubscriptionUseCase(stores Stores, vault adapter.InstructionVault, publisher adapter.EventPublisher, retry RetryPolicy, now func() time.Time, logger *zerolog.Logger) *SubscriptionUseCase {
	l := logger.With().Str("component", "subscription_uc").Logger()
	return &SubscriptionUseCase{
		stores: stores,
		vault:  vault,
		exec:   newTxExecutor(stores.TxManager, publisher, retry, &l),
		now:    clockOrDefault(now),
		log:    &l,
	}
}

func (uc *SubscriptionUseCase) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*model.Subscription, error) {
	defer logging.TraceDuration(uc.log, "SubscriptionUseCase.CreateSubscription")()

	price, err := model.ParseMoney(req.Price, req.Currency)
	if err != nil {
		return nil, err
	}
	sub, err := model.NewSubscription(newID(), req.GroupID, req.PlatformID, req.SlotsTotal, price, uc.now())
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Instructions) != "" {
		sealed, err := uc.vault.Seal(sub.ID, req.Instructions)
		if err != nil {
			return nil, err
		}
		sub.AccessInstructionsRef = &sealed
	}

	err = uc.exec.run(ctx, "subscription.create", func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		if err := uc.requireManager(ctx, tx, sub.GroupID, req.ActorID, "list subscription"); err != nil {
			return nil, err
		}
		return nil, uc.stores.Subscriptions.Save(ctx, tx, sub)
	}, attribute.String("group_id", req.GroupID))
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("subscription_id", sub.ID).Str("group_id", sub.GroupID).Int("slots", sub.SlotsTotal).Msg("subscription listed")
	return sub, nil
}

// UpdateSubscription applies an edit atomically: every field is validated before any is applied.
func (uc *SubscriptionUseCase) UpdateSubscription(ctx context.Context, id string, req UpdateSubscriptionRequest) (*model.Subscription, error) {
	defer logging.TraceDuration(uc.log, "SubscriptionUseCase.UpdateSubscription")()

	if strings.TrimSpace(id) == "" {
		return nil, domain.Invalid("subscription_id", "required")
	}
	var changes model.SubscriptionChanges
	if req.Status != nil {
		st := model.SubscriptionStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		changes.Status = &st
	}
	if req.Instructions != nil {
		if strings.TrimSpace(*req.Instructions) == "" {
			return nil, domain.Invalid("access_instructions", "empty")
		}
		sealed, err := uc.vault.Seal(id, *req.Instructions)
		if err != nil {
			return nil, err
		}
		changes.AccessInstructionsRef = &sealed
	}
	changes.SlotsAvailable = req.SlotsAvailable

	var out *model.Subscription
	err := uc.exec.run(ctx, "subscription.update", func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		sub, err := uc.stores.Subscriptions.FindByID(ctx, tx, id)
		if err != nil {
			return nil, notFoundAs(err, "subscription", id)
		}
		if err := uc.requireManager(ctx, tx, sub.GroupID, req.ActorID, "edit subscription"); err != nil {
			return nil, err
		}
		if req.Price != nil {
			price, err := model.ParseMoney(*req.Price, sub.PricePerSlot.Currency())
			if err != nil {
				return nil, err
			}
			changes.PricePerSlot = &price
		}
		events, err := sub.Update(changes, uc.now())
		if err != nil {
			return nil, err
		}
		if err := uc.stores.Subscriptions.Save(ctx, tx, sub); err != nil {
			return nil, err
		}
		out = sub
		return events, nil
	}, attribute.String("subscription_id", id))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddSlots grows capacity; the new seats are immediately purchasable.
func (uc *SubscriptionUseCase) AddSlots(ctx context.Context, id, actorID string, count int) (*model.Subscription, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Invalid("subscription_id", "required")
	}
	var out *model.Subscription
	err := uc.exec.run(ctx, "subscription.add_slots", func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		sub, err := uc.stores.Subscriptions.FindByID(ctx, tx, id)
		if err != nil {
			return nil, notFoundAs(err, "subscription", id)
		}
		if err := uc.requireManager(ctx, tx, sub.GroupID, actorID, "edit subscription"); err != nil {
			return nil, err
		}
		events, err := sub.AddSlots(count, uc.now())
		if err != nil {
			return nil, err
		}
		if err := uc.stores.Subscriptions.Save(ctx, tx, sub); err != nil {
			return nil, err
		}
		out = sub
		return events, nil
	}, attribute.String("subscription_id", id))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetSubscription reads through the cache. The sealed instructions reference is
// cleared; instructions are released only by the access gateway.
func (uc *SubscriptionUseCase) GetSubscription(ctx context.Context, id string) (*model.Subscription, error) {
	sub, err := uc.stores.Subscriptions.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, notFoundAs(err, "subscription", id)
	}
	out := *sub
	out.AccessInstructionsRef = nil
	return &out, nil
}

func (uc *SubscriptionUseCase) requireManager(ctx context.Context, tx repository.Tx, groupID, userID, action string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.Forbidden(userID, action)
	}
	role, err := uc.stores.Groups.RoleOf(ctx, tx, groupID, userID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !role.CanManage()) {
		return domain.Forbidden(userID, action)
	}
	return err
}
