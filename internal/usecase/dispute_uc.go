// File: internal/usecase/dispute_uc.go
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
	"seat-marketplace/internal/infra/metrics"
)

// DisputeUseCase drives an opened dispute to resolution or closure.
type DisputeUseCase struct {
	stores Stores
	exec   *txExecutor
	now    func() time.Time
	log    *zerolog.Logger
}

func NewDisputeUseCase(stores Stores, publisher adapter.EventPublisher, retry RetryPolicy, now func() time.Time, logger *zerolog.Logger) *DisputeUseCase {
	l := logger.With().Str("component", "dispute_uc").Logger()
	return &DisputeUseCase{
		stores: stores,
		exec:   newTxExecutor(stores.TxManager, publisher, retry, &l),
		now:    clockOrDefault(now),
		log:    &l,
	}
}

// GetDispute returns a dispute to one of its parties or a manager of the subscription's group.
func (uc *DisputeUseCase) GetDispute(ctx context.Context, disputeID, userID string) (*model.Dispute, error) {
	d, err := uc.stores.Disputes.FindByID(ctx, repository.NoTX, disputeID)
	if err != nil {
		return nil, notFoundAs(err, "dispute", disputeID)
	}
	if userID == d.ReporterID || userID == d.RespondentID {
		return d, nil
	}
	if err := uc.requireManager(ctx, repository.NoTX, d, userID, "view dispute"); err != nil {
		return nil, err
	}
	return d, nil
}

// AddEvidence appends a statement from one of the dispute's parties.
func (uc *DisputeUseCase) AddEvidence(ctx context.Context, disputeID, userID, text string) (*model.Dispute, error) {
	defer logging.TraceDuration(uc.log, "DisputeUseCase.AddEvidence")()

	if strings.TrimSpace(disputeID) == "" {
		return nil, domain.Invalid("dispute_id", "required")
	}
	var out *model.Dispute
	err := uc.exec.run(ctx, "dispute.add_evidence", func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		d, err := uc.stores.Disputes.FindByID(ctx, tx, disputeID)
		if err != nil {
			return nil, notFoundAs(err, "dispute", disputeID)
		}
		if userID != d.ReporterID && userID != d.RespondentID {
			return nil, domain.Forbidden(userID, "add evidence")
		}
		if err := d.AddEvidence(userID, text, uc.now()); err != nil {
			return nil, err
		}
		out = d
		return nil, uc.stores.Disputes.Save(ctx, tx, d)
	}, attribute.String("dispute_id", disputeID))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveDispute settles an open dispute with mandatory notes. Only an owner or
// admin of the subscription's group may resolve. A refund, if any, is a separate call.
func (uc *DisputeUseCase) ResolveDispute(ctx context.Context, disputeID, resolvedBy, notes string) (*model.Dispute, error) {
	defer logging.TraceDuration(uc.log, "DisputeUseCase.ResolveDispute")()

	if strings.TrimSpace(disputeID) == "" {
		return nil, domain.Invalid("dispute_id", "required")
	}
	var out *model.Dispute
	err := uc.exec.run(ctx, "dispute.resolve", func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		d, err := uc.stores.Disputes.FindByID(ctx, tx, disputeID)
		if err != nil {
			return nil, notFoundAs(err, "dispute", disputeID)
		}
		if err := uc.requireManager(ctx, tx, d, resolvedBy, "resolve dispute"); err != nil {
			return nil, err
		}
		events, err := d.Resolve(notes, uc.now())
		if err != nil {
			return nil, err
		}
		if err := uc.stores.Disputes.Save(ctx, tx, d); err != nil {
			return nil, err
		}
		out = d
		return events, nil
	}, attribute.String("dispute_id", disputeID))
	if err != nil {
		return nil, err
	}
	metrics.IncDispute("resolved")
	return out, nil
}

// CloseDispute abandons an open dispute. The reporter may withdraw it; a group manager may close it.
func (uc *DisputeUseCase) CloseDispute(ctx context.Context, disputeID, closedBy string) (*model.Dispute, error) {
	defer logging.TraceDuration(uc.log, "DisputeUseCase.CloseDispute")()

	if strings.TrimSpace(disputeID) == "" {
		return nil, domain.Invalid("dispute_id", "required")
	}
	var out *model.Dispute
	err := uc.exec.run(ctx, "dispute.close", func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		d, err := uc.stores.Disputes.FindByID(ctx, tx, disputeID)
		if err != nil {
			return nil, notFoundAs(err, "dispute", disputeID)
		}
		if closedBy != d.ReporterID {
			if err := uc.requireManager(ctx, tx, d, closedBy, "close dispute"); err != nil {
				return nil, err
			}
		}
		events, err := d.Close(uc.now())
		if err != nil {
			return nil, err
		}
		if err := uc.stores.Disputes.Save(ctx, tx, d); err != nil {
			return nil, err
		}
		out = d
		return events, nil
	}, attribute.String("dispute_id", disputeID))
	if err != nil {
		return nil, err
	}
	metrics.IncDispute("closed")
	return out, nil
}

func (uc *DisputeUseCase) requireManager(ctx context.Context, tx repository.Tx, d *model.Dispute, userID, action string) error {
	if userID == "" || d.SubscriptionID == "" {
		return domain.Forbidden(userID, action)
	}
	sub, err := uc.stores.Subscriptions.FindByID(ctx, repository.NoTX, d.SubscriptionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Forbidden(userID, action)
	}
	if err != nil {
		return err
	}
	role, err := uc.stores.Groups.RoleOf(ctx, tx, sub.GroupID, userID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !role.CanManage()) {
		return domain.Forbidden(userID, action)
	}
	return err
}
