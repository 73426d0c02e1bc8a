// File: internal/usecase/transaction_uc.go
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

// Compile-time check
var _ PurchaseSaga = (*purchaseSaga)(nil)

// PurchaseSaga settles seat purchases: reservation, payment confirmation, failure and refund.
// Every operation runs in one storage transaction and publishes its events after commit.
type PurchaseSaga interface {
	ProcessPurchaseTransaction(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
	// StartCheckout reserves a seat and opens a payment session for it.
	StartCheckout(ctx context.Context, req PurchaseRequest) (*CheckoutResult, error)
	CompleteTransaction(ctx context.Context, transactionID, paymentID string) (*CompletionResult, error)
	FailTransaction(ctx context.Context, transactionID, reason string) (*FailureResult, error)
	RefundTransaction(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

type SagaConfig struct {
	PlatformFeePercent float64
	Currency           string // expected when the request leaves it empty
	CallbackURL        string
	Retry              RetryPolicy
	Now                func() time.Time
}

type PurchaseRequest struct {
	BuyerID        string
	SubscriptionID string
	PaymentMethod  model.PaymentMethod
	Currency       string
}

type PurchaseResult struct {
	PurchaseID     string
	TransactionID  string
	SubscriptionID string
	Amount         model.Money
	PlatformFee    model.Money
	SellerAmount   model.Money
	Status         model.TransactionStatus
	PaymentMethod  model.PaymentMethod
}

type CheckoutResult struct {
	PurchaseResult
	SessionID  string
	PaymentURL string
}

type CompletionResult struct {
	TransactionID    string
	PurchaseID       string
	Status           model.TransactionStatus
	AlreadyCompleted bool
}

type FailureResult struct {
	TransactionID string
	PurchaseID    string
	Status        model.TransactionStatus
	AlreadyFailed bool
	SeatReleased  bool
}

type RefundRequest struct {
	TransactionID string
	Reason        string
	RequestedBy   string
}

type RefundResult struct {
	TransactionID   string
	PurchaseID      string
	Status          model.TransactionStatus
	AlreadyRefunded bool
	SeatReleased    bool
	RefundID        string // provider refund id, empty when the gateway was not called
}

type purchaseSaga struct {
	stores  Stores
	gateway adapter.PaymentGateway
	exec    *txExecutor
	cfg     SagaConfig
	now     func() time.Time
	log     *zerolog.Logger
}

func NewPurchaseSaga(stores Stores, gateway adapter.PaymentGateway, publisher adapter.EventPublisher, cfg SagaConfig, logger *zerolog.Logger) *purchaseSaga {
	l := logger.With().Str("component", "purchase_saga").Logger()
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))
	return &purchaseSaga{
		stores:  stores,
		gateway: gateway,
		exec:    newTxExecutor(stores.TxManager, publisher, cfg.Retry, &l),
		cfg:     cfg,
		now:     clockOrDefault(cfg.Now),
		log:     &l,
	}
}

func (s *purchaseSaga) ProcessPurchaseTransaction(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	defer logging.TraceDuration(s.log, "PurchaseSaga.ProcessPurchaseTransaction")()

	switch {
	case strings.TrimSpace(req.BuyerID) == "":
		return nil, domain.Invalid("buyer_id", "required")
	case strings.TrimSpace(req.SubscriptionID) == "":
		return nil, domain.Invalid("subscription_id", "required")
	case !req.PaymentMethod.Valid():
		return nil, domain.Invalid("payment_method", "unsupported")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.cfg.Currency
	}

	var res *PurchaseResult
	err := s.exec.run(ctx, "saga.process_purchase", func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		now := s.now()

		sub, err := s.stores.Subscriptions.FindByID(ctx, tx, req.SubscriptionID)
		if err != nil {
			return nil, notFoundAs(err, "subscription", req.SubscriptionID)
		}
		if !sub.IsPurchasable() {
			return nil, domain.Rule(domain.RuleNotPurchasable)
		}
		if currency != "" && currency != sub.PricePerSlot.Currency() {
			return nil, domain.Invalid("currency", "does not match the subscription price currency")
		}
		open, err := s.stores.Disputes.CountOpenByReporter(ctx, tx, req.BuyerID, sub.ID)
		if err != nil {
			return nil, err
		}
		if open > 0 {
			return nil, domain.Rule(domain.RulePurchaseDisputed)
		}
		sellerID, err := s.stores.Groups.OwnerOf(ctx, tx, sub.GroupID)
		if err != nil {
			return nil, notFoundAs(err, "group", sub.GroupID)
		}

		purchase, events, err := model.NewPurchase(newID(), req.BuyerID, sub.ID, now)
		if err != nil {
			return nil, err
		}
		reserved, err := sub.ReserveSlots(1, req.BuyerID, now)
		if err != nil {
			return nil, err
		}
		events = append(events, reserved...)

		txn, created, err := model.NewTransaction(model.TransactionParams{
			ID:              newID(),
			BuyerID:         req.BuyerID,
			SellerID:        sellerID,
			SubscriptionID:  sub.ID,
			PurchaseID:      purchase.ID,
			Amount:          sub.PricePerSlot,
			PaymentMethod:   req.PaymentMethod,
			PaymentProvider: s.gateway.Name(),
		}, s.cfg.PlatformFeePercent, now)
		if err != nil {
			return nil, err
		}
		events = append(events, created...)
		if err := purchase.AttachTransaction(txn.ID); err != nil {
			return nil, err
		}

		if err := s.stores.Subscriptions.Save(ctx, tx, sub); err != nil {
			return nil, err
		}
		if err := s.stores.Purchases.Save(ctx, tx, purchase); err != nil {
			return nil, err
		}
		if err := s.stores.Transactions.Save(ctx, tx, txn); err != nil {
			return nil, err
		}

		res = &PurchaseResult{
			PurchaseID:     purchase.ID,
			TransactionID:  txn.ID,
			SubscriptionID: sub.ID,
			Amount:         txn.Amount,
			PlatformFee:    txn.PlatformFee,
			SellerAmount:   txn.SellerAmount,
			Status:         txn.Status,
			PaymentMethod:  txn.PaymentMethod,
		}
		return events, nil
	}, attribute.String("subscription_id", req.SubscriptionID))
	if err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.TransactionStatusPending))
	return res, nil
}

func (s *purchaseSaga) StartCheckout(ctx context.Context, req PurchaseRequest) (*CheckoutResult, error) {
	res, err := s.ProcessPurchaseTransaction(ctx, req)
	if err != nil {
		return nil, err
	}
	out := &CheckoutResult{PurchaseResult: *res}

	ctx, span := tracer.Start(ctx, "gateway.create_session")
	defer span.End()
	session, err := s.gateway.CreateSession(ctx, adapter.CheckoutRequest{
		TransactionID: res.TransactionID,
		PurchaseID:    res.PurchaseID,
		Amount:        res.Amount,
		Method:        res.PaymentMethod,
		Description:   "Seat in subscription " + res.SubscriptionID,
		CallbackURL:   s.cfg.CallbackURL,
	})
	if err != nil {
		span.RecordError(err)
		s.log.Error().Err(err).Str("transaction_id", res.TransactionID).Msg("payment session could not be opened")
		return out, &domain.PaymentError{Op: "create_session", Err: err}
	}
	out.SessionID = session.SessionID
	out.PaymentURL = session.PaymentURL
	return out, nil
}

func (s *purchaseSaga) CompleteTransaction(ctx context.Context, transactionID, paymentID string) (*CompletionResult, error) {
	defer logging.TraceDuration(s.log, "PurchaseSaga.CompleteTransaction")()

	if strings.TrimSpace(transactionID) == "" {
		return nil, domain.Invalid("transaction_id", "required")
	}

	var (
		res   *CompletionResult
		money model.Transaction
	)
	err := s.exec.run(ctx, "saga.complete_transaction", func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		now := s.now()

		txn, err := s.stores.Transactions.FindByID(ctx, tx, transactionID)
		if err != nil {
			return nil, notFoundAs(err, "transaction", transactionID)
		}
		if txn.Status.IsCompleted() {
			res = &CompletionResult{TransactionID: txn.ID, PurchaseID: txn.PurchaseID, Status: txn.Status, AlreadyCompleted: true}
			return nil, nil
		}
		events, err := txn.Complete(paymentID, now)
		if err != nil {
			return nil, err
		}

		purchase, err := s.stores.Purchases.FindByID(ctx, tx, txn.PurchaseID)
		if err != nil {
			return nil, notFoundAs(err, "purchase", txn.PurchaseID)
		}
		completed, err := purchase.Complete(now)
		if err != nil {
			return nil, err
		}
		events = append(events, completed...)

		if err := s.stores.Transactions.Save(ctx, tx, txn); err != nil {
			return nil, err
		}
		if err := s.stores.Purchases.Save(ctx, tx, purchase); err != nil {
			return nil, err
		}
		money = *txn
		res = &CompletionResult{TransactionID: txn.ID, PurchaseID: purchase.ID, Status: txn.Status}
		return events, nil
	}, attribute.String("transaction_id", transactionID))
	if err != nil {
		return nil, err
	}
	if !res.AlreadyCompleted {
		metrics.IncPayment(string(model.TransactionStatusCompleted))
		metrics.AddPaymentRevenue(money.Amount.Currency(), money.Amount.Minor(), money.PlatformFee.Minor())
	}
	return res, nil
}

// FailTransaction records a declined payment: the transaction fails, the pending
// purchase is cancelled and its seat goes back to the pool.
func (s *purchaseSaga) FailTransaction(ctx context.Context, transactionID, reason string) (*FailureResult, error) {
	defer logging.TraceDuration(s.log, "PurchaseSaga.FailTransaction")()

	if strings.TrimSpace(transactionID) == "" {
		return nil, domain.Invalid("transaction_id", "required")
	}

	var res *FailureResult
	err := s.exec.run(ctx, "saga.fail_transaction", func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		now := s.now()

		txn, err := s.stores.Transactions.FindByID(ctx, tx, transactionID)
		if err != nil {
			return nil, notFoundAs(err, "transaction", transactionID)
		}
		if txn.Status == model.TransactionStatusFailed {
			res = &FailureResult{TransactionID: txn.ID, PurchaseID: txn.PurchaseID, Status: txn.Status, AlreadyFailed: true}
			return nil, nil
		}
		events, err := txn.Fail(reason, now)
		if err != nil {
			return nil, err
		}

		purchase, err := s.stores.Purchases.FindByID(ctx, tx, txn.PurchaseID)
		if err != nil {
			return nil, notFoundAs(err, "purchase", txn.PurchaseID)
		}
		cancelled, err := purchase.Cancel(now)
		if err != nil {
			return nil, err
		}
		events = append(events, cancelled...)

		sub, err := s.loadSubscription(ctx, tx, txn.SubscriptionID)
		if err != nil {
			return nil, err
		}
		released, err := s.releaseSeat(ctx, tx, sub, txn, now)
		if err != nil {
			return nil, err
		}
		events = append(events, released...)

		if err := s.stores.Transactions.Save(ctx, tx, txn); err != nil {
			return nil, err
		}
		if err := s.stores.Purchases.Save(ctx, tx, purchase); err != nil {
			return nil, err
		}
		res = &FailureResult{TransactionID: txn.ID, PurchaseID: purchase.ID, Status: txn.Status, SeatReleased: len(released) > 0}
		return events, nil
	}, attribute.String("transaction_id", transactionID))
	if err != nil {
		return nil, err
	}
	if !res.AlreadyFailed {
		metrics.IncPayment(string(model.TransactionStatusFailed))
	}
	return res, nil
}

// RefundTransaction reverses a completed transaction. The seller or an admin of the
// subscription's group may request it. The seat is released when the subscription still
// exists; the provider refund is requested after commit.
func (s *purchaseSaga) RefundTransaction(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	defer logging.TraceDuration(s.log, "PurchaseSaga.RefundTransaction")()

	switch {
	case strings.TrimSpace(req.TransactionID) == "":
		return nil, domain.Invalid("transaction_id", "required")
	case strings.TrimSpace(req.RequestedBy) == "":
		return nil, domain.Invalid("requested_by", "required")
	}

	var (
		res      *RefundResult
		refunded model.Transaction
	)
	err := s.exec.run(ctx, "saga.refund_transaction", func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		now := s.now()

		txn, err := s.stores.Transactions.FindByID(ctx, tx, req.TransactionID)
		if err != nil {
			return nil, notFoundAs(err, "transaction", req.TransactionID)
		}
		sub, err := s.loadSubscription(ctx, tx, txn.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if err := s.authorizeRefund(ctx, tx, txn, sub, req.RequestedBy); err != nil {
			return nil, err
		}

		if txn.Status.IsRefunded() {
			res = &RefundResult{TransactionID: txn.ID, PurchaseID: txn.PurchaseID, Status: txn.Status, AlreadyRefunded: true}
			return nil, nil
		}
		if !txn.Status.IsCompleted() {
			return nil, domain.Rule(domain.RuleTransactionNotCompleted)
		}

		events := txn.Refund(req.Reason, now)
		purchase, err := s.stores.Purchases.FindByID(ctx, tx, txn.PurchaseID)
		if err != nil {
			return nil, notFoundAs(err, "purchase", txn.PurchaseID)
		}
		events = append(events, purchase.MarkAsProblem(now)...)

		released, err := s.releaseSeat(ctx, tx, sub, txn, now)
		if err != nil {
			return nil, err
		}
		events = append(events, released...)

		if err := s.stores.Transactions.Save(ctx, tx, txn); err != nil {
			return nil, err
		}
		if err := s.stores.Purchases.Save(ctx, tx, purchase); err != nil {
			return nil, err
		}
		refunded = *txn
		res = &RefundResult{TransactionID: txn.ID, PurchaseID: purchase.ID, Status: txn.Status, SeatReleased: len(released) > 0}
		return events, nil
	}, attribute.String("transaction_id", req.TransactionID))
	if err != nil {
		return nil, err
	}
	if res.AlreadyRefunded {
		return res, nil
	}
	metrics.IncPayment(string(model.TransactionStatusRefunded))

	if refunded.PaymentID == nil {
		return res, nil
	}
	ctx, span := tracer.Start(ctx, "gateway.refund")
	defer span.End()
	out, err := s.gateway.Refund(ctx, adapter.RefundRequest{
		TransactionID: refunded.ID,
		PaymentID:     *refunded.PaymentID,
		Amount:        refunded.Amount,
		Reason:        req.Reason,
	})
	if err != nil {
		span.RecordError(err)
		s.log.Error().Err(err).Str("transaction_id", refunded.ID).Msg("refund recorded but provider refund failed")
		return res, &domain.PaymentError{Op: "refund", Err: err}
	}
	res.RefundID = out.RefundID
	return res, nil
}

func (s *purchaseSaga) loadSubscription(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	sub, err := s.stores.Subscriptions.FindByID(ctx, tx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return sub, err
}

func (s *purchaseSaga) authorizeRefund(ctx context.Context, tx repository.Tx, txn *model.Transaction, sub *model.Subscription, userID string) error {
	if userID == txn.SellerID {
		return nil
	}
	if sub == nil {
		return domain.Forbidden(userID, "refund transaction")
	}
	role, err := s.stores.Groups.RoleOf(ctx, tx, sub.GroupID, userID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !role.CanManage()) {
		return domain.Forbidden(userID, "refund transaction")
	}
	return err
}

// releaseSeat gives the transaction's seat back. It is best-effort: a deleted
// subscription or a full pool is logged and skipped so money state still settles.
func (s *purchaseSaga) releaseSeat(ctx context.Context, tx repository.Tx, sub *model.Subscription, txn *model.Transaction, now time.Time) ([]model.Event, error) {
	if sub == nil {
		s.log.Warn().Str("transaction_id", txn.ID).Str("subscription_id", txn.SubscriptionID).Msg("subscription gone, seat not released")
		return nil, nil
	}
	events, err := sub.ReleaseSlots(1, now)
	if errors.Is(err, domain.ErrBusinessRule) {
		s.log.Warn().Err(err).Str("subscription_id", sub.ID).Msg("seat not released")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.stores.Subscriptions.Save(ctx, tx, sub); err != nil {
		return nil, err
	}
	return events, nil
}
