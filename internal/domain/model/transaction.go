package model

import (
	"strings"
	"time"

	"seat-marketplace/internal/domain"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

func (s TransactionStatus) IsCompleted() bool { return s == TransactionStatusCompleted }
func (s TransactionStatus) IsRefunded() bool  { return s == TransactionStatusRefunded }

type PaymentMethod string

const (
	PaymentMethodBlik     PaymentMethod = "blik"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodBlik, PaymentMethodCard, PaymentMethodTransfer:
		return true
	}
	return false
}

// Transaction is the money side of a purchase: Amount == PlatformFee + SellerAmount.
type Transaction struct {
	ID              string
	BuyerID         string
	SellerID        string
	SubscriptionID  string
	PurchaseID      string
	Amount          Money
	PlatformFee     Money
	SellerAmount    Money
	PaymentMethod   PaymentMethod
	Status          TransactionStatus
	PaymentProvider string
	PaymentID       *string
	FailureReason   *string
	CompletedAt     *time.Time
	RefundedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type TransactionParams struct {
	ID              string
	BuyerID         string
	SellerID        string
	SubscriptionID  string
	PurchaseID      string
	Amount          Money
	PaymentMethod   PaymentMethod
	PaymentProvider string
}

// NewTransaction splits Amount into the platform fee (Amount*feePercent, 2 decimals) and the seller's remainder.
func NewTransaction(p TransactionParams, feePercent float64, now time.Time) (*Transaction, []Event, error) {
	switch {
	case p.ID == "":
		return nil, nil, domain.Invalid("id", "required")
	case p.BuyerID == "":
		return nil, nil, domain.Invalid("buyer_id", "required")
	case p.SellerID == "":
		return nil, nil, domain.Invalid("seller_id", "required")
	case p.SubscriptionID == "":
		return nil, nil, domain.Invalid("subscription_id", "required")
	case p.PurchaseID == "":
		return nil, nil, domain.Invalid("purchase_id", "required")
	case !p.Amount.IsPositive():
		return nil, nil, domain.Invalid("amount", "must be positive")
	case !p.PaymentMethod.Valid():
		return nil, nil, domain.Invalid("payment_method", "unsupported")
	case feePercent < 0 || feePercent >= 1:
		return nil, nil, domain.Invalid("fee_percent", "must be in [0, 1)")
	}

	fee := p.Amount.Percent(feePercent)
	seller, err := p.Amount.Sub(fee)
	if err != nil {
		return nil, nil, err
	}
	t := &Transaction{
		ID:              p.ID,
		BuyerID:         p.BuyerID,
		SellerID:        p.SellerID,
		SubscriptionID:  p.SubscriptionID,
		PurchaseID:      p.PurchaseID,
		Amount:          p.Amount,
		PlatformFee:     fee,
		SellerAmount:    seller,
		PaymentMethod:   p.PaymentMethod,
		Status:          TransactionStatusPending,
		PaymentProvider: p.PaymentProvider,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return t, []Event{t.event(EventTransactionCreated, now, "")}, nil
}

// Complete records gateway confirmation. Repeated confirmation is a no-op because
// gateway callbacks may be delivered more than once.
func (t *Transaction) Complete(paymentID string, now time.Time) ([]Event, error) {
	switch t.Status {
	case TransactionStatusCompleted:
		return nil, nil
	case TransactionStatusPending:
	case TransactionStatusFailed:
		return nil, domain.Rule(domain.RuleTransactionFailed)
	default:
		return nil, domain.Rule(domain.RuleInvalidTransition)
	}
	if paymentID != "" {
		t.PaymentID = &paymentID
	}
	t.Status = TransactionStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	return []Event{t.event(EventTransactionCompleted, now, "")}, nil
}

// Fail marks a pending payment as declined. Failed is terminal.
func (t *Transaction) Fail(reason string, now time.Time) ([]Event, error) {
	switch t.Status {
	case TransactionStatusFailed:
		return nil, nil
	case TransactionStatusPending:
	default:
		return nil, domain.Rule(domain.RuleInvalidTransition)
	}
	reason = strings.TrimSpace(reason)
	if reason != "" {
		t.FailureReason = &reason
	}
	t.Status = TransactionStatusFailed
	t.UpdatedAt = now
	return []Event{t.event(EventTransactionFailed, now, reason)}, nil
}

// Refund reverses the transaction. Guarding against double refunds is the caller's job.
func (t *Transaction) Refund(reason string, now time.Time) []Event {
	t.Status = TransactionStatusRefunded
	t.RefundedAt = &now
	t.UpdatedAt = now
	return []Event{t.event(EventTransactionRefunded, now, strings.TrimSpace(reason))}
}

// ValidateAmounts reports whether PlatformFee + SellerAmount equals Amount in value and currency.
func (t *Transaction) ValidateAmounts() bool {
	sum, err := t.PlatformFee.Add(t.SellerAmount)
	if err != nil {
		return false
	}
	return sum.Equal(t.Amount)
}

func (t *Transaction) event(et EventType, now time.Time, reason string) Event {
	return newEvent(et, t.ID, now,
		DataBuyerID, t.BuyerID,
		DataSellerID, t.SellerID,
		DataSubscriptionID, t.SubscriptionID,
		DataPurchaseID, t.PurchaseID,
		DataTransactionID, t.ID,
		DataAmount, t.Amount.String(),
		DataReason, reason,
	)
}
