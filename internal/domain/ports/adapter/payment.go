package adapter

import (
	"context"

	"seat-marketplace/internal/domain/model"
)

// CheckoutRequest asks the provider to open a payment session for a pending transaction.
type CheckoutRequest struct {
	TransactionID string
	PurchaseID    string
	Amount        model.Money
	Method        model.PaymentMethod
	Description   string
	CallbackURL   string
}

// CheckoutSession is what the buyer is redirected to.
type CheckoutSession struct {
	SessionID  string
	PaymentURL string
}

type RefundRequest struct {
	TransactionID string
	PaymentID     string // provider payment id captured on completion
	Amount        model.Money
	Reason        string
}

// RefundResult captures a minimal, provider-agnostic result of a refund request.
type RefundResult struct {
	RefundID string
	Status   string // provider status e.g. PENDING / DONE
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string
	CreateSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}
