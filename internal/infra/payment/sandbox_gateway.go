package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"seat-marketplace/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*SandboxGateway)(nil)

// SandboxGateway is an in-memory provider for local runs and tests. It opens
// sessions against a fake checkout page and accepts refunds for known sessions.
type SandboxGateway struct {
	checkoutURL string

	mu       sync.Mutex
	seq      int64
	sessions map[string]int64 // transaction id -> expected amount (minor units)
}

func NewSandboxGateway(checkoutURL string) *SandboxGateway {
	return &SandboxGateway{
		checkoutURL: checkoutURL,
		sessions:    make(map[string]int64),
	}
}

func (g *SandboxGateway) Name() string { return "sandbox" }

func (g *SandboxGateway) CreateSession(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutSession, error) {
	if req.TransactionID == "" {
		return adapter.CheckoutSession{}, errors.New("sandbox: transaction id is required")
	}
	if !req.Amount.IsPositive() {
		return adapter.CheckoutSession{}, fmt.Errorf("sandbox: amount must be positive, got %s", req.Amount)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	sessionID := fmt.Sprintf("sbx-%d", g.seq)
	g.sessions[req.TransactionID] = req.Amount.Minor()

	q := url.Values{}
	q.Set("session", sessionID)
	q.Set("amount", req.Amount.Decimal())
	q.Set("currency", req.Amount.Currency())
	q.Set("method", string(req.Method))
	if req.CallbackURL != "" {
		q.Set("callback", req.CallbackURL)
	}
	return adapter.CheckoutSession{SessionID: sessionID, PaymentURL: g.checkoutURL + "?" + q.Encode()}, nil
}

func (g *SandboxGateway) Refund(ctx context.Context, req adapter.RefundRequest) (adapter.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	expected, ok := g.sessions[req.TransactionID]
	if !ok {
		return adapter.RefundResult{}, fmt.Errorf("sandbox: no session for transaction %s", req.TransactionID)
	}
	if expected != req.Amount.Minor() {
		return adapter.RefundResult{}, fmt.Errorf("sandbox: amount mismatch: expected %d got %d", expected, req.Amount.Minor())
	}
	delete(g.sessions, req.TransactionID)
	return adapter.RefundResult{RefundID: "refund-" + req.TransactionID, Status: "DONE"}, nil
}
