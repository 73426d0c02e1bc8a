//go:build !integration

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/usecase"
)

type mockSaga struct {
	ProcessFunc  func(req usecase.PurchaseRequest) (*usecase.PurchaseResult, error)
	CheckoutFunc func(req usecase.PurchaseRequest) (*usecase.CheckoutResult, error)
	CompleteFunc func(transactionID, paymentID string) (*usecase.CompletionResult, error)
	FailFunc     func(transactionID, reason string) (*usecase.FailureResult, error)
	RefundFunc   func(req usecase.RefundRequest) (*usecase.RefundResult, error)
}

func (m *mockSaga) ProcessPurchaseTransaction(ctx context.Context, req usecase.PurchaseRequest) (*usecase.PurchaseResult, error) {
	return m.ProcessFunc(req)
}

func (m *mockSaga) StartCheckout(ctx context.Context, req usecase.PurchaseRequest) (*usecase.CheckoutResult, error) {
	return m.CheckoutFunc(req)
}

func (m *mockSaga) CompleteTransaction(ctx context.Context, transactionID, paymentID string) (*usecase.CompletionResult, error) {
	return m.CompleteFunc(transactionID, paymentID)
}

func (m *mockSaga) FailTransaction(ctx context.Context, transactionID, reason string) (*usecase.FailureResult, error) {
	return m.FailFunc(transactionID, reason)
}

func (m *mockSaga) RefundTransaction(ctx context.Context, req usecase.RefundRequest) (*usecase.RefundResult, error) {
	return m.RefundFunc(req)
}

type mockAccess struct {
	GenerateFunc func(purchaseID, requestedBy string, expiryMinutes int) (*usecase.IssuedToken, error)
	ProvideFunc  func(req usecase.AccessRequest) (*usecase.AccessInstructions, error)
	ConfirmFunc  func(req usecase.ConfirmAccessRequest) (*usecase.ConfirmAccessResult, error)
}

func (m *mockAccess) GenerateAccessToken(ctx context.Context, purchaseID, requestedBy string, expiryMinutes int) (*usecase.IssuedToken, error) {
	return m.GenerateFunc(purchaseID, requestedBy, expiryMinutes)
}

func (m *mockAccess) VerifyAccessToken(ctx context.Context, purchaseID, secret string) (*model.AccessToken, error) {
	return nil, nil
}

func (m *mockAccess) MarkTokenAsUsed(ctx context.Context, tokenID, ip, userAgent string) error {
	return nil
}

func (m *mockAccess) ProvideAccessInstructions(ctx context.Context, req usecase.AccessRequest) (*usecase.AccessInstructions, error) {
	return m.ProvideFunc(req)
}

func (m *mockAccess) ConfirmAccess(ctx context.Context, req usecase.ConfirmAccessRequest) (*usecase.ConfirmAccessResult, error) {
	return m.ConfirmFunc(req)
}

type mockDisputes struct {
	GetFunc     func(disputeID, userID string) (*model.Dispute, error)
	EvidenceFunc func(disputeID, userID, text string) (*model.Dispute, error)
	ResolveFunc func(disputeID, resolvedBy, notes string) (*model.Dispute, error)
	CloseFunc   func(disputeID, closedBy string) (*model.Dispute, error)
}

func (m *mockDisputes) GetDispute(ctx context.Context, disputeID, userID string) (*model.Dispute, error) {
	return m.GetFunc(disputeID, userID)
}

func (m *mockDisputes) AddEvidence(ctx context.Context, disputeID, userID, text string) (*model.Dispute, error) {
	return m.EvidenceFunc(disputeID, userID, text)
}

func (m *mockDisputes) ResolveDispute(ctx context.Context, disputeID, resolvedBy, notes string) (*model.Dispute, error) {
	return m.ResolveFunc(disputeID, resolvedBy, notes)
}

func (m *mockDisputes) CloseDispute(ctx context.Context, disputeID, closedBy string) (*model.Dispute, error) {
	return m.CloseFunc(disputeID, closedBy)
}

type mockSubscriptions struct {
	CreateFunc func(req usecase.CreateSubscriptionRequest) (*model.Subscription, error)
	UpdateFunc func(id string, req usecase.UpdateSubscriptionRequest) (*model.Subscription, error)
	AddFunc    func(id, actorID string, count int) (*model.Subscription, error)
	GetFunc    func(id string) (*model.Subscription, error)
}

func (m *mockSubscriptions) CreateSubscription(ctx context.Context, req usecase.CreateSubscriptionRequest) (*model.Subscription, error) {
	return m.CreateFunc(req)
}

func (m *mockSubscriptions) UpdateSubscription(ctx context.Context, id string, req usecase.UpdateSubscriptionRequest) (*model.Subscription, error) {
	return m.UpdateFunc(id, req)
}

func (m *mockSubscriptions) AddSlots(ctx context.Context, id, actorID string, count int) (*model.Subscription, error) {
	return m.AddFunc(id, actorID, count)
}

func (m *mockSubscriptions) GetSubscription(ctx context.Context, id string) (*model.Subscription, error) {
	return m.GetFunc(id)
}

type mockLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (m *mockLimiter) Allow(ctx context.Context, key string) (bool, error) {
	m.keys = append(m.keys, key)
	return m.allow, m.err
}

type mockCodes struct{ issuedFor string }

func (m *mockCodes) Issue(ctx context.Context, userID string) (string, error) {
	m.issuedFor = userID
	return "abc123", nil
}

const testSecret = "test-jwt-secret"

type testEnv struct {
	saga    *mockSaga
	access  *mockAccess
	disp    *mockDisputes
	subs    *mockSubscriptions
	limiter *mockLimiter
	codes   *mockCodes
	auth    *Authenticator
	handler http.Handler
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	env := &testEnv{
		saga:    &mockSaga{},
		access:  &mockAccess{},
		disp:    &mockDisputes{},
		subs:    &mockSubscriptions{},
		limiter: &mockLimiter{allow: true},
		codes:   &mockCodes{},
		auth:    NewAuthenticator(testSecret, "seat-marketplace", time.Hour),
	}
	d := Deps{
		Saga:          env.saga,
		Access:        env.access,
		Disputes:      env.disp,
		Subscriptions: env.subs,
		LinkCodes:     env.codes,
		Limiter:       env.limiter,
		Auth:          env.auth,
		BotUsername:   "seatbot",
	}
	for _, m := range mutate {
		m(&d)
	}
	logger := zerolog.New(io.Discard)
	env.handler = NewServer(d, &logger).Router()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, userID, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		tok, err := e.auth.Mint(userID)
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}
