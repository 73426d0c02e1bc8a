package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/usecase"
)

// Disputes is the part of the dispute use case exposed over HTTP.
type Disputes interface {
	GetDispute(ctx context.Context, disputeID, userID string) (*model.Dispute, error)
	AddEvidence(ctx context.Context, disputeID, userID, text string) (*model.Dispute, error)
	ResolveDispute(ctx context.Context, disputeID, resolvedBy, notes string) (*model.Dispute, error)
	CloseDispute(ctx context.Context, disputeID, closedBy string) (*model.Dispute, error)
}

type Subscriptions interface {
	CreateSubscription(ctx context.Context, req usecase.CreateSubscriptionRequest) (*model.Subscription, error)
	UpdateSubscription(ctx context.Context, id string, req usecase.UpdateSubscriptionRequest) (*model.Subscription, error)
	AddSlots(ctx context.Context, id, actorID string, count int) (*model.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*model.Subscription, error)
}

type LinkCodeIssuer interface {
	Issue(ctx context.Context, userID string) (string, error)
}

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Deps struct {
	Saga          usecase.PurchaseSaga
	Access        usecase.AccessGateway
	Disputes      Disputes
	Subscriptions Subscriptions
	LinkCodes     LinkCodeIssuer // nil when Telegram is disabled
	Limiter       Limiter
	Auth          *Authenticator

	WebhookSecret  string
	RequestTimeout time.Duration
	BotUsername    string
	Dev            bool // log payment ids unredacted
}

// Server is the HTTP surface of the marketplace.
type Server struct {
	Deps
	log *zerolog.Logger
}

func NewServer(d Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "http_api").Logger()
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 15 * time.Second
	}
	return &Server{Deps: d, log: &l}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, TraceID, RequestLog(s.log), Recover(s.log), Timeout(s.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(s.Auth))

		r.Post("/payments/callback", s.handlePaymentCallback)
		r.Get("/purchases/{id}/access", s.handleAccess)
		r.Get("/subscriptions/{id}", s.handleGetSubscription)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)

			r.Post("/subscriptions", s.handleCreateSubscription)
			r.Patch("/subscriptions/{id}", s.handleUpdateSubscription)
			r.Post("/subscriptions/{id}/slots", s.handleAddSlots)
			r.Post("/subscriptions/{id}/purchases", s.handleStartCheckout)

			r.Post("/transactions/{id}/refund", s.handleRefund)

			r.Post("/purchases/{id}/access-tokens", s.handleIssueToken)
			r.Post("/purchases/{id}/confirm-access", s.handleConfirmAccess)

			r.Get("/disputes/{id}", s.handleGetDispute)
			r.Post("/disputes/{id}/evidence", s.handleAddEvidence)
			r.Post("/disputes/{id}/resolve", s.handleResolveDispute)
			r.Post("/disputes/{id}/close", s.handleCloseDispute)

			r.Post("/me/telegram-link", s.handleTelegramLink)
		})
	})
	return r
}
