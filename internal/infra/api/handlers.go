package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"seat-marketplace/internal/domain"
	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/infra/logging"
	"seat-marketplace/internal/infra/metrics"
	"seat-marketplace/internal/infra/payment"
	"seat-marketplace/internal/infra/redis"
	"seat-marketplace/internal/usecase"
)

const signatureHeader = "X-Signature"

// ---- subscriptions ----

type createSubscriptionRequest struct {
	GroupID      string `json:"group_id"`
	PlatformID   string `json:"platform_id"`
	SlotsTotal   int    `json:"slots_total"`
	Price        string `json:"price"`
	Currency     string `json:"currency"`
	Instructions string `json:"instructions"`
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.Subscriptions.CreateSubscription(r.Context(), usecase.CreateSubscriptionRequest{
		ActorID:      logging.UserIDFrom(r.Context()),
		GroupID:      req.GroupID,
		PlatformID:   req.PlatformID,
		SlotsTotal:   req.SlotsTotal,
		Price:        req.Price,
		Currency:     req.Currency,
		Instructions: req.Instructions,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscription(sub))
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.Subscriptions.GetSubscription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub))
}

type updateSubscriptionRequest struct {
	Status         *string `json:"status"`
	Price          *string `json:"price"`
	Instructions   *string `json:"instructions"`
	SlotsAvailable *int    `json:"slots_available"`
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var req updateSubscriptionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.Subscriptions.UpdateSubscription(r.Context(), chi.URLParam(r, "id"), usecase.UpdateSubscriptionRequest{
		ActorID:        logging.UserIDFrom(r.Context()),
		Status:         req.Status,
		Price:          req.Price,
		Instructions:   req.Instructions,
		SlotsAvailable: req.SlotsAvailable,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub))
}

func (s *Server) handleAddSlots(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.Subscriptions.AddSlots(r.Context(), chi.URLParam(r, "id"), logging.UserIDFrom(r.Context()), req.Count)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub))
}

// ---- purchases and payments ----

func (s *Server) handleStartCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentMethod string `json:"payment_method"`
		Currency      string `json:"currency"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Saga.StartCheckout(r.Context(), usecase.PurchaseRequest{
		BuyerID:        logging.UserIDFrom(r.Context()),
		SubscriptionID: chi.URLParam(r, "id"),
		PaymentMethod:  model.PaymentMethod(req.PaymentMethod),
		Currency:       req.Currency,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCheckout(res))
}

// handlePaymentCallback receives the provider's verdict on a payment session.
func (s *Server) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	var cb payment.Callback
	if err := decodeBody(w, r, &cb); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.WebhookSecret != "" && !payment.VerifyCallbackSignature(s.WebhookSecret, cb, r.Header.Get(signatureHeader)) {
		l := logging.With(r.Context(), s.log)
		l.Warn().Str("transaction_id", cb.TransactionID).Msg("payment callback with bad signature")
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "bad signature"})
		return
	}

	switch cb.Status {
	case "completed":
		res, err := s.Saga.CompleteTransaction(r.Context(), cb.TransactionID, cb.PaymentID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		l := logging.With(r.Context(), s.log)
		l.Info().
			Str("transaction_id", res.TransactionID).
			Str("payment_id", logging.Redact(cb.PaymentID, s.Dev)).
			Bool("replayed", res.AlreadyCompleted).
			Msg("payment completed")
		writeJSON(w, http.StatusOK, transactionStateResponse{
			TransactionID: res.TransactionID,
			PurchaseID:    res.PurchaseID,
			Status:        string(res.Status),
			Replayed:      res.AlreadyCompleted,
		})
	case "failed":
		res, err := s.Saga.FailTransaction(r.Context(), cb.TransactionID, cb.Reason)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, transactionStateResponse{
			TransactionID: res.TransactionID,
			PurchaseID:    res.PurchaseID,
			Status:        string(res.Status),
			Replayed:      res.AlreadyFailed,
			SeatReleased:  res.SeatReleased,
		})
	default:
		s.writeError(w, r, domain.Invalid("status", "must be completed or failed"))
	}
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Saga.RefundTransaction(r.Context(), usecase.RefundRequest{
		TransactionID: chi.URLParam(r, "id"),
		Reason:        req.Reason,
		RequestedBy:   logging.UserIDFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionStateResponse{
		TransactionID: res.TransactionID,
		PurchaseID:    res.PurchaseID,
		Status:        string(res.Status),
		Replayed:      res.AlreadyRefunded,
		SeatReleased:  res.SeatReleased,
		RefundID:      res.RefundID,
	})
}

// ---- access delivery ----

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExpiryMinutes int `json:"expiry_minutes"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	purchaseID := chi.URLParam(r, "id")
	tok, err := s.Access.GenerateAccessToken(r.Context(), purchaseID, logging.UserIDFrom(r.Context()), req.ExpiryMinutes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		TokenID   string    `json:"token_id"`
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
		AccessURL string    `json:"access_url"`
	}{
		TokenID:   tok.TokenID,
		Token:     tok.Secret,
		ExpiresAt: tok.ExpiresAt,
		AccessURL: "/api/v1/purchases/" + tok.PurchaseID + "/access?token=" + tok.Secret,
	})
}

// handleAccess serves instructions to the buyer's session or to a holder of a
// single-use token. Token attempts are throttled per purchase and client address.
func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	purchaseID := chi.URLParam(r, "id")
	token := r.URL.Query().Get("token")
	ip := clientIP(r)

	if token != "" && s.Limiter != nil {
		ok, err := s.Limiter.Allow(r.Context(), redis.AccessCheckKey(purchaseID, ip))
		if err != nil {
			l := logging.With(r.Context(), s.log)
			l.Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			metrics.IncAccessRateLimited()
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many attempts", Reason: string(domain.TokenInvalid)})
			return
		}
	}

	res, err := s.Access.ProvideAccessInstructions(r.Context(), usecase.AccessRequest{
		PurchaseID: purchaseID,
		UserID:     logging.UserIDFrom(r.Context()),
		Token:      token,
		IPAddress:  ip,
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, struct {
		PurchaseID     string `json:"purchase_id"`
		SubscriptionID string `json:"subscription_id"`
		Instructions   string `json:"instructions"`
		DeliveredVia   string `json:"delivered_via"`
	}{res.PurchaseID, res.SubscriptionID, res.Instructions, res.DeliveredVia})
}

func (s *Server) handleConfirmAccess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsWorking   *bool  `json:"is_working"`
		Description string `json:"description"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.IsWorking == nil {
		s.writeError(w, r, domain.Invalid("is_working", "required"))
		return
	}
	res, err := s.Access.ConfirmAccess(r.Context(), usecase.ConfirmAccessRequest{
		BuyerID:     logging.UserIDFrom(r.Context()),
		PurchaseID:  chi.URLParam(r, "id"),
		IsWorking:   *req.IsWorking,
		Description: req.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		PurchaseID string `json:"purchase_id"`
		Status     string `json:"status"`
		Confirmed  bool   `json:"confirmed"`
		DisputeID  string `json:"dispute_id,omitempty"`
	}{res.PurchaseID, string(res.Status), res.Confirmed, res.DisputeID})
}

// ---- disputes ----

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	d, err := s.Disputes.GetDispute(r.Context(), chi.URLParam(r, "id"), logging.UserIDFrom(r.Context()))
	s.writeDispute(w, r, d, err)
}

func (s *Server) handleAddEvidence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.Disputes.AddEvidence(r.Context(), chi.URLParam(r, "id"), logging.UserIDFrom(r.Context()), req.Text)
	s.writeDispute(w, r, d, err)
}

func (s *Server) handleResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.Disputes.ResolveDispute(r.Context(), chi.URLParam(r, "id"), logging.UserIDFrom(r.Context()), req.Notes)
	s.writeDispute(w, r, d, err)
}

func (s *Server) handleCloseDispute(w http.ResponseWriter, r *http.Request) {
	d, err := s.Disputes.CloseDispute(r.Context(), chi.URLParam(r, "id"), logging.UserIDFrom(r.Context()))
	s.writeDispute(w, r, d, err)
}

func (s *Server) writeDispute(w http.ResponseWriter, r *http.Request, d *model.Dispute, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDispute(d))
}

// ---- telegram ----

func (s *Server) handleTelegramLink(w http.ResponseWriter, r *http.Request) {
	if s.LinkCodes == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "telegram is not enabled"})
		return
	}
	code, err := s.LinkCodes.Issue(r.Context(), logging.UserIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	link := ""
	if s.BotUsername != "" {
		link = "https://t.me/" + s.BotUsername + "?start=" + code
	}
	writeJSON(w, http.StatusCreated, struct {
		Code string `json:"code"`
		Link string `json:"link,omitempty"`
	}{code, link})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
