package api

import (
	"time"

	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/usecase"
)

type subscriptionResponse struct {
	ID             string      `json:"id"`
	GroupID        string      `json:"group_id"`
	PlatformID     string      `json:"platform_id"`
	Status         string      `json:"status"`
	SlotsTotal     int         `json:"slots_total"`
	SlotsAvailable int         `json:"slots_available"`
	PricePerSlot   model.Money `json:"price_per_slot"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func toSubscription(s *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:             s.ID,
		GroupID:        s.GroupID,
		PlatformID:     s.PlatformID,
		Status:         string(s.Status),
		SlotsTotal:     s.SlotsTotal,
		SlotsAvailable: s.SlotsAvailable,
		PricePerSlot:   s.PricePerSlot,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

type checkoutResponse struct {
	PurchaseID     string      `json:"purchase_id"`
	TransactionID  string      `json:"transaction_id"`
	SubscriptionID string      `json:"subscription_id"`
	Amount         model.Money `json:"amount"`
	PlatformFee    model.Money `json:"platform_fee"`
	SellerAmount   model.Money `json:"seller_amount"`
	Status         string      `json:"status"`
	PaymentMethod  string      `json:"payment_method"`
	SessionID      string      `json:"session_id"`
	PaymentURL     string      `json:"payment_url"`
}

func toCheckout(c *usecase.CheckoutResult) checkoutResponse {
	return checkoutResponse{
		PurchaseID:     c.PurchaseID,
		TransactionID:  c.TransactionID,
		SubscriptionID: c.SubscriptionID,
		Amount:         c.Amount,
		PlatformFee:    c.PlatformFee,
		SellerAmount:   c.SellerAmount,
		Status:         string(c.Status),
		PaymentMethod:  string(c.PaymentMethod),
		SessionID:      c.SessionID,
		PaymentURL:     c.PaymentURL,
	}
}

type transactionStateResponse struct {
	TransactionID string `json:"transaction_id"`
	PurchaseID    string `json:"purchase_id"`
	Status        string `json:"status"`
	Replayed      bool   `json:"replayed"` // the transaction was already in the requested state
	SeatReleased  bool   `json:"seat_released,omitempty"`
	RefundID      string `json:"refund_id,omitempty"`
}

type disputeResponse struct {
	ID                 string           `json:"id"`
	ReporterID         string           `json:"reporter_id"`
	RespondentID       string           `json:"respondent_id"`
	ReportedEntityType string           `json:"reported_entity_type"`
	ReportedEntityID   string           `json:"reported_entity_id"`
	SubscriptionID     string           `json:"subscription_id"`
	TransactionID      *string          `json:"transaction_id,omitempty"`
	Type               string           `json:"type"`
	Description        string           `json:"description"`
	Status             string           `json:"status"`
	EvidenceRequired   bool             `json:"evidence_required"`
	ResolutionDeadline time.Time        `json:"resolution_deadline"`
	Evidence           []model.Evidence `json:"evidence"`
	ResolutionNotes    *string          `json:"resolution_notes,omitempty"`
	ResolvedAt         *time.Time       `json:"resolved_at,omitempty"`
	ClosedAt           *time.Time       `json:"closed_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

func toDispute(d *model.Dispute) disputeResponse {
	ev := d.Evidence
	if ev == nil {
		ev = []model.Evidence{}
	}
	return disputeResponse{
		ID:                 d.ID,
		ReporterID:         d.ReporterID,
		RespondentID:       d.RespondentID,
		ReportedEntityType: d.ReportedEntityType,
		ReportedEntityID:   d.ReportedEntityID,
		SubscriptionID:     d.SubscriptionID,
		TransactionID:      d.TransactionID,
		Type:               string(d.DisputeType),
		Description:        d.Description,
		Status:             string(d.Status),
		EvidenceRequired:   d.EvidenceRequired,
		ResolutionDeadline: d.ResolutionDeadline,
		Evidence:           ev,
		ResolutionNotes:    d.ResolutionNotes,
		ResolvedAt:         d.ResolvedAt,
		ClosedAt:           d.ClosedAt,
		CreatedAt:          d.CreatedAt,
	}
}
