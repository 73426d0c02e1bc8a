package model

import (
	"time"

	"seat-marketplace/internal/domain"
)

type PurchaseStatus string

const (
	PurchaseStatusPendingPayment PurchaseStatus = "pending_payment"
	PurchaseStatusCompleted      PurchaseStatus = "completed"
	PurchaseStatusCancelled      PurchaseStatus = "cancelled"
	PurchaseStatusProblem        PurchaseStatus = "problem"
)

func (s PurchaseStatus) IsCompleted() bool { return s == PurchaseStatusCompleted }
func (s PurchaseStatus) IsPending() bool   { return s == PurchaseStatusPendingPayment }

// Purchase is one buyer's acquisition of a seat. It owns at most one Transaction.
type Purchase struct {
	ID                string
	UserID            string
	SubscriptionID    string
	Status            PurchaseStatus
	AccessProvided    bool
	AccessProvidedAt  *time.Time
	AccessConfirmed   bool
	AccessConfirmedAt *time.Time
	TransactionID     *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewPurchase(id, userID, subscriptionID string, now time.Time) (*Purchase, []Event, error) {
	switch {
	case id == "":
		return nil, nil, domain.Invalid("id", "required")
	case userID == "":
		return nil, nil, domain.Invalid("user_id", "required")
	case subscriptionID == "":
		return nil, nil, domain.Invalid("subscription_id", "required")
	}
	p := &Purchase{
		ID:             id,
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Status:         PurchaseStatusPendingPayment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return p, []Event{p.event(EventPurchaseCreated, now)}, nil
}

// AttachTransaction links the purchase's single Transaction. A second attach is rejected.
func (p *Purchase) AttachTransaction(transactionID string) error {
	if transactionID == "" {
		return domain.Invalid("transaction_id", "required")
	}
	if p.TransactionID != nil {
		return domain.Rule(domain.RuleTransactionAlreadyAttached)
	}
	p.TransactionID = &transactionID
	return nil
}

// Complete settles a pending purchase and marks access as provided.
func (p *Purchase) Complete(now time.Time) ([]Event, error) {
	switch p.Status {
	case PurchaseStatusPendingPayment:
	case PurchaseStatusCompleted:
		return nil, domain.Rule(domain.RuleAlreadyCompleted)
	default:
		return nil, domain.Rule(domain.RuleInvalidTransition)
	}
	p.Status = PurchaseStatusCompleted
	p.AccessProvided = true
	p.AccessProvidedAt = &now
	p.UpdatedAt = now
	return []Event{p.event(EventPurchaseCompleted, now)}, nil
}

// ConfirmAccess records the buyer's confirmation that the delivered access works.
func (p *Purchase) ConfirmAccess(now time.Time) ([]Event, error) {
	if !p.AccessProvided {
		return nil, domain.Rule(domain.RuleAccessNotProvided)
	}
	if p.AccessConfirmed {
		return nil, nil
	}
	p.AccessConfirmed = true
	p.AccessConfirmedAt = &now
	p.UpdatedAt = now
	return []Event{p.event(EventAccessConfirmed, now)}, nil
}

// Cancel abandons a purchase that never completed. Cancelling twice is a no-op.
func (p *Purchase) Cancel(now time.Time) ([]Event, error) {
	switch p.Status {
	case PurchaseStatusCompleted:
		return nil, domain.Rule(domain.RuleInvalidTransition)
	case PurchaseStatusCancelled:
		return nil, nil
	}
	p.Status = PurchaseStatusCancelled
	p.UpdatedAt = now
	return []Event{p.event(EventPurchaseCancelled, now)}, nil
}

// MarkAsProblem flags the purchase after a refund or a failed access confirmation.
// The access-provided flag is kept as-is.
func (p *Purchase) MarkAsProblem(now time.Time) []Event {
	if p.Status == PurchaseStatusProblem {
		return nil
	}
	p.Status = PurchaseStatusProblem
	p.UpdatedAt = now
	return []Event{p.event(EventPurchaseProblem, now)}
}

func (p *Purchase) event(t EventType, now time.Time) Event {
	txID := ""
	if p.TransactionID != nil {
		txID = *p.TransactionID
	}
	return newEvent(t, p.ID, now,
		DataBuyerID, p.UserID,
		DataSubscriptionID, p.SubscriptionID,
		DataPurchaseID, p.ID,
		DataTransactionID, txID,
	)
}
