package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"seat-marketplace/internal/domain"
)

type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
	DisputeStatusClosed   DisputeStatus = "closed"
)

func (s DisputeStatus) IsOpen() bool { return s == DisputeStatusOpen }

type DisputeType string

const (
	DisputeTypeAccess  DisputeType = "access"
	DisputeTypeQuality DisputeType = "quality"
)

const (
	EntityPurchase = "purchase"

	minDisputeDescription = 10
)

type Evidence struct {
	SubmittedBy string    `json:"submitted_by"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Dispute escalates delivered access that does not work. It references the
// Transaction by id only.
type Dispute struct {
	ID                 string
	ReporterID         string
	RespondentID       string // seller the dispute is raised against
	ReportedEntityType string
	ReportedEntityID   string
	SubscriptionID     string
	TransactionID      *string
	DisputeType        DisputeType
	Description        string
	Status             DisputeStatus
	EvidenceRequired   bool
	ResolutionDeadline time.Time
	Evidence           []Evidence
	ResolutionNotes    *string
	ResolvedAt         *time.Time
	ClosedAt           *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type DisputeParams struct {
	ID                 string
	ReporterID         string
	RespondentID       string
	ReportedEntityType string
	ReportedEntityID   string
	SubscriptionID     string
	TransactionID      string
	DisputeType        DisputeType
	Description        string
	EvidenceRequired   bool
	ResolutionWindow   time.Duration
}

func NewDispute(p DisputeParams, now time.Time) (*Dispute, []Event, error) {
	desc := strings.TrimSpace(p.Description)
	switch {
	case p.ID == "":
		return nil, nil, domain.Invalid("id", "required")
	case p.ReporterID == "":
		return nil, nil, domain.Invalid("reporter_id", "required")
	case p.ReportedEntityType == "" || p.ReportedEntityID == "":
		return nil, nil, domain.Invalid("reported_entity", "required")
	case p.DisputeType != DisputeTypeAccess && p.DisputeType != DisputeTypeQuality:
		return nil, nil, domain.Invalid("dispute_type", "unsupported")
	case utf8.RuneCountInString(desc) < minDisputeDescription:
		return nil, nil, domain.Invalid("description", "must be at least 10 characters")
	case p.ResolutionWindow <= 0:
		return nil, nil, domain.Invalid("resolution_window", "must be positive")
	}
	d := &Dispute{
		ID:                 p.ID,
		ReporterID:         p.ReporterID,
		RespondentID:       p.RespondentID,
		ReportedEntityType: p.ReportedEntityType,
		ReportedEntityID:   p.ReportedEntityID,
		SubscriptionID:     p.SubscriptionID,
		DisputeType:        p.DisputeType,
		Description:        desc,
		Status:             DisputeStatusOpen,
		EvidenceRequired:   p.EvidenceRequired,
		ResolutionDeadline: now.Add(p.ResolutionWindow),
		Evidence:           []Evidence{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if p.TransactionID != "" {
		txID := p.TransactionID
		d.TransactionID = &txID
	}
	return d, []Event{d.event(EventDisputeOpened, now)}, nil
}

func (d *Dispute) AddEvidence(submittedBy, text string, now time.Time) error {
	if !d.Status.IsOpen() {
		return domain.Rule(domain.RuleDisputeNotOpen)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Invalid("evidence", "empty")
	}
	d.Evidence = append(d.Evidence, Evidence{SubmittedBy: submittedBy, Text: text, SubmittedAt: now})
	d.UpdatedAt = now
	return nil
}

// Resolve settles an open dispute. Notes are mandatory.
func (d *Dispute) Resolve(notes string, now time.Time) ([]Event, error) {
	if !d.Status.IsOpen() {
		return nil, domain.Rule(domain.RuleDisputeNotOpen)
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, domain.Rule(domain.RuleResolutionNotesRequired)
	}
	d.Status = DisputeStatusResolved
	d.ResolutionNotes = &notes
	d.ResolvedAt = &now
	d.UpdatedAt = now
	return []Event{d.event(EventDisputeResolved, now)}, nil
}

// Close abandons an open dispute without resolution notes.
func (d *Dispute) Close(now time.Time) ([]Event, error) {
	if !d.Status.IsOpen() {
		return nil, domain.Rule(domain.RuleDisputeNotOpen)
	}
	d.Status = DisputeStatusClosed
	d.ClosedAt = &now
	d.UpdatedAt = now
	return []Event{d.event(EventDisputeClosed, now)}, nil
}

func (d *Dispute) IsOverdue(now time.Time) bool {
	return d.Status.IsOpen() && now.After(d.ResolutionDeadline)
}

func (d *Dispute) event(t EventType, now time.Time) Event {
	txID := ""
	if d.TransactionID != nil {
		txID = *d.TransactionID
	}
	purchaseID := ""
	if d.ReportedEntityType == EntityPurchase {
		purchaseID = d.ReportedEntityID
	}
	return newEvent(t, d.ID, now,
		DataReporterID, d.ReporterID,
		DataSellerID, d.RespondentID,
		DataSubscriptionID, d.SubscriptionID,
		DataPurchaseID, purchaseID,
		DataTransactionID, txID,
	)
}
