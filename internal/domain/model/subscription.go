package model

import (
	"strconv"
	"strings"
	"time"

	"seat-marketplace/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPaused   SubscriptionStatus = "paused"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusPaused, SubscriptionStatusInactive:
		return true
	}
	return false
}

func (s SubscriptionStatus) IsActive() bool { return s == SubscriptionStatusActive }

// Subscription is a group's paid subscription offered seat by seat.
// SlotsAvailable is changed only through ReserveSlots, ReleaseSlots, AddSlots and Update.
type Subscription struct {
	ID                    string
	GroupID               string
	PlatformID            string
	Status                SubscriptionStatus
	SlotsTotal            int
	SlotsAvailable        int
	PricePerSlot          Money
	AccessInstructionsRef *string // sealed instructions, opened only on delivery
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewSubscription lists a new subscription with every seat available.
func NewSubscription(id, groupID, platformID string, slotsTotal int, price Money, now time.Time) (*Subscription, error) {
	switch {
	case id == "":
		return nil, domain.Invalid("id", "required")
	case groupID == "":
		return nil, domain.Invalid("group_id", "required")
	case platformID == "":
		return nil, domain.Invalid("platform_id", "required")
	case slotsTotal < 1:
		return nil, domain.Invalid("slots_total", "must be at least 1")
	case !price.IsPositive():
		return nil, domain.Invalid("price_per_slot", "must be positive")
	}
	return &Subscription{
		ID:             id,
		GroupID:        groupID,
		PlatformID:     platformID,
		Status:         SubscriptionStatusActive,
		SlotsTotal:     slotsTotal,
		SlotsAvailable: slotsTotal,
		PricePerSlot:   price,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *Subscription) IsPurchasable() bool {
	return s.Status.IsActive() && s.SlotsAvailable > 0
}

// ReserveSlots takes count seats for purchaserID. The count is left untouched on failure.
func (s *Subscription) ReserveSlots(count int, purchaserID string, now time.Time) ([]Event, error) {
	if count < 1 {
		return nil, domain.Rule(domain.RuleInvalidSlotCount)
	}
	if !s.Status.IsActive() {
		return nil, domain.Rule(domain.RuleSubscriptionNotActive)
	}
	if s.SlotsAvailable < count {
		return nil, domain.Rule(domain.RuleInsufficientSlots)
	}
	s.SlotsAvailable -= count
	s.UpdatedAt = now
	return []Event{newEvent(EventSlotsPurchased, s.ID, now,
		DataBuyerID, purchaserID,
		DataGroupID, s.GroupID,
		DataCount, strconv.Itoa(count),
	)}, nil
}

// ReleaseSlots returns count seats to the pool.
func (s *Subscription) ReleaseSlots(count int, now time.Time) ([]Event, error) {
	if count < 1 {
		return nil, domain.Rule(domain.RuleInvalidSlotCount)
	}
	if s.SlotsAvailable+count > s.SlotsTotal {
		return nil, domain.Rule(domain.RuleSlotsExceedTotal)
	}
	s.SlotsAvailable += count
	s.UpdatedAt = now
	return []Event{newEvent(EventSlotsReleased, s.ID, now,
		DataGroupID, s.GroupID,
		DataCount, strconv.Itoa(count),
	)}, nil
}

// AddSlots grows the subscription's capacity; new seats are immediately available.
func (s *Subscription) AddSlots(count int, now time.Time) ([]Event, error) {
	if count < 1 {
		return nil, domain.Rule(domain.RuleInvalidSlotCount)
	}
	s.SlotsTotal += count
	s.SlotsAvailable += count
	s.UpdatedAt = now
	return []Event{newEvent(EventSubscriptionUpdated, s.ID, now, DataGroupID, s.GroupID)}, nil
}

// SubscriptionChanges holds an administrative edit. Nil fields are left unchanged.
type SubscriptionChanges struct {
	Status                *SubscriptionStatus
	PricePerSlot          *Money
	AccessInstructionsRef *string
	SlotsAvailable        *int
}

// Update applies an administrative edit atomically: either every change is applied or none.
func (s *Subscription) Update(c SubscriptionChanges, now time.Time) ([]Event, error) {
	if c.Status != nil && !c.Status.Valid() {
		return nil, domain.Invalid("status", "unknown status")
	}
	if c.PricePerSlot != nil && !c.PricePerSlot.IsPositive() {
		return nil, domain.Invalid("price_per_slot", "must be positive")
	}
	if c.SlotsAvailable != nil {
		if *c.SlotsAvailable < 0 {
			return nil, domain.Rule(domain.RuleInvalidSlotCount)
		}
		if *c.SlotsAvailable > s.SlotsTotal {
			return nil, domain.Rule(domain.RuleSlotsExceedTotal)
		}
	}
	if c.AccessInstructionsRef != nil && strings.TrimSpace(*c.AccessInstructionsRef) == "" {
		return nil, domain.Invalid("access_instructions", "empty")
	}

	if c.Status != nil {
		s.Status = *c.Status
	}
	if c.PricePerSlot != nil {
		s.PricePerSlot = *c.PricePerSlot
	}
	if c.SlotsAvailable != nil {
		s.SlotsAvailable = *c.SlotsAvailable
	}
	if c.AccessInstructionsRef != nil {
		ref := *c.AccessInstructionsRef
		s.AccessInstructionsRef = &ref
	}
	s.UpdatedAt = now
	return []Event{newEvent(EventSubscriptionUpdated, s.ID, now, DataGroupID, s.GroupID)}, nil
}
