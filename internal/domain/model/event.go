package model

import "time"

type EventType string

const (
	EventSlotsPurchased       EventType = "subscription.slots_purchased"
	EventSlotsReleased        EventType = "subscription.slots_released"
	EventSubscriptionUpdated  EventType = "subscription.updated"
	EventPurchaseCreated      EventType = "purchase.created"
	EventPurchaseCompleted    EventType = "purchase.completed"
	EventPurchaseCancelled    EventType = "purchase.cancelled"
	EventPurchaseProblem      EventType = "purchase.problem"
	EventAccessConfirmed      EventType = "purchase.access_confirmed"
	EventTransactionCreated   EventType = "transaction.created"
	EventTransactionCompleted EventType = "transaction.completed"
	EventTransactionFailed    EventType = "transaction.failed"
	EventTransactionRefunded  EventType = "transaction.refunded"
	EventDisputeOpened        EventType = "dispute.opened"
	EventDisputeResolved      EventType = "dispute.resolved"
	EventDisputeClosed        EventType = "dispute.closed"
)

// Keys used in Event.Data.
const (
	DataBuyerID        = "buyer_id"
	DataSellerID       = "seller_id"
	DataReporterID     = "reporter_id"
	DataGroupID        = "group_id"
	DataSubscriptionID = "subscription_id"
	DataPurchaseID     = "purchase_id"
	DataTransactionID  = "transaction_id"
	DataAmount         = "amount"
	DataCount          = "count"
	DataReason         = "reason"
)

// Event is a domain fact produced by an aggregate mutation. Mutators return events
// instead of buffering them; the caller publishes them once the storage transaction commits.
type Event struct {
	Type        EventType
	AggregateID string
	OccurredAt  time.Time
	Data        map[string]string
}

func newEvent(t EventType, aggregateID string, at time.Time, kv ...string) Event {
	data := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			data[kv[i]] = kv[i+1]
		}
	}
	return Event{Type: t, AggregateID: aggregateID, OccurredAt: at, Data: data}
}
