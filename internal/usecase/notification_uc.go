package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/adapter"
	"seat-marketplace/internal/domain/ports/repository"
	"seat-marketplace/internal/infra/metrics"
)

// Compile-time check
var _ adapter.EventPublisher = (*EventNotifier)(nil)

// Messages resolves notification texts by key.
type Messages interface {
	T(key string, args ...interface{}) string
}

// EventNotifier publishes committed domain events as user notifications.
// Each (user, type, aggregate) notification is sent at most once; delivery
// failures are logged and never reach the operation that produced the event.
type EventNotifier struct {
	sink adapter.NotificationSink
	sent repository.NotificationLogRepository
	msgs Messages
	log  *zerolog.Logger
}

func NewEventNotifier(sink adapter.NotificationSink, sent repository.NotificationLogRepository, msgs Messages, logger *zerolog.Logger) *EventNotifier {
	l := logger.With().Str("component", "event_notifier").Logger()
	return &EventNotifier{sink: sink, sent: sent, msgs: msgs, log: &l}
}

type recipientRole string

const (
	toBuyer    recipientRole = model.DataBuyerID
	toSeller   recipientRole = model.DataSellerID
	toReporter recipientRole = model.DataReporterID
)

// notificationRoute says who hears about an event. Texts live in the message
// catalog under notify.<event type>.title and notify.<event type>.body.
type notificationRoute struct {
	to          []recipientRole
	arg         string // event data key substituted into the body
	relatedType string
}

var notificationRoutes = map[model.EventType]notificationRoute{
	model.EventTransactionCreated:   {to: []recipientRole{toBuyer, toSeller}, arg: model.DataAmount, relatedType: "transaction"},
	model.EventTransactionCompleted: {to: []recipientRole{toBuyer, toSeller}, arg: model.DataAmount, relatedType: "transaction"},
	model.EventPurchaseCompleted:    {to: []recipientRole{toBuyer}, relatedType: "purchase"},
	model.EventTransactionFailed:    {to: []recipientRole{toBuyer}, arg: model.DataReason, relatedType: "transaction"},
	model.EventTransactionRefunded:  {to: []recipientRole{toBuyer, toSeller}, arg: model.DataAmount, relatedType: "transaction"},
	model.EventDisputeOpened:        {to: []recipientRole{toReporter, toSeller}, relatedType: "dispute"},
	model.EventDisputeResolved:      {to: []recipientRole{toReporter, toSeller}, relatedType: "dispute"},
	model.EventDisputeClosed:        {to: []recipientRole{toReporter, toSeller}, relatedType: "dispute"},
}

func (n *EventNotifier) PublishAll(ctx context.Context, events []model.Event) {
	for _, ev := range events {
		route, ok := notificationRoutes[ev.Type]
		if !ok {
			n.log.Debug().Str("event", string(ev.Type)).Str("aggregate_id", ev.AggregateID).Msg("event has no notification")
			continue
		}
		key := "notify." + string(ev.Type)
		var args []interface{}
		if route.arg != "" {
			v := ev.Data[route.arg]
			if v == "" {
				v = "n/a"
			}
			args = append(args, v)
		}
		title := n.msgs.T(key + ".title")
		body := n.msgs.T(key+".body", args...)
		seen := map[string]bool{}
		for _, role := range route.to {
			userID := ev.Data[string(role)]
			if userID == "" || seen[userID] {
				continue
			}
			seen[userID] = true
			n.deliver(ctx, adapter.Notification{
				UserID:      userID,
				Type:        string(ev.Type),
				Title:       title,
				Body:        body,
				RelatedType: route.relatedType,
				RelatedID:   ev.AggregateID,
			})
		}
	}
}

func (n *EventNotifier) deliver(ctx context.Context, msg adapter.Notification) {
	log := n.log.With().Str("user_id", msg.UserID).Str("type", msg.Type).Str("related_id", msg.RelatedID).Logger()

	if n.sent != nil {
		exists, err := n.sent.Exists(ctx, repository.NoTX, msg.UserID, msg.Type, msg.RelatedID)
		if err != nil {
			log.Warn().Err(err).Msg("notification log lookup failed")
		} else if exists {
			metrics.IncNotification(msg.Type, "duplicate")
			return
		}
	}

	if err := n.sink.Notify(ctx, msg); err != nil {
		metrics.IncNotification(msg.Type, "error")
		log.Error().Err(err).Msg("notification delivery failed")
		return
	}
	metrics.IncNotification(msg.Type, "sent")

	if n.sent != nil {
		if err := n.sent.Save(ctx, repository.NoTX, msg.UserID, msg.Type, msg.RelatedID); err != nil {
			log.Warn().Err(err).Msg("failed to record sent notification")
		}
	}
}
