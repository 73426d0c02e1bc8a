package adapter

import "context"

// Notification is a user-facing message derived from a domain event.
type Notification struct {
	UserID      string
	Type        string
	Title       string
	Body        string
	RelatedType string
	RelatedID   string
}

// NotificationSink delivers notifications to users. Delivery failures are the
// caller's to log; they never roll back domain state.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification) error
}

type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, telegramID int64, text string) error
}
