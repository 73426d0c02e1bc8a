package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"seat-marketplace/internal/domain/ports/adapter"
	"seat-marketplace/internal/domain/ports/repository"
)

// ErrNoChat means the recipient never connected a Telegram chat.
var ErrNoChat = errors.New("recipient has no telegram chat")

var _ adapter.NotificationSink = (*TelegramSink)(nil)

// TelegramSink resolves the recipient's chat through the user store and sends the message there.
type TelegramSink struct {
	users repository.UserRepository
	bot   adapter.TelegramBotAdapter
	log   *zerolog.Logger
}

func NewTelegramSink(users repository.UserRepository, bot adapter.TelegramBotAdapter, logger *zerolog.Logger) *TelegramSink {
	l := logger.With().Str("component", "telegram_sink").Logger()
	return &TelegramSink{users: users, bot: bot, log: &l}
}

func (s *TelegramSink) Notify(ctx context.Context, n adapter.Notification) error {
	u, err := s.users.FindByID(ctx, repository.NoTX, n.UserID)
	if err != nil {
		return fmt.Errorf("lookup recipient %s: %w", n.UserID, err)
	}
	if !u.HasTelegram() {
		return ErrNoChat
	}
	if err := s.bot.SendMessage(ctx, u.TelegramID, Format(n)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	s.log.Debug().Str("user_id", n.UserID).Str("type", n.Type).Msg("notification sent")
	return nil
}

// Format renders a notification as plain text.
func Format(n adapter.Notification) string {
	if n.Title == "" {
		return n.Body
	}
	if n.Body == "" {
		return n.Title
	}
	return n.Title + "\n\n" + n.Body
}
