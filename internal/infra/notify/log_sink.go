package notify

import (
	"context"

	"github.com/rs/zerolog"

	"seat-marketplace/internal/domain/ports/adapter"
)

var _ adapter.NotificationSink = (*LogSink)(nil)

// LogSink writes notifications to the log. Used when no Telegram bot is configured.
type LogSink struct {
	log *zerolog.Logger
}

func NewLogSink(logger *zerolog.Logger) *LogSink {
	l := logger.With().Str("component", "log_sink").Logger()
	return &LogSink{log: &l}
}

func (s *LogSink) Notify(ctx context.Context, n adapter.Notification) error {
	s.log.Info().
		Str("user_id", n.UserID).
		Str("type", n.Type).
		Str("related_type", n.RelatedType).
		Str("related_id", n.RelatedID).
		Str("title", n.Title).
		Msg("notification")
	return nil
}
