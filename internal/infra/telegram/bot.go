package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"seat-marketplace/internal/config"
	"seat-marketplace/internal/domain"
	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*Bot)(nil)

// LinkRedeemer resolves a one-time link code to the user it was issued for.
type LinkRedeemer interface {
	Redeem(ctx context.Context, code string) (string, error)
}

// UserLinker attaches a Telegram chat to a marketplace user.
type UserLinker interface {
	LinkTelegram(ctx context.Context, userID string, tgID int64, username string) (*model.User, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot delivers notifications and handles the /start deep link that connects a chat to an account.
type Bot struct {
	api     *tgbotapi.BotAPI
	send    sender
	users   UserLinker
	codes   LinkRedeemer
	workers int
	log     *zerolog.Logger
}

const (
	msgLinked       = "Your marketplace account is connected. You will get purchase and access updates here."
	msgNeedCode     = "Open the Telegram link from your marketplace profile to connect this chat."
	msgBadCode      = "This link has expired or was already used. Request a new one from your profile."
	msgChatTaken    = "This chat is already connected to another marketplace account."
	msgLinkFailed   = "Could not connect your account right now. Please try again later."
	msgHelp         = "Commands:\n/start <code> - connect this chat to your marketplace account\n/help - show this message"
	msgUnknown      = "Unknown command. Send /help for the list of commands."
	defaultWorkers  = 4
	updateQueueSize = 100
)

func NewBot(cfg config.TelegramConfig, users UserLinker, codes LinkRedeemer, logger *zerolog.Logger) (*Bot, error) {
	if users == nil || codes == nil {
		return nil, errors.New("telegram: user linker and link codes are required")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "telegram_bot").Str("bot", api.Self.UserName).Logger()
	workers := cfg.UpdateWorkers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Bot{api: api, send: api, users: users, codes: codes, workers: workers, log: &l}, nil
}

func (b *Bot) SendMessage(ctx context.Context, telegramID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.send.Send(tgbotapi.NewMessage(telegramID, text))
	return err
}

// Run polls for updates and fans them out to a fixed set of workers until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	queue := make(chan tgbotapi.Update, updateQueueSize)
	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for update := range queue {
				if err := b.handleUpdate(ctx, update); err != nil {
					b.log.Warn().Err(err).Int("worker", worker).Int("update_id", update.UpdateID).Msg("handle update")
				}
			}
		}(i + 1)
	}

	b.log.Info().Int("workers", b.workers).Msg("polling started")
	for {
		select {
		case update := <-updates:
			select {
			case queue <- update:
			case <-ctx.Done():
			}
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			close(queue)
			wg.Wait()
			b.log.Info().Msg("polling stopped")
			return nil
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil || !msg.IsCommand() {
		return nil
	}
	return b.SendMessage(ctx, msg.Chat.ID, b.reply(ctx, msg))
}

func (b *Bot) reply(ctx context.Context, msg *tgbotapi.Message) string {
	switch msg.Command() {
	case "start":
		code := strings.TrimSpace(msg.CommandArguments())
		if code == "" {
			return msgNeedCode
		}
		return b.link(ctx, msg.From, msg.Chat.ID, code)
	case "help":
		return msgHelp
	default:
		return msgUnknown
	}
}

func (b *Bot) link(ctx context.Context, from *tgbotapi.User, chatID int64, code string) string {
	userID, err := b.codes.Redeem(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return msgBadCode
		}
		b.log.Error().Err(err).Msg("redeem link code")
		return msgLinkFailed
	}
	username := from.UserName
	if username == "" {
		username = strings.TrimSpace(from.FirstName + " " + from.LastName)
	}
	if _, err := b.users.LinkTelegram(ctx, userID, chatID, username); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return msgChatTaken
		}
		b.log.Error().Err(err).Str("user_id", userID).Msg("link telegram chat")
		return msgLinkFailed
	}
	b.log.Info().Str("user_id", userID).Msg("telegram chat linked")
	return msgLinked
}

// Username is the bot's @handle, used to build t.me deep links.
func (b *Bot) Username() string { return b.api.Self.UserName }
