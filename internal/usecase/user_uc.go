package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"seat-marketplace/internal/domain"
	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/repository"
	"seat-marketplace/internal/infra/logging"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase links marketplace users to the Telegram chat their notifications go to.
type UserUseCase interface {
	LinkTelegram(ctx context.Context, userID string, tgID int64, username string) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	tm    repository.TransactionManager
	now   func() time.Time
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, tm repository.TransactionManager, logger *zerolog.Logger) *userUC {
	return &userUC{
		users: users,
		tm:    tm,
		now:   clockOrDefault(nil),
		log:   logger,
	}
}

// LinkTelegram creates the user on first contact or moves an existing user to a new chat.
// A Telegram account can belong to one user only.
func (u *userUC) LinkTelegram(ctx context.Context, userID string, tgID int64, username string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.LinkTelegram")()

	if strings.TrimSpace(userID) == "" {
		return nil, domain.Invalid("user_id", "required")
	}
	if tgID <= 0 {
		return nil, domain.Invalid("telegram_id", "must be positive")
	}

	var user *model.User
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		other, err := u.users.FindByTelegramID(ctx, tx, tgID)
		switch {
		case err == nil && other.ID != userID:
			return domain.ErrAlreadyExists
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return err
		}

		usr, err := u.users.FindByID(ctx, tx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			usr, err = model.NewUser(userID, tgID, username, u.now())
			if err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		usr.TelegramID = tgID
		if username != "" {
			usr.Username = username
		}
		if err := u.users.Save(ctx, tx, usr); err != nil {
			u.log.Error().Err(err).Str("user_id", userID).Msg("failed to save user")
			return err
		}
		user = usr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *userUC) Get(ctx context.Context, userID string) (*model.User, error) {
	usr, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, notFoundAs(err, "user", userID)
	}
	return usr, nil
}
