package model

import (
	"strings"
	"time"

	"seat-marketplace/internal/domain"
)

// User is a marketplace member. TelegramID is optional and only used to route notifications.
type User struct {
	ID           string
	TelegramID   int64
	Username     string
	RegisteredAt time.Time
}

func NewUser(id string, tgID int64, username string, now time.Time) (*User, error) {
	if id == "" {
		return nil, domain.Invalid("id", "required")
	}
	if tgID < 0 {
		return nil, domain.Invalid("telegram_id", "must not be negative")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.Invalid("username", "required")
	}
	return &User{ID: id, TelegramID: tgID, Username: username, RegisteredAt: now}, nil
}

func (u *User) IsZero() bool      { return u == nil || u.ID == "" }
func (u *User) HasTelegram() bool { return u != nil && u.TelegramID > 0 }
