package model

import (
	"time"

	"seat-marketplace/internal/domain"
)

type TokenState string

const (
	TokenStateActive  TokenState = "active"
	TokenStateUsed    TokenState = "used"
	TokenStateExpired TokenState = "expired"
)

// AccessToken is a single-use, time-boxed credential for viewing a purchase's access
// instructions. Only TokenHash is stored; the raw secret is handed out once at creation.
type AccessToken struct {
	ID         string
	PurchaseID string
	TokenHash  string
	ExpiresAt  time.Time
	Used       bool
	UsedAt     *time.Time
	IPAddress  *string
	UserAgent  *string
	CreatedAt  time.Time
}

func NewAccessToken(id, purchaseID, tokenHash string, ttl time.Duration, now time.Time) (*AccessToken, error) {
	switch {
	case id == "":
		return nil, domain.Invalid("id", "required")
	case purchaseID == "":
		return nil, domain.Invalid("purchase_id", "required")
	case tokenHash == "":
		return nil, domain.Invalid("token_hash", "required")
	case ttl <= 0:
		return nil, domain.Invalid("ttl", "must be positive")
	}
	return &AccessToken{
		ID:         id,
		PurchaseID: purchaseID,
		TokenHash:  tokenHash,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}, nil
}

func (t *AccessToken) IsExpired(now time.Time) bool { return now.After(t.ExpiresAt) }

// State derives the token's lifecycle state. Expiry wins over use.
func (t *AccessToken) State(now time.Time) TokenState {
	switch {
	case t.IsExpired(now):
		return TokenStateExpired
	case t.Used:
		return TokenStateUsed
	default:
		return TokenStateActive
	}
}

// Check returns the TokenError a verification at now must fail with, or nil.
func (t *AccessToken) Check(now time.Time) error {
	switch t.State(now) {
	case TokenStateExpired:
		return &domain.TokenError{Reason: domain.TokenExpired}
	case TokenStateUsed:
		return &domain.TokenError{Reason: domain.TokenUsed}
	}
	return nil
}

// MarkUsed consumes the token. It is the only mutator.
func (t *AccessToken) MarkUsed(now time.Time, ip, userAgent string) error {
	if t.Used {
		return domain.Rule(domain.RuleTokenUsed)
	}
	if t.IsExpired(now) {
		return domain.Rule(domain.RuleTokenExpired)
	}
	t.Used = true
	t.UsedAt = &now
	if ip != "" {
		t.IPAddress = &ip
	}
	if userAgent != "" {
		t.UserAgent = &userAgent
	}
	return nil
}
