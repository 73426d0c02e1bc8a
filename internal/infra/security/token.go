package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"seat-marketplace/internal/domain/ports/adapter"
)

const (
	// DefaultTokenBytes is the entropy of generated access-token secrets.
	DefaultTokenBytes = 32
	minHashKeyBytes   = 16
)

var ErrHashKeyTooShort = errors.New("token hash key too short")

var _ adapter.TokenHasher = (*HMACTokenHasher)(nil)

// HMACTokenHasher stores access-token secrets as HMAC-SHA256(secret, key) hex digests.
// The server-side key plays the role of the salt.
type HMACTokenHasher struct {
	key []byte
}

func NewHMACTokenHasher(key string) (*HMACTokenHasher, error) {
	k := strings.TrimSpace(key)
	if len(k) < minHashKeyBytes {
		return nil, ErrHashKeyTooShort
	}
	return &HMACTokenHasher{key: []byte(k)}, nil
}

func (h *HMACTokenHasher) Hash(secret string) string {
	m := hmac.New(sha256.New, h.key)
	_, _ = m.Write([]byte(secret))
	return hex.EncodeToString(m.Sum(nil))
}

// NewOpaqueToken returns a URL-safe random secret of nBytes entropy.
func NewOpaqueToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = DefaultTokenBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewULID returns a time-sortable id.
func NewULID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
