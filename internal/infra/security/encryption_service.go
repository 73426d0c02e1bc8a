package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"seat-marketplace/internal/domain/ports/adapter"
)

var _ adapter.InstructionVault = (*EncryptionService)(nil)

// sealedPrefix versions the stored format so the key or cipher can change later.
const sealedPrefix = "v1:"

// EncryptionService seals subscription access instructions at rest with AES-GCM.
// The subscription id is bound as additional data, so a sealed value copied to
// another subscription row fails to open.
type EncryptionService struct {
	gcm cipher.AEAD
}

// NewEncryptionService takes a 16, 24 or 32 byte key (AES-128/192/256).
func NewEncryptionService(key string) (*EncryptionService, error) {
	k := []byte(key)
	if n := len(k); n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &EncryptionService{gcm: gcm}, nil
}

// Seal returns "v1:" + base64(nonce || ciphertext).
func (e *EncryptionService) Seal(subscriptionID, plaintext string) (string, error) {
	if subscriptionID == "" {
		return "", errors.New("subscription id required")
	}
	if plaintext == "" {
		return "", errors.New("nothing to seal")
	}
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := e.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(subscriptionID))
	return sealedPrefix + base64.StdEncoding.EncodeToString(ct), nil
}

func (e *EncryptionService) Open(subscriptionID, sealed string) (string, error) {
	enc, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", errors.New("unknown sealed format")
	}
	data, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := e.gcm.NonceSize()
	if len(data) < ns {
		return "", errors.New("ciphertext too short")
	}
	pt, err := e.gcm.Open(nil, data[:ns], data[ns:], []byte(subscriptionID))
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}
