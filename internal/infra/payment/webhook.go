package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Callback is the provider's notification about a payment session outcome.
type Callback struct {
	TransactionID string `json:"transaction_id"`
	PaymentID     string `json:"payment_id"`
	Status        string `json:"status"` // "completed" or "failed"
	Reason        string `json:"reason,omitempty"`
}

// SignCallback returns hex(HMAC-SHA256(transaction_id|payment_id|status)).
func SignCallback(secret string, c Callback) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(c.TransactionID + "|" + c.PaymentID + "|" + c.Status))
	return hex.EncodeToString(h.Sum(nil))
}

func VerifyCallbackSignature(secret string, c Callback, signature string) bool {
	expected, err := hex.DecodeString(SignCallback(secret, c))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
