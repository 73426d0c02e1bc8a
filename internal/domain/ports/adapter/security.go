package adapter

// InstructionVault seals access instructions at rest and opens them on delivery.
// A sealed value only opens for the subscription it was sealed for.
type InstructionVault interface {
	Seal(subscriptionID, plaintext string) (string, error)
	Open(subscriptionID, sealed string) (string, error)
}

// TokenHasher derives the stored fingerprint of an access token secret.
type TokenHasher interface {
	Hash(secret string) string
}
