package security

import (
	"crypto/rand"
	"encoding/hex"
)

// refreshSecretBytes is the entropy of a refresh secret: 32 bytes = 256 bits.
const refreshSecretBytes = 32

// GenerateRefreshSecret returns a new opaque refresh secret: 256 bits from
// crypto/rand, hex-encoded. The plaintext is sent to the client exactly once;
// only its Argon2id hash (via Hasher) is ever stored.
func GenerateRefreshSecret() (string, error) {
	b := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
