package security

import (
	"encoding/hex"
	"errors"
	"testing"
)

func TestGenerateRefreshSecret(t *testing.T) {
	secret, err := GenerateRefreshSecret()
	if err != nil {
		t.Fatalf("GenerateRefreshSecret: %v", err)
	}
	if len(secret) != 2*refreshSecretBytes {
		t.Errorf("secret length = %d, want %d hex chars", len(secret), 2*refreshSecretBytes)
	}
	if _, err := hex.DecodeString(secret); err != nil {
		t.Errorf("secret %q should be hex: %v", secret, err)
	}
}

func TestGenerateRefreshSecret_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		secret, err := GenerateRefreshSecret()
		if err != nil {
			t.Fatalf("GenerateRefreshSecret: %v", err)
		}
		if seen[secret] {
			t.Fatalf("duplicate secret generated: %q", secret)
		}
		seen[secret] = true
	}
}

func TestRefreshSecret_HashRoundTrip(t *testing.T) {
	h := testHasher()
	secret, err := GenerateRefreshSecret()
	if err != nil {
		t.Fatalf("GenerateRefreshSecret: %v", err)
	}
	hash, err := h.Hash([]byte(secret))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == secret {
		t.Fatal("hash must not equal the plaintext secret")
	}
	if err := h.Compare(hash, []byte(secret)); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	other, _ := GenerateRefreshSecret()
	if err := h.Compare(hash, []byte(other)); !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("Compare with other secret: want ErrHashMismatch, got %v", err)
	}
}
