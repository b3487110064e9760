package security

import (
	"errors"
	"strings"
	"testing"
)

// testHasher returns a Hasher with low-cost parameters so tests stay fast.
func testHasher() *Hasher {
	return &Hasher{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestHasher_HashAndCompare(t *testing.T) {
	h := testHasher()
	password := []byte("secret123")
	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" {
		t.Fatal("Hash returned empty")
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash %q should be PHC argon2id encoded", hash)
	}
	if err := h.Compare(hash, password); err != nil {
		t.Fatalf("Compare: %v", err)
	}
}

func TestHasher_CompareWrongPassword(t *testing.T) {
	h := testHasher()
	hash, _ := h.Hash([]byte("secret123"))
	err := h.Compare(hash, []byte("wrong"))
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("Compare with wrong password: want ErrHashMismatch, got %v", err)
	}
}

func TestHasher_HashesAreSalted(t *testing.T) {
	h := testHasher()
	h1, err := h.Hash([]byte("same-input"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := h.Hash([]byte("same-input"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same input should differ (fresh salt per call)")
	}
	if err := h.Compare(h1, []byte("same-input")); err != nil {
		t.Errorf("Compare h1: %v", err)
	}
	if err := h.Compare(h2, []byte("same-input")); err != nil {
		t.Errorf("Compare h2: %v", err)
	}
}

func TestHasher_CompareMalformedHash(t *testing.T) {
	h := testHasher()
	testCases := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"not a hash", "password123"},
		{"wrong algorithm", "$bcrypt$v=19$m=8192,t=1,p=1$c2FsdA$a2V5"},
		{"missing sections", "$argon2id$v=19$m=8192,t=1,p=1"},
		{"bad version", "$argon2id$v=99$m=8192,t=1,p=1$c2FsdA$a2V5"},
		{"bad params", "$argon2id$v=19$nope$c2FsdA$a2V5"},
		{"bad salt base64", "$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5"},
		{"bad key base64", "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$!!!"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.Compare(tc.encoded, []byte("whatever"))
			if !errors.Is(err, ErrMalformedHash) {
				t.Errorf("Compare(%q): want ErrMalformedHash, got %v", tc.encoded, err)
			}
		})
	}
}

func TestHasher_CompareUsesEncodedParams(t *testing.T) {
	// Hashes written with one parameter set must still verify after the
	// hasher's defaults change: Compare reads params from the encoding.
	old := &Hasher{Memory: 16 * 1024, Time: 2, Parallelism: 2, SaltLength: 16, KeyLength: 32}
	hash, err := old.Hash([]byte("secret123"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := testHasher().Compare(hash, []byte("secret123")); err != nil {
		t.Fatalf("Compare with different hasher params: %v", err)
	}
}
