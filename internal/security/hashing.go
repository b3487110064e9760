package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrHashMismatch is returned by Compare when the password does not match the hash.
	ErrHashMismatch = errors.New("hash mismatch")
	// ErrMalformedHash is returned by Compare when the stored hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed argon2id hash")
)

// Hasher hashes and verifies secrets using Argon2id. It covers both password
// hashes and refresh-secret hashes. Callers must not log or persist plaintext
// inputs.
type Hasher struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// NewHasher returns a Hasher with the RFC 9106 low-memory parameters
// (64 MiB, 1 pass, 4 lanes), a reasonable default for interactive login.
func NewHasher() *Hasher {
	return &Hasher{
		Memory:      64 * 1024,
		Time:        1,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hash produces an Argon2id hash of secret in PHC string format
// ($argon2id$v=19$m=...,t=...,p=...$salt$key). The salt is fresh random per
// call, so two hashes of the same secret differ. Fails only if the system
// random source fails.
func (h *Hasher) Hash(secret []byte) (string, error) {
	salt := make([]byte, h.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey(secret, salt, h.Time, h.Memory, h.Parallelism, h.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Time, h.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Compare verifies secret against the stored PHC-encoded hash using
// constant-time comparison of the derived keys. Returns nil on match,
// ErrHashMismatch on mismatch, and ErrMalformedHash when encoded cannot be
// parsed. Callers that only need a yes/no treat any non-nil error as no match.
func (h *Hasher) Compare(encoded string, secret []byte) error {
	params, salt, key, err := decodeHash(encoded)
	if err != nil {
		return err
	}
	derived := argon2.IDKey(secret, salt, params.Time, params.Memory, params.Parallelism, uint32(len(key)))
	if subtle.ConstantTimeCompare(derived, key) != 1 {
		return ErrHashMismatch
	}
	return nil
}

type hashParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
}

func decodeHash(encoded string) (hashParams, []byte, []byte, error) {
	var p hashParams
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, ErrMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	if version != argon2.Version {
		return p, nil, nil, ErrMalformedHash
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	if len(salt) == 0 || len(key) == 0 {
		return p, nil, nil, ErrMalformedHash
	}
	return p, salt, key, nil
}
