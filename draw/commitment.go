// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package draw

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// SecretBytes is the entropy of a generated commitment secret (256 bits).
const SecretBytes = 32

// HashPrefix tags a published commitment hash with its digest algorithm.
const HashPrefix = "sha256:"

var (
	ErrCommitmentMismatch = errors.New("commitment hash does not match secret")
	ErrInvalidHash        = errors.New("invalid commitment hash")
	ErrEmptySecret        = errors.New("commitment secret is empty")
)

// Commitment is a secret together with its SHA-256 digest (hex encoded).
// Only Hash may be published before the draw runs.
type Commitment struct {
	Secret string
	Hash   string
}

// NewCommitment generates a fresh random secret and its hash.
// The secret is the hex encoding of SecretBytes random bytes.
func NewCommitment() (Commitment, error) {
	b := make([]byte, SecretBytes)
	if _, err := rand.Read(b); err != nil {
		return Commitment{}, fmt.Errorf("failed to generate commitment secret: %w", err)
	}
	secret := hex.EncodeToString(b)
	return Commitment{Secret: secret, Hash: HashSecret(secret)}, nil
}

// HashSecret returns the hex SHA-256 digest of the secret's bytes.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerifyCommitment recomputes the digest of secret and compares it with hash.
// hash may carry the HashPrefix.
func VerifyCommitment(secret, hash string) error {
	if secret == "" {
		return ErrEmptySecret
	}
	want, err := ParseHash(hash)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(HashSecret(secret)), []byte(want)) {
		return ErrCommitmentMismatch
	}
	return nil
}

// FormatHash renders a stored hex digest for publication, e.g. "sha256:ab12...".
func FormatHash(hash string) string {
	if hash == "" {
		return ""
	}
	return HashPrefix + hash
}

// ParseHash accepts either a bare hex digest or a HashPrefix-tagged one and
// returns the lowercase hex digest.
func ParseHash(s string) (string, error) {
	h := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), HashPrefix))
	if len(h) != sha256.Size*2 {
		return "", fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidHash, sha256.Size*2, len(h))
	}
	if _, err := hex.DecodeString(h); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return h, nil
}
