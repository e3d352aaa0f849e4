// ABOUTME: Argon2id password hashing for member accounts (OWASP parameters).
// ABOUTME: Hasher bounds concurrent hash operations; each allocates ~19 MiB.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Memory      = 19456 // KiB (19 MiB)
	argon2Iterations  = 2
	argon2Parallelism = 1
	argon2SaltLen     = 16
	argon2KeyLen      = 32
)

var (
	// ErrInvalidHash is returned for a stored hash that is not argon2id PHC format.
	ErrInvalidHash = errors.New("invalid hash format")
	// ErrBusy is returned by Hasher when every hashing slot is in use.
	ErrBusy = errors.New("password hasher busy")
)

// HashPassword hashes password using argon2id. Returns a PHC-format string.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argon2Iterations, argon2Memory, argon2Parallelism, argon2KeyLen)
	hash := fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argon2Memory, argon2Iterations, argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return hash, nil
}

// VerifyPassword checks password against a PHC-format argon2id hash.
// Returns (false, nil) for a wrong password.
func VerifyPassword(password, hash string) (bool, error) {
	// $argon2id$v=19$m=M,t=T,p=P$salt$key
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}
	var m, t, p uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false, fmt.Errorf("parse params: %w", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	expectedKey, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("decode key: %w", err)
	}

	actualKey := argon2.IDKey([]byte(password), salt, t, m, uint8(p), uint32(len(expectedKey))) //nolint:gosec // G115: p is from our own hash format
	return subtle.ConstantTimeCompare(expectedKey, actualKey) == 1, nil
}

// Hasher runs argon2id with a fixed number of concurrent slots. It never
// blocks: when all slots are taken it returns ErrBusy so HTTP handlers can
// answer 503 instead of queueing memory-heavy work.
type Hasher struct {
	sem chan struct{}
}

// NewHasher returns a Hasher allowing maxConcurrent simultaneous operations.
func NewHasher(maxConcurrent int) *Hasher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Hasher{sem: make(chan struct{}, maxConcurrent)}
}

// Hash is HashPassword bounded by the slot count.
func (h *Hasher) Hash(password string) (string, error) {
	if !h.acquire() {
		return "", ErrBusy
	}
	defer h.release()
	return HashPassword(password)
}

// Verify is VerifyPassword bounded by the slot count.
func (h *Hasher) Verify(password, hash string) (bool, error) {
	if !h.acquire() {
		return false, ErrBusy
	}
	defer h.release()
	return VerifyPassword(password, hash)
}

func (h *Hasher) acquire() bool {
	select {
	case h.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (h *Hasher) release() { <-h.sem }
