package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/innkeep/hotel-system/internal/core/domain"
)

// DefaultBcryptCost is the minimum work factor accepted in production.
const DefaultBcryptCost = 12

const (
	minPasswordLen = 8
	// bcrypt only looks at the first 72 bytes; longer inputs are rejected.
	maxPasswordLen = 72
)

// Clock returns the current instant. Services read time only through it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// CredentialVerifier hashes and checks passwords and derives reset-token digests.
type CredentialVerifier struct {
	cost int
}

// NewCredentialVerifier returns a verifier using the given bcrypt cost.
// A non-positive cost selects DefaultBcryptCost.
func NewCredentialVerifier(cost int) *CredentialVerifier {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	return &CredentialVerifier{cost: cost}
}

// Hash returns a salted adaptive hash of plaintext.
func (v *CredentialVerifier) Hash(plaintext string) (string, error) {
	if err := ValidatePassword(plaintext); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), v.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. Malformed hashes never match.
func (v *CredentialVerifier) Verify(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// HashResetToken returns the SHA-256 hex digest stored in place of a raw reset token.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ValidatePassword enforces the password length policy.
func ValidatePassword(plaintext string) error {
	if len(plaintext) < minPasswordLen || len(plaintext) > maxPasswordLen {
		return domain.ErrValidation
	}
	return nil
}

// newSecret returns n random bytes hex-encoded.
func newSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
