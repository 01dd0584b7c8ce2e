package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/notifmoo/notif/internal/apperrors"
)

const (
	// MaxPasswordLength is the bcrypt input limit.
	MaxPasswordLength = 72
	// DefaultBcryptCost is the default cost for bcrypt hashing.
	DefaultBcryptCost = 12
)

// PasswordHasher hashes and verifies dashboard passwords.
type PasswordHasher struct {
	cost      int
	minLength int
}

// NewPasswordHasher creates a hasher with the given cost and minimum length.
func NewPasswordHasher(cost, minLength int) *PasswordHasher {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost, minLength: minLength}
}

// Hash validates the password policy and returns the bcrypt hash.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if len(password) < h.minLength {
		return "", apperrors.Validation("password too short")
	}
	if len(password) > MaxPasswordLength {
		return "", apperrors.Validation("password too long")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", apperrors.Internal(err)
	}
	return string(hash), nil
}

// Verify reports whether password matches the stored hash.
func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
