// Package auth implements dashboard authentication: password hashing, JWT
// issue and validation, and the register/login service.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/notifmoo/notif/internal/apperrors"
)

// TokenClaims are the JWT claims carried by dashboard tokens.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// JWTManager issues and validates dashboard tokens.
type JWTManager struct {
	secretKey []byte
	expiry    time.Duration
	issuer    string
}

// NewJWTManager creates a JWT manager signing with HS256.
func NewJWTManager(secretKey string, expiry time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		expiry:    expiry,
		issuer:    "notif",
	}
}

// Issue generates a token whose subject is the user id.
func (m *JWTManager) Issue(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindAuth, "failed to sign token", err)
	}
	return signed, nil
}

// Validate parses a token and returns the user id it was issued for.
func (m *JWTManager) Validate(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.Auth("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return uuid.Nil, apperrors.Wrap(apperrors.KindAuth, "invalid token", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return uuid.Nil, apperrors.Auth("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apperrors.Auth("invalid token subject")
	}
	return userID, nil
}
