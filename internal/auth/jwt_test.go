package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTIssueAndValidate(t *testing.T) {
	manager := NewJWTManager("test-secret-key-at-least-32-chars!!", time.Hour)
	userID := uuid.New()

	token, err := manager.Issue(userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := manager.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestJWTValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTManager("secret-one-secret-one-secret-one!!!", time.Hour)
	validator := NewJWTManager("secret-two-secret-two-secret-two!!!", time.Hour)

	token, err := issuer.Issue(uuid.New())
	require.NoError(t, err)

	_, err = validator.Validate(token)
	assert.Error(t, err)
}

func TestJWTValidateRejectsExpired(t *testing.T) {
	manager := NewJWTManager("test-secret-key-at-least-32-chars!!", -time.Minute)

	token, err := manager.Issue(uuid.New())
	require.NoError(t, err)

	_, err = manager.Validate(token)
	assert.Error(t, err)
}

func TestJWTValidateRejectsGarbage(t *testing.T) {
	manager := NewJWTManager("test-secret-key-at-least-32-chars!!", time.Hour)

	_, err := manager.Validate("not.a.token")
	assert.Error(t, err)

	_, err = manager.Validate("")
	assert.Error(t, err)
}
