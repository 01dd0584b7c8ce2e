package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost, 8)

	hash, err := hasher.Hash("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)

	assert.True(t, hasher.Verify("correct horse battery", hash))
	assert.False(t, hasher.Verify("wrong password", hash))
}

func TestPasswordTooShortRejected(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost, 8)

	_, err := hasher.Hash("short")
	assert.Error(t, err)
}

func TestPasswordTooLongRejected(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost, 8)

	_, err := hasher.Hash(strings.Repeat("x", MaxPasswordLength+1))
	assert.Error(t, err)
}

func TestPasswordHashesAreSalted(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost, 8)

	h1, err := hasher.Hash("same password here")
	require.NoError(t, err)
	h2, err := hasher.Hash("same password here")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
