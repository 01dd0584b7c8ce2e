package realtime

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectedDigest(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSignPrivateChannel(t *testing.T) {
	signer := NewSigner("top-secret")
	sig := signer.Sign("123.abc", "private-orders", "")
	assert.Equal(t, expectedDigest("top-secret", "123.abc:private-orders"), sig)
}

func TestSignPresenceChannelIncludesChannelData(t *testing.T) {
	signer := NewSigner("top-secret")
	sig := signer.Sign("123.abc", "presence-lobby", `{"user_id":"u1"}`)
	assert.Equal(t, expectedDigest("top-secret", `123.abc:presence-lobby:{"user_id":"u1"}`), sig)
}

func TestSignPresenceChannelDefaultsChannelData(t *testing.T) {
	// Missing channel_data signs as the literal "{}".
	signer := NewSigner("top-secret")
	sig := signer.Sign("123.abc", "presence-lobby", "")
	assert.Equal(t, expectedDigest("top-secret", "123.abc:presence-lobby:{}"), sig)
}

func TestVerifyPublicChannelAlwaysPasses(t *testing.T) {
	signer := NewSigner("top-secret")
	assert.NoError(t, signer.Verify("notifications", "123.abc", "", ""))
	assert.NoError(t, signer.Verify("notifications", "123.abc", "garbage", ""))
}

func TestVerifyMissingAuthRejected(t *testing.T) {
	signer := NewSigner("top-secret")
	assert.Error(t, signer.Verify("private-orders", "123.abc", "", ""))
	assert.Error(t, signer.Verify("presence-lobby", "123.abc", "", ""))
}

func TestVerifyRoundTrip(t *testing.T) {
	signer := NewSigner("top-secret")

	sig := signer.Sign("123.abc", "private-orders", "")
	require.NoError(t, signer.Verify("private-orders", "123.abc", sig, ""))

	sig = signer.Sign("123.abc", "presence-lobby", `{"user_id":"u1"}`)
	require.NoError(t, signer.Verify("presence-lobby", "123.abc", sig, `{"user_id":"u1"}`))
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	signer := NewSigner("top-secret")
	sig := signer.Sign("123.abc", "private-orders", "")

	assert.Error(t, signer.Verify("private-orders", "456.def", sig, ""))
	assert.Error(t, signer.Verify("private-other", "123.abc", sig, ""))
	assert.Error(t, signer.Verify("private-orders", "123.abc", sig+"00", ""))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	sig := NewSigner("secret-a").Sign("123.abc", "private-orders", "")
	assert.Error(t, NewSigner("secret-b").Verify("private-orders", "123.abc", sig, ""))
}

func TestVerifyPresenceMissingChannelDataUsesEmptyString(t *testing.T) {
	// Verification substitutes "" while signing substitutes "{}", so a
	// signature produced without channel_data cannot verify without it.
	signer := NewSigner("top-secret")

	sig := signer.Sign("123.abc", "presence-lobby", "")
	assert.Error(t, signer.Verify("presence-lobby", "123.abc", sig, ""))

	manual := expectedDigest("top-secret", "123.abc:presence-lobby:")
	assert.NoError(t, signer.Verify("presence-lobby", "123.abc", manual, ""))
}
