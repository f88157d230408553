package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHMACVerify(t *testing.T) {
	secret := "super-secret"
	body := []byte(`{"hello":"world"}`)

	sig := ComputeSignature(secret, body)
	require.True(t, VerifySignature(secret, body, sig))
	require.False(t, VerifySignature(secret, body, "deadbeef"))
	require.False(t, VerifySignature(secret, body, ""))
}

func TestAuthorize(t *testing.T) {
	body := []byte(`{"event_name":"purchase"}`)
	creds := Credentials{APIKey: "key", Secret: "secret"}

	require.ErrorIs(t, creds.Authorize("", body, ""), ErrMissingKey)
	require.ErrorIs(t, creds.Authorize("nope", body, ""), ErrMissingKey)
	require.ErrorIs(t, creds.Authorize("key", body, "abc"), ErrInvalidSignature)
	require.NoError(t, creds.Authorize("key", body, ComputeSignature("secret", body)))
	require.NoError(t, creds.Authorize("key", body, "sha256="+ComputeSignature("secret", body)))

	open := Credentials{APIKey: "key"}
	require.NoError(t, open.Authorize("key", body, ""))
}
