package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrMissingKey       = errors.New("missing or invalid api key")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Credentials guard a tag's collect endpoint. Secret is optional; when empty the
// body signature is not checked.
type Credentials struct {
	APIKey string
	Secret string
}

// Authorize checks the presented api key and, when a secret is configured, the
// HMAC-SHA256 signature of body. The signature may carry a "sha256=" prefix.
func (c Credentials) Authorize(apiKey string, body []byte, signature string) error {
	if apiKey == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(c.APIKey)) != 1 {
		return ErrMissingKey
	}
	if c.Secret == "" {
		return nil
	}
	if !VerifySignature(c.Secret, body, strings.TrimPrefix(signature, "sha256=")) {
		return ErrInvalidSignature
	}
	return nil
}

// ComputeSignature returns the lowercase hex encoded HMAC-SHA256 signature for body.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares a received hex signature with a freshly computed one.
func VerifySignature(secret string, body []byte, candidate string) bool {
	got, err := hex.DecodeString(candidate)
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}
