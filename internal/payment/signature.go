package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the webhook HMAC computed by Paystack.
const SignatureHeader = "x-paystack-signature"

// ComputeSignature returns the hex HMAC-SHA512 of body keyed with secret.
func ComputeSignature(body []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the raw body. With no secret
// configured every payload is accepted; that mode is meant for local
// development only.
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" {
		return true
	}
	provided := strings.ToLower(strings.TrimSpace(signature))
	if provided == "" {
		return false
	}
	expected := ComputeSignature(body, secret)
	return hmac.Equal([]byte(expected), []byte(provided))
}
