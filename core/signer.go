package core

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// SignaturePrefix marks the digest scheme on the wire, GitHub style.
const SignaturePrefix = "sha256="

const secretByteLength = 32

// Sign computes the payload signature sent in the X-Signature header:
// "sha256=" + hex(HMAC-SHA256(secret, body)).
func Sign(body []byte, secret string) (string, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return "", fmt.Errorf("core: signing secret is required")
	}
	mac := hmac.New(sha256.New, []byte(trimmed))
	_, _ = mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks a received signature against the payload in constant time.
// It accepts signatures with or without the "sha256=" prefix.
func Verify(body []byte, secret string, signature string) bool {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return false
	}
	candidate := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(signature), SignaturePrefix))
	if candidate == "" {
		return false
	}
	decoded, err := hex.DecodeString(candidate)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(trimmed))
	_, _ = mac.Write(body)
	return subtle.ConstantTimeCompare(decoded, mac.Sum(nil)) == 1
}

// GenerateSecret returns a new endpoint signing secret: 32 random bytes,
// hex encoded.
func GenerateSecret() (string, error) {
	raw := make([]byte, secretByteLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate signing secret: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
