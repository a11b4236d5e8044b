package core

import (
	"strings"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	body := []byte(`{"event":"customer.created","data":{"id":"c-1"}}`)
	secret := "super-secret-key"

	signature, err := Sign(body, secret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if !strings.HasPrefix(signature, SignaturePrefix) {
		t.Fatalf("expected %q prefix, got %q", SignaturePrefix, signature)
	}
	if !Verify(body, secret, signature) {
		t.Fatal("expected signature to verify")
	}
	if !Verify(body, secret, strings.TrimPrefix(signature, SignaturePrefix)) {
		t.Fatal("expected bare signature to verify")
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	body := []byte(`{"event":"customer.created"}`)
	signature, err := Sign(body, "secret")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	tampered := append([]byte(nil), body...)
	tampered[0] ^= 0x01
	if Verify(tampered, "secret", signature) {
		t.Fatal("expected tampered payload to fail verification")
	}

	flipped := []byte(signature)
	flipped[len(flipped)-1] ^= 0x01
	if Verify(body, "secret", string(flipped)) {
		t.Fatal("expected flipped signature byte to fail verification")
	}
	if Verify(body, "other-secret", signature) {
		t.Fatal("expected wrong secret to fail verification")
	}
}

func TestSignRequiresSecret(t *testing.T) {
	if _, err := Sign([]byte("body"), "  "); err == nil {
		t.Fatal("expected missing secret error")
	}
	if Verify([]byte("body"), "", "sha256=abc") {
		t.Fatal("expected verification to fail without a secret")
	}
}

func TestGenerateSecret(t *testing.T) {
	first, err := GenerateSecret()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(first) != secretByteLength*2 {
		t.Fatalf("expected %d hex chars, got %d", secretByteLength*2, len(first))
	}
	second, err := GenerateSecret()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct secrets")
	}
}
