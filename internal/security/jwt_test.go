package security

import (
	"strings"
	"testing"
	"time"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func TestSignAndParseSessionToken(t *testing.T) {
	mgr := NewJWTManager("mailauth", "mailauth-api", testJWTSecret, time.Hour)

	raw, err := mgr.SignSessionToken("user@example.com")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := mgr.ParseSessionToken(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user@example.com" {
		t.Errorf("expected subject user@example.com, got %s", claims.Subject)
	}
	if claims.Issuer != "mailauth" {
		t.Errorf("expected issuer mailauth, got %s", claims.Issuer)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(time.Now()) {
		t.Error("expected future expiry")
	}
}

func TestParseSessionTokenRejectsExpired(t *testing.T) {
	mgr := NewJWTManager("mailauth", "mailauth-api", testJWTSecret, -time.Minute)

	raw, err := mgr.SignSessionToken("user@example.com")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.ParseSessionToken(raw); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseSessionTokenRejectsWrongSecret(t *testing.T) {
	signer := NewJWTManager("mailauth", "mailauth-api", testJWTSecret, time.Hour)
	verifier := NewJWTManager("mailauth", "mailauth-api", strings.Repeat("x", 32), time.Hour)

	raw, err := signer.SignSessionToken("user@example.com")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.ParseSessionToken(raw); err == nil {
		t.Fatal("expected signature mismatch to fail")
	}
}

func TestParseSessionTokenRejectsWrongAudience(t *testing.T) {
	signer := NewJWTManager("mailauth", "other-api", testJWTSecret, time.Hour)
	verifier := NewJWTManager("mailauth", "mailauth-api", testJWTSecret, time.Hour)

	raw, err := signer.SignSessionToken("user@example.com")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.ParseSessionToken(raw); err == nil {
		t.Fatal("expected audience mismatch to fail")
	}
}

func TestParseSessionTokenRejectsGarbage(t *testing.T) {
	mgr := NewJWTManager("mailauth", "mailauth-api", testJWTSecret, time.Hour)
	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := mgr.ParseSessionToken(raw); err == nil {
			t.Errorf("expected parse failure for %q", raw)
		}
	}
}
