package auth

import (
	"testing"
	"time"
)

func TestJWT_RoundTrip(t *testing.T) {
	token, expiresAt, err := GenerateJWT("secret", "EQAlice", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expiry in the past: %v", expiresAt)
	}

	claims, err := ParseJWT("secret", token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.AccountID != "EQAlice" {
		t.Errorf("account: got %q", claims.AccountID)
	}
}

func TestJWT_WrongSecret(t *testing.T) {
	token, _, _ := GenerateJWT("secret", "EQAlice", time.Hour)
	if _, err := ParseJWT("other", token); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestJWT_Expired(t *testing.T) {
	token, _, _ := GenerateJWT("secret", "EQAlice", time.Nanosecond)
	time.Sleep(time.Second)
	if _, err := ParseJWT("secret", token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestJWT_DefaultExpiration(t *testing.T) {
	_, expiresAt, err := GenerateJWT("secret", "EQAlice", 0)
	if err != nil {
		t.Fatal(err)
	}
	if d := time.Until(expiresAt); d < 23*time.Hour || d > 25*time.Hour {
		t.Errorf("expected ~24h default, got %v", d)
	}
}
