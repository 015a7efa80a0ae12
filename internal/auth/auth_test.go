package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestHMACVerifier_RoundTrip(t *testing.T) {
	v := NewHMACVerifier("secret")

	token, err := v.Sign("ops-1", []string{"operator"}, time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := v.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "ops-1" || !claims.HasRole("operator") || claims.HasRole("admin") {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestHMACVerifier_Rejects(t *testing.T) {
	v := NewHMACVerifier("secret")

	expired, _ := v.Sign("ops-1", nil, -time.Minute)
	if _, err := v.Validate(expired); err == nil {
		t.Error("expired token must be rejected")
	}

	foreign, _ := NewHMACVerifier("other").Sign("ops-1", nil, time.Minute)
	if _, err := v.Validate(foreign); err == nil {
		t.Error("token signed with another secret must be rejected")
	}

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: hmacIssuer, Subject: "ops-1"},
	})
	signed, _ := noExpiry.SignedString([]byte("secret"))
	if _, err := v.Validate(signed); err == nil {
		t.Error("token without expiry must be rejected")
	}
}

func TestChain(t *testing.T) {
	first := NewHMACVerifier("one")
	second := NewHMACVerifier("two")
	token, _ := second.Sign("ops-2", nil, time.Minute)

	claims, err := Chain{nil, first, second}.Validate(token)
	if err != nil || claims.Subject != "ops-2" {
		t.Errorf("expected fallback verifier to accept, got %v", err)
	}

	if _, err := (Chain{}).Validate(token); !errors.Is(err, ErrNoVerifier) {
		t.Errorf("expected ErrNoVerifier, got %v", err)
	}
}

func TestHMACVerifier_RejectsOtherAlgorithms(t *testing.T) {
	v := NewHMACVerifier("secret")
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    hmacIssuer,
			Subject:   "ops-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := tok.SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Validate(signed); err == nil {
		t.Error("HS512 token must be rejected")
	}
}
