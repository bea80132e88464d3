package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	raw, err := m.GenerateAccessToken("user-1", "neo")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.VerifyAccessToken(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if claims.UserID != "user-1" || claims.Username != "neo" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := NewManager("test-secret", time.Minute)
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	raw, err := m.GenerateAccessToken("user-1", "neo")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }

	if _, err := m.VerifyAccessToken(raw); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	raw, err := NewManager("secret-a", time.Hour).GenerateAccessToken("user-1", "neo")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := NewManager("secret-b", time.Hour).VerifyAccessToken(raw); err == nil {
		t.Fatalf("expected signature mismatch to be rejected")
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	claims := Claims{
		UserID:    "user-1",
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.VerifyAccessToken(raw); err != ErrInvalidTokenType {
		t.Fatalf("got %v, want ErrInvalidTokenType", err)
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	claims := Claims{
		UserID:    "user-1",
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.VerifyAccessToken(raw); err == nil {
		t.Fatalf("expected alg=none token to be rejected")
	}

	if _, err := m.VerifyAccessToken(strings.Repeat("x", 20)); err == nil {
		t.Fatalf("expected garbage token to be rejected")
	}
}
