package utils

import (
	"errors"
	"testing"
	"time"
)

func TestJWTManager_IssueAndParse(t *testing.T) {
	m := NewJWTManager("secret", "content-gen-api")

	token, err := m.IssueToken("user-1", "free", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID != "user-1" || claims.PlanType != "free" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("secret", "content-gen-api")
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := m.IssueToken("user-1", "free", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	m.now = time.Now
	if _, err := m.ParseToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestJWTManager_WrongSecretOrIssuer(t *testing.T) {
	token, _ := NewJWTManager("secret", "content-gen-api").IssueToken("user-1", "", time.Hour)

	if _, err := NewJWTManager("other", "content-gen-api").ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: expected ErrInvalidToken, got %v", err)
	}
	if _, err := NewJWTManager("secret", "someone-else").ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong issuer: expected ErrInvalidToken, got %v", err)
	}
	if _, err := NewJWTManager("secret", "content-gen-api").ParseToken(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("empty token: expected ErrMissingToken, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  xyz ": "xyz",
		"Basic abc":    "",
		"":             "",
	}
	for in, want := range cases {
		if got := BearerToken(in); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}
