package auth

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func signTestToken(t *testing.T, claims jwt.Claims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	tokenStr, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	v := NewTokenVerifier(testSigningKey, 0)
	tok, err := v.Issue("12-3456-7890-1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "12-3456-7890-1234" {
		t.Errorf("expected identity 12-3456-7890-1234, got %s", id)
	}
}

func TestIssue_ExpiresAfterTTL(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	v := NewTokenVerifier(testSigningKey, 0, WithClock(func() time.Time { return issued }))
	tok, err := v.Issue("user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time); got != 24*time.Hour {
		t.Errorf("expected 24h lifetime, got %s", got)
	}

	later := NewTokenVerifier(testSigningKey, 0, WithClock(func() time.Time { return issued.Add(23 * time.Hour) }))
	if _, err := later.Verify(tok); err != nil {
		t.Errorf("expected token valid after 23h, got %v", err)
	}
	expired := NewTokenVerifier(testSigningKey, 0, WithClock(func() time.Time { return issued.Add(25 * time.Hour) }))
	if _, err := expired.Verify(tok); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated after 25h, got %v", err)
	}
}

func TestIssue_EmptyIdentity(t *testing.T) {
	v := NewTokenVerifier(testSigningKey, time.Hour)
	if _, err := v.Issue(""); err == nil {
		t.Fatal("expected error for empty identity")
	}
}

func TestVerify_Rejects(t *testing.T) {
	now := time.Now()
	v := NewTokenVerifier(testSigningKey, time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"three garbage segments", "a.b.c"},
		{"wrong key", signTestToken(t, Claims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
			ABHAID:           "user-1",
		}, jwt.SigningMethodHS256, []byte("another-secret"))},
		{"wrong algorithm", signTestToken(t, Claims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
			ABHAID:           "user-1",
		}, jwt.SigningMethodHS512, testSigningKey)},
		{"unsigned", signTestToken(t, Claims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
			ABHAID:           "user-1",
		}, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType)},
		{"expired", signTestToken(t, Claims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))},
			ABHAID:           "user-1",
		}, jwt.SigningMethodHS256, testSigningKey)},
		{"no expiry", signTestToken(t, jwt.MapClaims{"abha_id": "user-1"}, jwt.SigningMethodHS256, testSigningKey)},
		{"no identity", signTestToken(t, Claims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		}, jwt.SigningMethodHS256, testSigningKey)},
		{"identity under another claim", signTestToken(t, jwt.MapClaims{
			"sub": "user-1",
			"exp": now.Add(time.Hour).Unix(),
		}, jwt.SigningMethodHS256, testSigningKey)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(tt.token)
			if !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
			if id != "" {
				t.Errorf("expected empty identity, got %q", id)
			}
		})
	}
}

func TestVerify_DistinctSecretsAreIsolated(t *testing.T) {
	a := NewTokenVerifier([]byte("secret-a"), time.Hour)
	b := NewTokenVerifier([]byte("secret-b"), time.Hour)

	tok, err := a.Issue("user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := b.Verify(tok); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected token from a to be rejected by b, got %v", err)
	}
}

func TestVerify_Concurrent(t *testing.T) {
	v := NewTokenVerifier(testSigningKey, time.Hour)
	tok, _ := v.Issue("user-1")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if id, err := v.Verify(tok); err != nil || id != "user-1" {
				t.Errorf("unexpected result %q %v", id, err)
			}
		}()
	}
	wg.Wait()
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"lower-case scheme", "bearer abc", "abc", false},
		{"empty", "", "", true},
		{"no bearer prefix", "Token abc123", "", true},
		{"missing token", "Bearer", "", true},
		{"empty value", "Bearer ", "", true},
		{"basic auth", "Basic dXNlcjpwYXNz", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BearerToken(tt.header)
			if tt.wantErr {
				if !errors.Is(err, ErrUnauthenticated) {
					t.Fatalf("expected ErrUnauthenticated, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
