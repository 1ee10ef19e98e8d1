package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for a missing, malformed, mis-signed or
// expired credential.
var ErrUnauthenticated = errors.New("unauthenticated")

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = 24 * time.Hour

// Claims carried by access tokens. ABHAID is the caller's identity.
type Claims struct {
	jwt.RegisteredClaims
	ABHAID string `json:"abha_id"`
}

// TokenVerifier issues and validates HS256 bearer tokens. It holds no
// mutable state and is safe for concurrent use.
type TokenVerifier struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption customizes a TokenVerifier.
type TokenOption func(*TokenVerifier)

// WithClock overrides the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(v *TokenVerifier) { v.now = now }
}

// NewTokenVerifier creates a verifier bound to the given signing secret.
// A non-positive ttl falls back to DefaultTokenTTL.
func NewTokenVerifier(secret []byte, ttl time.Duration, opts ...TokenOption) *TokenVerifier {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	v := &TokenVerifier{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Issue returns a signed token for identity that expires after the
// verifier's TTL.
func (v *TokenVerifier) Issue(identity string) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("issue token: identity is required")
	}
	now := v.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
		ABHAID: identity,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify validates token and returns the identity it was issued for.
func (v *TokenVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}
	if claims.ABHAID == "" {
		return "", fmt.Errorf("%w: token has no identity", ErrUnauthenticated)
	}
	return claims.ABHAID, nil
}

// BearerToken extracts the credential from an Authorization header value of
// the form "Bearer <token>".
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("%w: missing authorization header", ErrUnauthenticated)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: invalid authorization format", ErrUnauthenticated)
	}
	return strings.TrimSpace(parts[1]), nil
}
