package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// Verifier validates a bearer credential and returns the caller's identity.
type Verifier interface {
	Verify(token string) (string, error)
}

// RequireToken rejects requests without a valid bearer token and stores the
// verified identity on the request context.
func RequireToken(v Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := BearerToken(c.Request().Header.Get("Authorization"))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header missing")
			}

			identity, err := v.Verify(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			ctx := WithUserID(c.Request().Context(), identity)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// WithUserID returns a copy of ctx carrying identity.
func WithUserID(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, UserIDKey, identity)
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}
