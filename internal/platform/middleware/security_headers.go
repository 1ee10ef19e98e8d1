package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets hardening headers on every response. Responses for
// paths under any of privatePrefixes also get Cache-Control: no-store, since
// they carry access tokens, profiles or personal history.
func SecurityHeaders(privatePrefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")

			path := c.Request().URL.Path
			for _, p := range privatePrefixes {
				if strings.HasPrefix(path, p) {
					h.Set("Cache-Control", "no-store")
					break
				}
			}
			return next(c)
		}
	}
}
