package api

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"
)

// ownerContextKey is the echo context key holding the authenticated owner.
const ownerContextKey = "owner"

// securityHeaders returns middleware that sets standard security response
// headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			return next(c)
		}
	}
}

// requireAuth validates the bearer token and stores the owner identity on
// the request context.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}
		owner, err := s.auth.ParseToken(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		c.Set(ownerContextKey, owner)
		return next(c)
	}
}

// owner returns the authenticated owner set by requireAuth.
func owner(c *echo.Context) string {
	v, _ := c.Get(ownerContextKey).(string)
	return v
}
