package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/service"
)

// Context keys populated by Auth.
const (
	UserKey   = "user"
	ClaimsKey = "claims"
)

// SessionAuthenticator resolves a bearer token to its live account.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, raw string) (*domain.User, *service.SessionClaims, error)
}

// Auth validates the bearer token against the current account state and
// injects the user and claims into the echo context.
func Auth(sessions SessionAuthenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			user, claims, err := sessions.Authenticate(c.Request().Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				return err
			}

			c.Set(UserKey, user)
			c.Set(ClaimsKey, claims)
			return next(c)
		}
	}
}

// CurrentUser returns the account injected by Auth, or nil.
func CurrentUser(c echo.Context) *domain.User {
	u, _ := c.Get(UserKey).(*domain.User)
	return u
}
