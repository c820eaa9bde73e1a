package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/innkeep/hotel-system/internal/core/domain"
)

// RBAC enforces role-based access control. It must run after Auth and reads the
// role from the freshly loaded account, not from the token.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return domain.ErrSessionInvalid
			}
			if _, ok := allowed[user.Role]; !ok {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
