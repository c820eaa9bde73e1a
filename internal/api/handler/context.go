package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/innkeep/hotel-system/internal/api/middleware"
	"github.com/innkeep/hotel-system/internal/core/ports"
)

// ctxActor returns the authenticated caller injected by the Auth middleware.
// A missing user means the route was wired without Auth; reject with 401.
func ctxActor(c echo.Context) (ports.Actor, error) {
	user := middleware.CurrentUser(c)
	if user == nil || user.ID == "" {
		return ports.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return ports.Actor{UserID: user.ID, Role: user.Role}, nil
}

func loginMeta(c echo.Context) ports.LoginMeta {
	return ports.LoginMeta{
		IPAddress: c.RealIP(),
		Device:    c.Request().UserAgent(),
	}
}
