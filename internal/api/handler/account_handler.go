package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
)

// AccountHandler serves the authenticated caller's own account.
type AccountHandler struct {
	auth ports.AuthService
}

func NewAccountHandler(auth ports.AuthService) *AccountHandler {
	return &AccountHandler{auth: auth}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type accountResponse struct {
	User        *domain.User       `json:"user"`
	ProfileRole domain.Role        `json:"profile_role,omitempty"`
	Profile     domain.RoleProfile `json:"profile,omitempty"`
	LastLogin   *time.Time         `json:"last_login,omitempty"`
}

// Me returns the caller's account and role profile.
//
// @Summary      Current account
// @Tags         account
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  accountResponse
// @Failure      401  {object}  map[string]string
// @Router       /me [get]
func (h *AccountHandler) Me(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	acct, err := h.auth.Me(c.Request().Context(), actor.UserID)
	if err != nil {
		return err
	}

	resp := accountResponse{User: acct.User, Profile: acct.Profile, LastLogin: acct.User.LastLogin()}
	if acct.Profile != nil {
		resp.ProfileRole = acct.Profile.ProfileRole()
	}
	return c.JSON(http.StatusOK, resp)
}

// ChangePassword replaces the caller's password and ends every other session.
//
// @Summary      Change password
// @Tags         account
// @Accept       json
// @Security     BearerAuth
// @Param        body  body  changePasswordRequest  true  "Current and new password"
// @Success      204
// @Failure      401  {object}  map[string]string
// @Router       /me/password [post]
func (h *AccountHandler) ChangePassword(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.Request().Context(), actor.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every session of the caller.
//
// @Summary      Log out everywhere
// @Tags         account
// @Security     BearerAuth
// @Success      204
// @Router       /me/logout-all [post]
func (h *AccountHandler) LogoutAll(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	if err := h.auth.LogoutAll(c.Request().Context(), actor.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes the caller's account.
//
// @Summary      Delete own account
// @Tags         account
// @Security     BearerAuth
// @Success      204
// @Router       /me [delete]
func (h *AccountHandler) Delete(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	if err := h.auth.DeleteAccount(c.Request().Context(), actor, actor.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
