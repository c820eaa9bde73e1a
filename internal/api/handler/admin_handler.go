package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
)

// AdminHandler serves the approval workflow and invitation ledger to admins.
type AdminHandler struct {
	admin       ports.AdminService
	auth        ports.AuthService
	invitations ports.InvitationService
}

func NewAdminHandler(admin ports.AdminService, auth ports.AuthService, invitations ports.InvitationService) *AdminHandler {
	return &AdminHandler{admin: admin, auth: auth, invitations: invitations}
}

type approveRequest struct {
	Role *string `json:"role,omitempty" validate:"omitempty,role"`
}

type createUserRequest struct {
	Name        string   `json:"name" validate:"required,max=120"`
	Email       string   `json:"email" validate:"required,email"`
	Role        string   `json:"role" validate:"required,role"`
	Department  string   `json:"department,omitempty"`
	Position    string   `json:"position,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type issueInvitationRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	Role        string   `json:"role" validate:"required,role"`
	TTLHours    int      `json:"ttl_hours,omitempty" validate:"gte=0"`
	Department  string   `json:"department,omitempty"`
	Position    string   `json:"position,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type updateInvitationRequest struct {
	Email       *string    `json:"email,omitempty" validate:"omitempty,email"`
	Role        *string    `json:"role,omitempty" validate:"omitempty,role"`
	Department  *string    `json:"department,omitempty"`
	Position    *string    `json:"position,omitempty"`
	Permissions []string   `json:"permissions,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type usersResponse struct {
	Users []*domain.User `json:"users"`
}

type invitationResponse struct {
	Invitation *domain.Invitation `json:"invitation"`
}

type invitationsResponse struct {
	Invitations []*domain.Invitation `json:"invitations"`
}

// ListPending returns verified accounts awaiting approval.
//
// @Summary      List pending approvals
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  usersResponse
// @Failure      403  {object}  map[string]string
// @Router       /admin/users/pending [get]
func (h *AdminHandler) ListPending(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	users, err := h.admin.ListPending(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	if users == nil {
		users = []*domain.User{}
	}
	return c.JSON(http.StatusOK, usersResponse{Users: users})
}

// CreateUser provisions an approved account and mails a set-password link.
//
// @Summary      Create user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createUserRequest  true  "Account details"
// @Success      201   {object}  userResponse
// @Failure      409   {object}  map[string]string
// @Router       /admin/users [post]
func (h *AdminHandler) CreateUser(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req createUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.admin.CreateUser(c.Request().Context(), actor, ports.CreateUserInput{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
		ProfileGrant: domain.ProfileGrant{
			Department:  req.Department,
			Position:    req.Position,
			Permissions: req.Permissions,
		},
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, userResponse{User: user})
}

// Approve admits a pending account, optionally at a different role.
//
// @Summary      Approve user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string          true   "User ID"
// @Param        body  body      approveRequest  false  "Role override"
// @Success      200   {object}  userResponse
// @Failure      409   {object}  map[string]string
// @Router       /admin/users/{id}/approve [post]
func (h *AdminHandler) Approve(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req approveRequest
	if c.Request().ContentLength != 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
	}

	var role *domain.Role
	if req.Role != nil {
		r, err := domain.ParseRole(*req.Role)
		if err != nil {
			return err
		}
		role = &r
	}

	user, err := h.admin.Approve(c.Request().Context(), actor, c.Param("id"), role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: user})
}

// Deactivate blocks an account from signing in.
//
// @Summary      Deactivate user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  userResponse
// @Router       /admin/users/{id}/deactivate [post]
func (h *AdminHandler) Deactivate(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	user, err := h.admin.Deactivate(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: user})
}

// Reactivate lifts a deactivation.
//
// @Summary      Reactivate user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  userResponse
// @Router       /admin/users/{id}/reactivate [post]
func (h *AdminHandler) Reactivate(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	user, err := h.admin.Reactivate(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: user})
}

// ForceReset requires the account to choose a new password at next sign-in.
//
// @Summary      Force password reset
// @Tags         admin
// @Security     BearerAuth
// @Param        id   path  string  true  "User ID"
// @Success      204
// @Router       /admin/users/{id}/force-reset [post]
func (h *AdminHandler) ForceReset(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	if err := h.admin.ForceReset(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteUser removes an account and its profile.
//
// @Summary      Delete user
// @Tags         admin
// @Security     BearerAuth
// @Param        id   path  string  true  "User ID"
// @Success      204
// @Router       /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	if err := h.auth.DeleteAccount(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListInvitations returns every invitation, used and expired included.
//
// @Summary      List invitations
// @Tags         invitations
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  invitationsResponse
// @Router       /admin/invitations [get]
func (h *AdminHandler) ListInvitations(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	invs, err := h.invitations.List(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	if invs == nil {
		invs = []*domain.Invitation{}
	}
	return c.JSON(http.StatusOK, invitationsResponse{Invitations: invs})
}

// IssueInvitation creates and mails an invitation.
//
// @Summary      Issue invitation
// @Tags         invitations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      issueInvitationRequest  true  "Invitation"
// @Success      201   {object}  invitationResponse
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /admin/invitations [post]
func (h *AdminHandler) IssueInvitation(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req issueInvitationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	inv, err := h.invitations.Issue(c.Request().Context(), actor, ports.IssueInvitationInput{
		Email:    req.Email,
		Role:     req.Role,
		TTLHours: req.TTLHours,
		ProfileGrant: domain.ProfileGrant{
			Department:  req.Department,
			Position:    req.Position,
			Permissions: req.Permissions,
		},
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, invitationResponse{Invitation: inv})
}

// UpdateInvitation edits an unused invitation.
//
// @Summary      Update invitation
// @Tags         invitations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                   true  "Invitation ID"
// @Param        body  body      updateInvitationRequest  true  "Fields to change"
// @Success      200   {object}  invitationResponse
// @Failure      409   {object}  map[string]string
// @Router       /admin/invitations/{id} [patch]
func (h *AdminHandler) UpdateInvitation(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req updateInvitationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	inv, err := h.invitations.Update(c.Request().Context(), actor, c.Param("id"), ports.UpdateInvitationInput{
		Email:       req.Email,
		Role:        req.Role,
		Department:  req.Department,
		Position:    req.Position,
		Permissions: req.Permissions,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invitationResponse{Invitation: inv})
}

// DeleteInvitation withdraws an unused invitation.
//
// @Summary      Delete invitation
// @Tags         invitations
// @Security     BearerAuth
// @Param        id   path  string  true  "Invitation ID"
// @Success      204
// @Failure      409  {object}  map[string]string
// @Router       /admin/invitations/{id} [delete]
func (h *AdminHandler) DeleteInvitation(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	if err := h.invitations.Delete(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
