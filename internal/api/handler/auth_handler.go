package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
)

// AuthHandler serves the unauthenticated identity endpoints.
type AuthHandler struct {
	auth        ports.AuthService
	invitations ports.InvitationService
}

func NewAuthHandler(auth ports.AuthService, invitations ports.InvitationService) *AuthHandler {
	return &AuthHandler{auth: auth, invitations: invitations}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,role"`
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type redeemRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type userResponse struct {
	User *domain.User `json:"user"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type invitationCheckResponse struct {
	Email      string      `json:"email"`
	Role       domain.Role `json:"role"`
	Department string      `json:"department,omitempty"`
	Position   string      `json:"position,omitempty"`
	ExpiresAt  time.Time   `json:"expires_at"`
}

func newSessionResponse(s *ports.Session) sessionResponse {
	return sessionResponse{Token: s.Token, ExpiresAt: s.ExpiresAt, User: s.User}
}

// Register creates a self-service account and mails a verification code.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Account details"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Register(c.Request().Context(), ports.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, userResponse{User: user})
}

// VerifyEmail consumes the emailed one-time code.
//
// @Summary      Verify email address
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      verifyEmailRequest  true  "Email and code"
// @Success      200   {object}  userResponse
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      410   {object}  map[string]string
// @Router       /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.auth.VerifyEmail(c.Request().Context(), req.Email, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: user})
}

// ResendOTP mails a fresh verification code.
//
// @Summary      Resend verification code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Email"
// @Success      202   {object}  statusResponse
// @Failure      409   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /auth/resend-otp [post]
func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.auth.ResendOTP(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, statusResponse{Status: "sent"})
}

// Login authenticates with email and password and returns a session token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	session, err := h.auth.Login(c.Request().Context(), ports.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		LoginMeta: loginMeta(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSessionResponse(session))
}

// ForgotPassword mails a reset link. The response never reveals whether the
// address is registered.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Email"
// @Success      202   {object}  statusResponse
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.auth.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, statusResponse{Status: "sent"})
}

// ResetPassword redeems a reset token.
//
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Token and new password"
// @Success      200   {object}  statusResponse
// @Failure      401   {object}  map[string]string
// @Failure      410   {object}  map[string]string
// @Router       /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.auth.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "password_reset"})
}

// CheckInvitation reports whether an invitation token can still be redeemed.
//
// @Summary      Check invitation
// @Tags         invitations
// @Produce      json
// @Param        token  path      string  true  "Invitation token"
// @Success      200    {object}  invitationCheckResponse
// @Failure      404    {object}  map[string]string
// @Failure      409    {object}  map[string]string
// @Failure      410    {object}  map[string]string
// @Router       /auth/invitations/{token} [get]
func (h *AuthHandler) CheckInvitation(c echo.Context) error {
	inv, err := h.invitations.Check(c.Request().Context(), c.Param("token"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invitationCheckResponse{
		Email:      inv.Email,
		Role:       inv.Role,
		Department: inv.Department,
		Position:   inv.Position,
		ExpiresAt:  inv.ExpiresAt,
	})
}

// RedeemInvitation creates the invited account.
//
// @Summary      Redeem invitation
// @Tags         invitations
// @Accept       json
// @Produce      json
// @Param        token  path      string         true  "Invitation token"
// @Param        body   body      redeemRequest  true  "Account details"
// @Success      201    {object}  userResponse
// @Failure      409    {object}  map[string]string
// @Failure      410    {object}  map[string]string
// @Router       /auth/invitations/{token}/redeem [post]
func (h *AuthHandler) RedeemInvitation(c echo.Context) error {
	var req redeemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.invitations.Redeem(c.Request().Context(), ports.RedeemInput{
		Token:    c.Param("token"),
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, userResponse{User: user})
}
