package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/innkeep/hotel-system/internal/api/middleware"
	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
)

// Unimplemented methods fall through to the nil embedded interface and panic,
// which flags an unexpected call.
type stubAuthService struct {
	ports.AuthService
	registerFn       func(ctx context.Context, in ports.RegisterInput) (*domain.User, error)
	verifyFn         func(ctx context.Context, email, code string) (*domain.User, error)
	resendFn         func(ctx context.Context, email string) error
	loginFn          func(ctx context.Context, in ports.LoginInput) (*ports.Session, error)
	socialFn         func(ctx context.Context, id ports.SocialIdentity, meta ports.LoginMeta) (*ports.Session, error)
	forgotFn         func(ctx context.Context, email string) error
	resetFn          func(ctx context.Context, token, pw string) error
	changePasswordFn func(ctx context.Context, userID, oldPw, newPw string) error
	logoutAllFn      func(ctx context.Context, userID string) error
	meFn             func(ctx context.Context, userID string) (*ports.Account, error)
	deleteFn         func(ctx context.Context, actor ports.Actor, userID string) error
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) VerifyEmail(ctx context.Context, email, code string) (*domain.User, error) {
	return s.verifyFn(ctx, email, code)
}

func (s *stubAuthService) ResendOTP(ctx context.Context, email string) error {
	return s.resendFn(ctx, email)
}

func (s *stubAuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.Session, error) {
	return s.loginFn(ctx, in)
}

func (s *stubAuthService) SocialLogin(ctx context.Context, id ports.SocialIdentity, meta ports.LoginMeta) (*ports.Session, error) {
	return s.socialFn(ctx, id, meta)
}

func (s *stubAuthService) ForgotPassword(ctx context.Context, email string) error {
	return s.forgotFn(ctx, email)
}

func (s *stubAuthService) ResetPassword(ctx context.Context, token, pw string) error {
	return s.resetFn(ctx, token, pw)
}

func (s *stubAuthService) ChangePassword(ctx context.Context, userID, oldPw, newPw string) error {
	return s.changePasswordFn(ctx, userID, oldPw, newPw)
}

func (s *stubAuthService) LogoutAll(ctx context.Context, userID string) error {
	return s.logoutAllFn(ctx, userID)
}

func (s *stubAuthService) Me(ctx context.Context, userID string) (*ports.Account, error) {
	return s.meFn(ctx, userID)
}

func (s *stubAuthService) DeleteAccount(ctx context.Context, actor ports.Actor, userID string) error {
	return s.deleteFn(ctx, actor, userID)
}

type stubInvitationService struct {
	ports.InvitationService
	issueFn  func(ctx context.Context, actor ports.Actor, in ports.IssueInvitationInput) (*domain.Invitation, error)
	checkFn  func(ctx context.Context, token string) (*domain.Invitation, error)
	redeemFn func(ctx context.Context, in ports.RedeemInput) (*domain.User, error)
	updateFn func(ctx context.Context, actor ports.Actor, id string, in ports.UpdateInvitationInput) (*domain.Invitation, error)
	deleteFn func(ctx context.Context, actor ports.Actor, id string) error
	listFn   func(ctx context.Context, actor ports.Actor) ([]*domain.Invitation, error)
}

func (s *stubInvitationService) Issue(ctx context.Context, actor ports.Actor, in ports.IssueInvitationInput) (*domain.Invitation, error) {
	return s.issueFn(ctx, actor, in)
}

func (s *stubInvitationService) Check(ctx context.Context, token string) (*domain.Invitation, error) {
	return s.checkFn(ctx, token)
}

func (s *stubInvitationService) Redeem(ctx context.Context, in ports.RedeemInput) (*domain.User, error) {
	return s.redeemFn(ctx, in)
}

func (s *stubInvitationService) Update(ctx context.Context, actor ports.Actor, id string, in ports.UpdateInvitationInput) (*domain.Invitation, error) {
	return s.updateFn(ctx, actor, id, in)
}

func (s *stubInvitationService) Delete(ctx context.Context, actor ports.Actor, id string) error {
	return s.deleteFn(ctx, actor, id)
}

func (s *stubInvitationService) List(ctx context.Context, actor ports.Actor) ([]*domain.Invitation, error) {
	return s.listFn(ctx, actor)
}

type stubAdminService struct {
	ports.AdminService
	listPendingFn func(ctx context.Context, actor ports.Actor) ([]*domain.User, error)
	approveFn     func(ctx context.Context, actor ports.Actor, userID string, role *domain.Role) (*domain.User, error)
	deactivateFn  func(ctx context.Context, actor ports.Actor, userID string) (*domain.User, error)
	createUserFn  func(ctx context.Context, actor ports.Actor, in ports.CreateUserInput) (*domain.User, error)
	forceResetFn  func(ctx context.Context, actor ports.Actor, userID string) error
}

func (s *stubAdminService) ListPending(ctx context.Context, actor ports.Actor) ([]*domain.User, error) {
	return s.listPendingFn(ctx, actor)
}

func (s *stubAdminService) Approve(ctx context.Context, actor ports.Actor, userID string, role *domain.Role) (*domain.User, error) {
	return s.approveFn(ctx, actor, userID, role)
}

func (s *stubAdminService) Deactivate(ctx context.Context, actor ports.Actor, userID string) (*domain.User, error) {
	return s.deactivateFn(ctx, actor, userID)
}

func (s *stubAdminService) CreateUser(ctx context.Context, actor ports.Actor, in ports.CreateUserInput) (*domain.User, error) {
	return s.createUserFn(ctx, actor, in)
}

func (s *stubAdminService) ForceReset(ctx context.Context, actor ports.Actor, userID string) error {
	return s.forceResetFn(ctx, actor, userID)
}

// newContext builds an echo context with the validator installed, an optional
// JSON body and an optional authenticated user.
func newContext(t *testing.T, method, path, body string, user *domain.User) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if user != nil {
		c.Set(middleware.UserKey, user)
	}
	return c, rec
}

func withParam(c echo.Context, name, value string) echo.Context {
	c.SetParamNames(name)
	c.SetParamValues(value)
	return c
}
