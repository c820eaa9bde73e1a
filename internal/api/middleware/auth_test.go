package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/service"
)

type stubAuthenticator struct {
	users map[string]*domain.User
	err   error
	seen  string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, raw string) (*domain.User, *service.SessionClaims, error) {
	s.seen = raw
	if s.err != nil {
		return nil, nil, s.err
	}
	u, ok := s.users[raw]
	if !ok {
		return nil, nil, domain.ErrSessionInvalid
	}
	return u, &service.SessionClaims{UserID: u.ID, Role: u.Role, IsApproved: u.IsApproved}, nil
}

func newAuthContext(header string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	stub := &stubAuthenticator{users: map[string]*domain.User{
		"tok-1": {ID: "u1", Role: domain.RoleStaff, IsApproved: true, IsActive: true},
	}}
	c, rec := newAuthContext("Bearer tok-1")

	called := false
	handler := Auth(stub)(func(c echo.Context) error {
		called = true
		if u := CurrentUser(c); u == nil || u.ID != "u1" {
			t.Fatalf("user not set: %+v", u)
		}
		claims, _ := c.Get(ClaimsKey).(*service.SessionClaims)
		if claims == nil || claims.Role != domain.RoleStaff {
			t.Fatalf("claims not set: %+v", claims)
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected next to run with 200, called=%v code=%d", called, rec.Code)
	}
	if stub.seen != "tok-1" {
		t.Fatalf("expected raw token to be forwarded, got %q", stub.seen)
	}
}

func TestAuthMiddleware_RejectsBadHeaders(t *testing.T) {
	for _, header := range []string{"", "Token abc", "Bearer ", "Bearer"} {
		c, _ := newAuthContext(header)
		handler := Auth(&stubAuthenticator{})(func(c echo.Context) error {
			t.Fatalf("should not reach next for %q", header)
			return nil
		})

		err := handler(c)
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %v", header, err)
		}
	}
}

func TestAuthMiddleware_PropagatesSessionErrors(t *testing.T) {
	cases := []error{domain.ErrSessionInvalid, domain.ErrAccountDeactivated}
	for _, want := range cases {
		c, _ := newAuthContext("Bearer tok-1")
		handler := Auth(&stubAuthenticator{err: want})(func(c echo.Context) error {
			t.Fatalf("should not reach next")
			return nil
		})

		if err := handler(c); !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
	}
}
