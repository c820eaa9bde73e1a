package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/innkeep/hotel-system/internal/core/domain"
)

func TestSessionTokenIssuer_IssueClaims(t *testing.T) {
	f := newFixture()
	u := f.seedUser("s@x.com", "password1", domain.RoleStaff, func(u *domain.User) { u.TokenVersion = 3 })

	token, exp, err := f.sessions.Issue(u)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if want := fixtureEpoch.Add(time.Hour); !exp.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, exp)
	}

	claims := jwt.MapClaims{}
	_, err = jwt.NewParser(jwt.WithTimeFunc(f.clock.Now)).ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil {
		t.Fatalf("token invalid: %v", err)
	}
	want := map[string]interface{}{
		"userId":       u.ID,
		"role":         "staff",
		"isApproved":   true,
		"tokenVersion": float64(3),
		"exp":          float64(exp.Unix()),
	}
	if len(claims) != len(want) {
		t.Fatalf("expected exactly %d claims, got %v", len(want), claims)
	}
	for k, v := range want {
		if claims[k] != v {
			t.Fatalf("claim %s: expected %v, got %v", k, v, claims[k])
		}
	}
}

func TestSessionTokenIssuer_ParseRejects(t *testing.T) {
	f := newFixture()
	u := f.seedUser("s@x.com", "password1", domain.RoleGuest, nil)
	token, _, _ := f.sessions.Issue(u)

	other := NewSessionTokenIssuer(f.users, "other-secret", time.Hour, f.clock.Now)
	if _, err := other.Parse(token); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("expected wrong-secret token to be rejected, got %v", err)
	}

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"userId": u.ID}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := f.sessions.Parse(none); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("expected unsigned token to be rejected, got %v", err)
	}

	f.clock.Advance(time.Hour + time.Second)
	if _, err := f.sessions.Parse(token); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestSessionTokenIssuer_InvalidateAll(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.seedUser("s@x.com", "password1", domain.RoleGuest, nil)
	old, _, _ := f.sessions.Issue(u)

	if _, _, err := f.sessions.Authenticate(ctx, old); err != nil {
		t.Fatalf("expected fresh token to authenticate, got %v", err)
	}

	v, err := f.sessions.InvalidateAll(ctx, u.ID, "logout_all")
	if err != nil {
		t.Fatalf("InvalidateAll returned error: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected token version 1, got %d", v)
	}
	if _, _, err := f.sessions.Authenticate(ctx, old); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("expected old token to be rejected, got %v", err)
	}

	fresh, _, _ := f.sessions.Issue(f.users.snapshot(u.ID))
	if _, _, err := f.sessions.Authenticate(ctx, fresh); err != nil {
		t.Fatalf("expected token issued after invalidation to work, got %v", err)
	}
}

func TestSessionTokenIssuer_AuthenticateInactiveOrDeleted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.seedUser("s@x.com", "password1", domain.RoleGuest, nil)
	token, _, _ := f.sessions.Issue(u)

	if _, err := f.users.SetActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, _, err := f.sessions.Authenticate(ctx, token); !errors.Is(err, domain.ErrAccountDeactivated) {
		t.Fatalf("expected ErrAccountDeactivated, got %v", err)
	}

	// Reactivation alone restores pre-deactivation tokens.
	if _, err := f.users.SetActive(ctx, u.ID, true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, _, err := f.sessions.Authenticate(ctx, token); err != nil {
		t.Fatalf("expected token to work after reactivation, got %v", err)
	}

	if err := f.users.Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := f.sessions.Authenticate(ctx, token); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid for deleted user, got %v", err)
	}
}

func TestSessionTokenIssuer_NilClockUsesWallClock(t *testing.T) {
	issuer := NewSessionTokenIssuer(newStubUserRepo(), "test-secret", time.Minute, nil)

	before := time.Now()
	_, exp, err := issuer.Issue(&domain.User{ID: "u1", Role: domain.RoleGuest})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if exp.Before(before.Add(time.Minute)) || exp.After(time.Now().Add(time.Minute)) {
		t.Fatalf("expected expiry one minute from now, got %v", exp)
	}
}
