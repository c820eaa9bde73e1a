package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
	"github.com/innkeep/hotel-system/internal/pkg/metrics"
)

// DefaultSessionTTL is the lifetime of a session token.
const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionClaims is the signed payload of a session token. A token is only
// honoured while TokenVersion equals the user's current version.
type SessionClaims struct {
	UserID       string      `json:"userId"`
	Role         domain.Role `json:"role"`
	IsApproved   bool        `json:"isApproved"`
	TokenVersion int         `json:"tokenVersion"`
	jwt.RegisteredClaims
}

// SessionTokenIssuer signs session tokens and invalidates them globally by
// bumping the user's token version.
type SessionTokenIssuer struct {
	users  ports.UserRepository
	secret []byte
	ttl    time.Duration
	now    Clock
}

// NewSessionTokenIssuer returns an issuer signing with HS256. A non-positive ttl
// selects DefaultSessionTTL and a nil clock the UTC wall clock.
func NewSessionTokenIssuer(users ports.UserRepository, secret string, ttl time.Duration, clock Clock) *SessionTokenIssuer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = systemClock
	}
	return &SessionTokenIssuer{users: users, secret: []byte(secret), ttl: ttl, now: clock}
}

// Issue signs a token embedding the user's current token version.
func (s *SessionTokenIssuer) Issue(user *domain.User) (string, time.Time, error) {
	exp := s.now().Add(s.ttl)
	claims := SessionClaims{
		UserID:       user.ID,
		Role:         user.Role,
		IsApproved:   user.IsApproved,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, exp, nil
}

// Parse validates signature and expiry. It does not consult the store; callers
// compare TokenVersion against the current user.
func (s *SessionTokenIssuer) Parse(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, domain.ErrSessionInvalid
	}
	return claims, nil
}

// Authenticate parses raw and checks it against the stored account: the token
// version must match and the account must be active.
func (s *SessionTokenIssuer) Authenticate(ctx context.Context, raw string) (*domain.User, *SessionClaims, error) {
	claims, err := s.Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrSessionInvalid
		}
		return nil, nil, err
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, nil, domain.ErrSessionInvalid
	}
	if !user.IsActive {
		return nil, nil, domain.ErrAccountDeactivated
	}
	return user, claims, nil
}

// InvalidateAll bumps the token version so every previously issued token for
// userID is rejected.
func (s *SessionTokenIssuer) InvalidateAll(ctx context.Context, userID, reason string) (int, error) {
	v, err := s.users.IncrementTokenVersion(ctx, userID)
	if err != nil {
		return 0, err
	}
	metrics.SessionsInvalidatedTotal.WithLabelValues(reason).Inc()
	return v, nil
}
