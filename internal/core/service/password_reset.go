package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
)

// DefaultResetTokenTTL is how long a password reset link stays valid.
const DefaultResetTokenTTL = time.Hour

const resetTokenBytes = 32

// passwordReset issues and consumes single-use reset tokens. Only the SHA-256
// digest of a token is stored.
type passwordReset struct {
	users    ports.UserRepository
	creds    *CredentialVerifier
	notifier ports.Notifier
	baseURL  string
	ttl      time.Duration
	now      Clock
	log      zerolog.Logger
}

// issue stores a fresh token for user and mails the link. pending marks the
// account as blocked until the reset completes.
func (r *passwordReset) issue(ctx context.Context, user *domain.User, pending bool) error {
	raw, err := newSecret(resetTokenBytes)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	expiry := r.now().Add(r.ttl)
	if err := r.users.SetResetToken(ctx, user.ID, HashResetToken(raw), expiry, pending); err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	link := r.baseURL + "/reset-password?token=" + url.QueryEscape(raw)
	notify(ctx, r.notifier, r.log, user.Email, ports.TemplatePasswordReset, map[string]string{
		"name":       user.Name,
		"link":       link,
		"expires_in": humanDuration(r.ttl),
	})
	r.log.Info().Str("user_id", user.ID).Bool("pending", pending).Msg("password reset issued")
	return nil
}

// consume swaps in newPassword for the account owning raw. The token, the
// pending flag and every outstanding session are invalidated in the same write.
func (r *passwordReset) consume(ctx context.Context, raw, newPassword string) (*domain.User, error) {
	if raw == "" {
		return nil, domain.ErrResetTokenInvalid
	}
	hash, err := r.creds.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	digest := HashResetToken(raw)
	now := r.now()
	user, err := r.users.ConsumeResetToken(ctx, digest, now, hash)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrResetTokenInvalid) {
		return nil, fmt.Errorf("reset password: %w", err)
	}

	// Distinguish a stale link from an unknown one.
	stale, findErr := r.users.FindByResetToken(ctx, digest)
	if findErr == nil && stale.PasswordResetExpiry != nil && now.After(*stale.PasswordResetExpiry) {
		return nil, domain.ErrResetTokenExpired
	}
	return nil, domain.ErrResetTokenInvalid
}
