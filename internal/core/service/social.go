package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
)

// SocialLinkResolver maps an external identity to exactly one local user,
// linking by provider id first, then by email, and creating a guest otherwise.
type SocialLinkResolver struct {
	users    ports.UserRepository
	profiles profileProvisioner
	log      zerolog.Logger
	now      Clock
}

// NewSocialLinkResolver returns a SocialLinkResolver.
func NewSocialLinkResolver(users ports.UserRepository, profiles ports.ProfileRepository, opts Options, log zerolog.Logger) *SocialLinkResolver {
	opts = opts.withDefaults()
	return &SocialLinkResolver{
		users:    users,
		profiles: profileProvisioner{profiles: profiles, now: opts.Clock},
		log:      log,
		now:      opts.Clock,
	}
}

// Resolve returns the user owning id. Repeating the call with the same identity
// never creates a second user or a duplicate provider link.
func (r *SocialLinkResolver) Resolve(ctx context.Context, id ports.SocialIdentity) (*domain.User, error) {
	id.Email = domain.NormalizeEmail(id.Email)
	if id.Provider == "" || id.ProviderID == "" || !validEmail(id.Email) {
		return nil, domain.ErrValidation
	}

	user, err := r.link(ctx, id)
	if err == nil || !errors.Is(err, domain.ErrUserNotFound) {
		return user, err
	}

	user, err = r.create(ctx, id)
	if errors.Is(err, domain.ErrUserExists) {
		// A concurrent resolve created the account first.
		return r.link(ctx, id)
	}
	return user, err
}

// link finds an existing account by provider id, then by email, attaching the
// provider in the latter case.
func (r *SocialLinkResolver) link(ctx context.Context, id ports.SocialIdentity) (*domain.User, error) {
	user, err := r.users.FindByProvider(ctx, id.Provider, id.ProviderID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("resolve social identity: %w", err)
	}

	user, err = r.users.FindByEmail(ctx, id.Email)
	if err != nil {
		return nil, err
	}
	provider := domain.AuthProvider{
		Provider:   id.Provider,
		ProviderID: id.ProviderID,
		Email:      id.Email,
	}
	if !user.EmailVerified {
		return r.claim(ctx, user, provider)
	}
	linked, err := r.users.AddProvider(ctx, user.ID, provider)
	if err != nil {
		return nil, fmt.Errorf("link provider: %w", err)
	}
	r.log.Info().Str("user_id", linked.ID).Str("provider", id.Provider).Msg("provider linked to existing account")
	return linked, nil
}

// claim hands an unverified account to the provider-verified owner of its
// address. Credentials set before the address was proven are discarded; the
// owner can set a password through the reset flow.
func (r *SocialLinkResolver) claim(ctx context.Context, user *domain.User, provider domain.AuthProvider) (*domain.User, error) {
	claimed, err := r.users.ClaimUnverified(ctx, user.ID, provider)
	if errors.Is(err, domain.ErrAlreadyVerified) {
		// Verified by OTP between lookup and write; the password is the owner's.
		claimed, err = r.users.AddProvider(ctx, user.ID, provider)
	}
	if err != nil {
		return nil, fmt.Errorf("link provider: %w", err)
	}
	r.log.Warn().Str("user_id", claimed.ID).Str("provider", provider.Provider).
		Bool("password_dropped", user.HasPassword()).Msg("unverified account claimed by provider identity")
	return claimed, nil
}

func (r *SocialLinkResolver) create(ctx context.Context, id ports.SocialIdentity) (*domain.User, error) {
	name := sanitizeName(id.DisplayName)
	if name == "" {
		name = id.Email
	}
	now := r.now()
	user, err := r.users.Create(ctx, &domain.User{
		Name:          name,
		Email:         id.Email,
		Role:          domain.RoleGuest,
		EmailVerified: true,
		IsApproved:    true,
		IsActive:      true,
		AuthProviders: []domain.AuthProvider{{
			Provider:   id.Provider,
			ProviderID: id.ProviderID,
			Email:      id.Email,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if _, err := r.profiles.ensure(ctx, user, domain.ProfileGrant{}); err != nil {
		r.log.Error().Err(err).Str("user_id", user.ID).Msg("guest profile provisioning failed")
	}
	r.log.Info().Str("user_id", user.ID).Str("provider", id.Provider).Msg("guest account created from social identity")
	return user, nil
}
