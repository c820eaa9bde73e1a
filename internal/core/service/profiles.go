package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
)

// profileProvisioner creates the role profile for an account. It is idempotent:
// an existing profile of the right role is returned unchanged, and a profile of a
// stale role is replaced.
type profileProvisioner struct {
	profiles ports.ProfileRepository
	now      Clock
}

func (p *profileProvisioner) ensure(ctx context.Context, user *domain.User, grant domain.ProfileGrant) (domain.RoleProfile, error) {
	existing, err := p.profiles.FindByUserID(ctx, user.ID)
	switch {
	case err == nil && existing.ProfileRole() == user.Role:
		return existing, nil
	case err != nil && !errors.Is(err, domain.ErrProfileNotFound):
		return nil, fmt.Errorf("ensure profile: %w", err)
	}

	profile, err := domain.NewProfile(user.Role, user.ID, grant, p.now())
	if err != nil {
		return nil, err
	}
	if err := p.profiles.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return profile, nil
}
