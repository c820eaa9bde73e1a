package ports

import (
	"context"
	"time"

	"github.com/innkeep/hotel-system/internal/core/domain"
)

// UserRepository persists the User aggregate. Every mutating method is a single
// atomic document update; conditional methods report a lost race through their
// return value instead of overwriting state.
type UserRepository interface {
	// Create inserts a new user. Returns domain.ErrUserExists when the email is taken.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByProvider(ctx context.Context, provider, providerID string) (*domain.User, error)
	FindByResetToken(ctx context.Context, tokenHash string) (*domain.User, error)
	// ListPendingApproval returns verified, non-guest users still awaiting approval.
	ListPendingApproval(ctx context.Context) ([]*domain.User, error)
	// ListApprovers returns active, approved admins.
	ListApprovers(ctx context.Context) ([]*domain.User, error)

	// SetOTP overwrites any live challenge.
	SetOTP(ctx context.Context, userID string, otp domain.OTP) error
	// ConsumeOTP clears the challenge and marks the email verified only if the
	// stored code equals code and has not expired at now. Returns false otherwise.
	ConsumeOTP(ctx context.Context, userID, code string, now time.Time) (bool, error)

	SetResetToken(ctx context.Context, userID, tokenHash string, expiry time.Time, pending bool) error
	// ConsumeResetToken atomically swaps in passwordHash, clears the reset token and
	// the pending flag, and increments the token version. Returns
	// domain.ErrResetTokenInvalid when no live token matches.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*domain.User, error)
	// UpdatePassword replaces the hash and increments the token version.
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, userID string) (int, error)

	// Approve moves a pending user to approved. Returns domain.ErrNotPendingApproval
	// when the user is not pending at write time.
	Approve(ctx context.Context, userID string, role domain.Role, approvedBy string, at time.Time) (*domain.User, error)
	SetActive(ctx context.Context, userID string, active bool) (*domain.User, error)
	AddProvider(ctx context.Context, userID string, link domain.AuthProvider) (*domain.User, error)
	// ClaimUnverified links a provider onto an account whose email is still
	// unverified and, in the same write, marks the email verified, drops the
	// password hash, any live OTP and reset token, and bumps the token version.
	// Returns domain.ErrAlreadyVerified when the email was verified at write time.
	ClaimUnverified(ctx context.Context, userID string, link domain.AuthProvider) (*domain.User, error)
	AppendLogin(ctx context.Context, userID string, record domain.LoginRecord) error
	Delete(ctx context.Context, userID string) error
}

// ProfileRepository persists the role profile owned by each user.
type ProfileRepository interface {
	// FindByUserID returns domain.ErrProfileNotFound when the user has none.
	FindByUserID(ctx context.Context, userID string) (domain.RoleProfile, error)
	// Save upserts the profile keyed by owner, replacing a profile of another role.
	Save(ctx context.Context, profile domain.RoleProfile) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// InvitationRepository persists invitations.
type InvitationRepository interface {
	Create(ctx context.Context, inv *domain.Invitation) (*domain.Invitation, error)
	FindByID(ctx context.Context, id string) (*domain.Invitation, error)
	FindByToken(ctx context.Context, token string) (*domain.Invitation, error)
	List(ctx context.Context) ([]*domain.Invitation, error)
	// Update rewrites an unused invitation. Returns domain.ErrInvitationUsed otherwise.
	Update(ctx context.Context, inv *domain.Invitation) (*domain.Invitation, error)
	// Delete removes an unused invitation. Returns domain.ErrInvitationUsed otherwise.
	Delete(ctx context.Context, id string) error
	// MarkUsed flips used from false to true for a live invitation. At most one
	// caller per token succeeds; the others get domain.ErrInvitationUsed or
	// domain.ErrInvitationExpired.
	MarkUsed(ctx context.Context, token string, now time.Time) (*domain.Invitation, error)
}
