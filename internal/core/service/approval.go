package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
	"github.com/innkeep/hotel-system/internal/pkg/metrics"
)

const tempPasswordBytes = 18

// ApprovalWorkflow drives users through verification, approval and activation,
// and gates session issuance on the resulting state.
type ApprovalWorkflow struct {
	users    ports.UserRepository
	otp      *OTPChallenge
	creds    *CredentialVerifier
	notifier ports.Notifier
	profiles profileProvisioner
	reset    passwordReset
	log      zerolog.Logger
	now      Clock
}

var _ ports.AdminService = (*ApprovalWorkflow)(nil)

// NewApprovalWorkflow returns an ApprovalWorkflow.
func NewApprovalWorkflow(
	users ports.UserRepository,
	profiles ports.ProfileRepository,
	otp *OTPChallenge,
	creds *CredentialVerifier,
	notifier ports.Notifier,
	opts Options,
	log zerolog.Logger,
) *ApprovalWorkflow {
	opts = opts.withDefaults()
	return &ApprovalWorkflow{
		users:    users,
		otp:      otp,
		creds:    creds,
		notifier: notifier,
		profiles: profileProvisioner{profiles: profiles, now: opts.Clock},
		reset: passwordReset{
			users:    users,
			creds:    creds,
			notifier: notifier,
			baseURL:  opts.AppBaseURL,
			ttl:      opts.ResetTokenTTL,
			now:      opts.Clock,
			log:      log,
		},
		log: log,
		now: opts.Clock,
	}
}

// VerifyEmail consumes the user's challenge. Users whose role requires approval
// move to pending approval and every approver is notified.
func (w *ApprovalWorkflow) VerifyEmail(ctx context.Context, user *domain.User, code string) (*domain.User, error) {
	if user.EmailVerified {
		return nil, domain.ErrAlreadyVerified
	}
	if err := w.otp.Verify(ctx, user, code); err != nil {
		return nil, err
	}
	if user.State() == domain.StatePendingApproval {
		w.requestApproval(ctx, user)
	}
	w.log.Info().Str("user_id", user.ID).Str("state", string(user.State())).Msg("email verified")
	return user, nil
}

func (w *ApprovalWorkflow) requestApproval(ctx context.Context, user *domain.User) {
	approvers, err := w.users.ListApprovers(ctx)
	if err != nil {
		w.log.Warn().Err(err).Str("user_id", user.ID).Msg("could not list approvers")
		return
	}
	for _, a := range approvers {
		notify(ctx, w.notifier, w.log, a.Email, ports.TemplateApprovalRequested, map[string]string{
			"name":  user.Name,
			"email": user.Email,
			"role":  string(user.Role),
		})
	}
}

// GateLogin checks, in order, the conditions that block a session for a user
// whose credentials are already proven. An unverified user is sent a fresh code.
func (w *ApprovalWorkflow) GateLogin(ctx context.Context, user *domain.User) error {
	if user.PasswordResetPending {
		return domain.WithRedirect(domain.ErrResetRequired, user.ID, "/reset-password")
	}
	if !user.EmailVerified {
		code, err := w.otp.Issue(ctx, user)
		if err != nil {
			return err
		}
		notify(ctx, w.notifier, w.log, user.Email, ports.TemplateEmailOTP, w.otp.mailParams(user, code))
		return domain.WithUser(domain.ErrRequiresVerification, user.ID)
	}
	if user.Role.RequiresApproval() && !user.IsApproved {
		return domain.WithUser(domain.ErrPendingApproval, user.ID)
	}
	if !user.IsActive {
		return domain.WithUser(domain.ErrAccountDeactivated, user.ID)
	}
	return nil
}

// ListPending returns accounts awaiting an approval decision.
func (w *ApprovalWorkflow) ListPending(ctx context.Context, actor ports.Actor) ([]*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return w.users.ListPendingApproval(ctx)
}

// Approve grants access to a pending user, optionally at a different role, and
// provisions the matching profile.
func (w *ApprovalWorkflow) Approve(ctx context.Context, actor ports.Actor, userID string, role *domain.Role) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := w.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.State() != domain.StatePendingApproval {
		return nil, domain.ErrNotPendingApproval
	}
	grant := user.Role
	if role != nil {
		if _, err := domain.ParseRole(string(*role)); err != nil {
			return nil, err
		}
		grant = *role
	}

	approved, err := w.users.Approve(ctx, userID, grant, actor.UserID, w.now())
	if err != nil {
		return nil, err
	}
	if _, err := w.profiles.ensure(ctx, approved, domain.ProfileGrant{}); err != nil {
		// Healed on the next login.
		w.log.Error().Err(err).Str("user_id", userID).Msg("profile provisioning failed after approval")
	}

	metrics.ApprovalsTotal.WithLabelValues(string(grant)).Inc()
	notify(ctx, w.notifier, w.log, approved.Email, ports.TemplateAccountApproved, map[string]string{
		"name": approved.Name,
		"role": string(grant),
	})
	w.log.Info().Str("user_id", userID).Str("role", string(grant)).Str("approved_by", actor.UserID).Msg("user approved")
	return approved, nil
}

// Deactivate blocks a user from signing in. Admins cannot deactivate themselves.
func (w *ApprovalWorkflow) Deactivate(ctx context.Context, actor ports.Actor, userID string) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if actor.UserID == userID {
		return nil, domain.ErrForbidden
	}
	user, err := w.users.SetActive(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	w.log.Info().Str("user_id", userID).Str("by", actor.UserID).Msg("user deactivated")
	return user, nil
}

// Reactivate restores sign-in for a deactivated user.
func (w *ApprovalWorkflow) Reactivate(ctx context.Context, actor ports.Actor, userID string) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := w.users.SetActive(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	w.log.Info().Str("user_id", userID).Str("by", actor.UserID).Msg("user reactivated")
	return user, nil
}

// CreateUser provisions an approved, verified account with an unusable random
// password and mails a reset link the user must follow before signing in.
func (w *ApprovalWorkflow) CreateUser(ctx context.Context, actor ports.Actor, in ports.CreateUserInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(in.Email)
	name := sanitizeName(in.Name)
	if !validEmail(email) || name == "" {
		return nil, domain.ErrValidation
	}

	temp, err := newSecret(tempPasswordBytes)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	hash, err := w.creds.Hash(temp)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	now := w.now()
	user, err := w.users.Create(ctx, &domain.User{
		Name:          name,
		Email:         email,
		PasswordHash:  hash,
		Role:          role,
		EmailVerified: true,
		IsApproved:    true,
		IsActive:      true,
		ApprovedBy:    actor.UserID,
		ApprovedAt:    &now,
		AuthProviders: []domain.AuthProvider{},
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, err
	}
	if _, err := w.profiles.ensure(ctx, user, in.ProfileGrant); err != nil {
		w.log.Error().Err(err).Str("user_id", user.ID).Msg("profile provisioning failed for created user")
	}
	if err := w.reset.issue(ctx, user, true); err != nil {
		return nil, err
	}
	user.PasswordResetPending = true
	w.log.Info().Str("user_id", user.ID).Str("role", string(role)).Str("by", actor.UserID).Msg("user created by admin")
	return user, nil
}

// ForceReset signs the user out everywhere and blocks sign-in until they set a
// new password from the mailed link.
func (w *ApprovalWorkflow) ForceReset(ctx context.Context, actor ports.Actor, userID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	user, err := w.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := w.reset.issue(ctx, user, true); err != nil {
		return err
	}
	if _, err := w.users.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("force reset: %w", err)
	}
	metrics.SessionsInvalidatedTotal.WithLabelValues("force_reset").Inc()
	return nil
}

func requireAdmin(actor ports.Actor) error {
	if actor.Role != domain.RoleAdmin || actor.UserID == "" {
		return domain.ErrForbidden
	}
	return nil
}
