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
	"github.com/innkeep/hotel-system/internal/pkg/metrics"
)

const inviteTokenBytes = 32

// InvitationLedger issues, redeems and administers single-use invitations.
type InvitationLedger struct {
	invitations ports.InvitationRepository
	users       ports.UserRepository
	creds       *CredentialVerifier
	otp         *OTPChallenge
	notifier    ports.Notifier
	profiles    profileProvisioner
	baseURL     string
	defaultTTL  time.Duration
	log         zerolog.Logger
	now         Clock
}

var _ ports.InvitationService = (*InvitationLedger)(nil)

// NewInvitationLedger returns an InvitationLedger.
func NewInvitationLedger(
	invitations ports.InvitationRepository,
	users ports.UserRepository,
	profiles ports.ProfileRepository,
	creds *CredentialVerifier,
	otp *OTPChallenge,
	notifier ports.Notifier,
	opts Options,
	log zerolog.Logger,
) *InvitationLedger {
	opts = opts.withDefaults()
	return &InvitationLedger{
		invitations: invitations,
		users:       users,
		creds:       creds,
		otp:         otp,
		notifier:    notifier,
		profiles:    profileProvisioner{profiles: profiles, now: opts.Clock},
		baseURL:     opts.AppBaseURL,
		defaultTTL:  opts.InviteTTL,
		log:         log,
		now:         opts.Clock,
	}
}

// Issue creates an invitation for a non-guest role and mails the redemption link.
func (l *InvitationLedger) Issue(ctx context.Context, actor ports.Actor, in ports.IssueInvitationInput) (*domain.Invitation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	role, err := inviteRole(in.Role)
	if err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(in.Email)
	if !validEmail(email) {
		return nil, domain.ErrValidation
	}
	if _, err := l.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("issue invitation: %w", err)
	}

	ttl := l.defaultTTL
	if in.TTLHours > 0 {
		ttl = time.Duration(in.TTLHours) * time.Hour
	}
	token, err := newSecret(inviteTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("issue invitation: %w", err)
	}

	now := l.now()
	inv := &domain.Invitation{
		Email:      email,
		Role:       role,
		Department: in.Department,
		Position:   in.Position,
		Token:      token,
		CreatedBy:  actor.UserID,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if role == domain.RoleAdmin {
		inv.Permissions = append([]string{}, in.Permissions...)
	}

	created, err := l.invitations.Create(ctx, inv)
	if err != nil {
		return nil, err
	}
	metrics.InvitationsTotal.WithLabelValues("issued").Inc()
	notify(ctx, l.notifier, l.log, created.Email, ports.TemplateInvitation, map[string]string{
		"role":       string(created.Role),
		"link":       l.baseURL + "/invite?token=" + url.QueryEscape(created.Token),
		"expires_in": humanDuration(ttl),
	})
	l.log.Info().Str("invitation_id", created.ID).Str("role", string(role)).Str("by", actor.UserID).Msg("invitation issued")
	return created, nil
}

// Check returns the invitation behind token when it can still be redeemed.
func (l *InvitationLedger) Check(ctx context.Context, token string) (*domain.Invitation, error) {
	if token == "" {
		return nil, domain.ErrInvitationNotFound
	}
	inv, err := l.invitations.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := inv.Validate(l.now()); err != nil {
		return nil, err
	}
	return inv, nil
}

// Redeem consumes the invitation and creates the invited account, approved at
// the invited role and awaiting email verification. At most one concurrent
// redemption of a token succeeds.
func (l *InvitationLedger) Redeem(ctx context.Context, in ports.RedeemInput) (*domain.User, error) {
	inv, err := l.Check(ctx, in.Token)
	if err != nil {
		l.reject(err)
		return nil, err
	}
	if in.Email != "" && domain.NormalizeEmail(in.Email) != inv.Email {
		return nil, domain.ErrValidation
	}
	name := sanitizeName(in.Name)
	if name == "" {
		return nil, domain.ErrValidation
	}
	if err := l.ensureEmailFree(ctx, inv); err != nil {
		l.reject(err)
		return nil, err
	}
	hash, err := l.creds.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	// The claim is the commit point: once it succeeds the invitation stays used
	// even if account creation below fails.
	claimed, err := l.invitations.MarkUsed(ctx, in.Token, l.now())
	if err != nil {
		l.reject(err)
		return nil, err
	}

	now := l.now()
	user, err := l.users.Create(ctx, &domain.User{
		Name:          name,
		Email:         claimed.Email,
		PasswordHash:  hash,
		Role:          claimed.Role,
		IsApproved:    true,
		IsActive:      true,
		ApprovedBy:    claimed.CreatedBy,
		ApprovedAt:    &now,
		AuthProviders: []domain.AuthProvider{},
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		l.log.Error().Err(err).Str("invitation_id", claimed.ID).Msg("account creation failed after invitation claim")
		return nil, err
	}
	if _, err := l.profiles.ensure(ctx, user, claimed.Grant()); err != nil {
		l.log.Error().Err(err).Str("user_id", user.ID).Msg("profile provisioning failed after redemption")
	}

	code, err := l.otp.Issue(ctx, user)
	if err != nil {
		l.log.Warn().Err(err).Str("user_id", user.ID).Msg("verification code not issued after redemption")
	} else {
		notify(ctx, l.notifier, l.log, user.Email, ports.TemplateEmailOTP, l.otp.mailParams(user, code))
	}

	metrics.InvitationsTotal.WithLabelValues("redeemed").Inc()
	l.log.Info().Str("invitation_id", claimed.ID).Str("user_id", user.ID).Msg("invitation redeemed")
	return user, nil
}

// ensureEmailFree rejects redemption when the invited address already has an
// account. If a concurrent redemption of the same token created it, the caller
// sees the invitation as used rather than a conflict.
func (l *InvitationLedger) ensureEmailFree(ctx context.Context, inv *domain.Invitation) error {
	_, err := l.users.FindByEmail(ctx, inv.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redeem invitation: %w", err)
	}
	if fresh, ferr := l.invitations.FindByToken(ctx, inv.Token); ferr == nil && fresh.Used {
		return domain.ErrInvitationUsed
	}
	return domain.ErrUserExists
}

func (l *InvitationLedger) reject(err error) {
	switch domain.KindOf(err) {
	case domain.KindNotFound, domain.KindConflict, domain.KindExpired:
		metrics.InvitationsTotal.WithLabelValues("rejected").Inc()
	}
}

// Update edits an unused invitation.
func (l *InvitationLedger) Update(ctx context.Context, actor ports.Actor, id string, in ports.UpdateInvitationInput) (*domain.Invitation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	inv, err := l.invitations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Used {
		return nil, domain.ErrInvitationUsed
	}

	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		if !validEmail(email) {
			return nil, domain.ErrValidation
		}
		inv.Email = email
	}
	if in.Role != nil {
		role, err := inviteRole(*in.Role)
		if err != nil {
			return nil, err
		}
		inv.Role = role
	}
	if in.Department != nil {
		inv.Department = *in.Department
	}
	if in.Position != nil {
		inv.Position = *in.Position
	}
	if in.Permissions != nil {
		inv.Permissions = append([]string{}, in.Permissions...)
	}
	if inv.Role != domain.RoleAdmin {
		inv.Permissions = nil
	}
	if in.ExpiresAt != nil {
		if !in.ExpiresAt.After(l.now()) {
			return nil, domain.ErrValidation
		}
		inv.ExpiresAt = in.ExpiresAt.UTC()
	}
	inv.UpdatedAt = l.now()

	return l.invitations.Update(ctx, inv)
}

// Delete removes an unused invitation. Redeemed invitations are kept.
func (l *InvitationLedger) Delete(ctx context.Context, actor ports.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return l.invitations.Delete(ctx, id)
}

// List returns every invitation, used and expired included.
func (l *InvitationLedger) List(ctx context.Context, actor ports.Actor) ([]*domain.Invitation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return l.invitations.List(ctx)
}

func inviteRole(s string) (domain.Role, error) {
	role, err := domain.ParseRole(s)
	if err != nil {
		return "", domain.ErrInvitationRoleInvalid
	}
	if role == domain.RoleGuest {
		return "", domain.ErrInvitationRoleInvalid
	}
	return role, nil
}
