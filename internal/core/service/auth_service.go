package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
	"github.com/innkeep/hotel-system/internal/pkg/metrics"
)

const methodPassword = "password"

// AuthService implements self-service registration, sign-in and credential
// management on top of the identity components.
type AuthService struct {
	users    ports.UserRepository
	profiles profileProvisioner
	creds    *CredentialVerifier
	otp      *OTPChallenge
	sessions *SessionTokenIssuer
	approval *ApprovalWorkflow
	social   *SocialLinkResolver
	notifier ports.Notifier
	throttle ports.ResendThrottle
	reset    passwordReset
	cooldown time.Duration
	log      zerolog.Logger
	now      Clock
}

var _ ports.AuthService = (*AuthService)(nil)

// NewAuthService returns an AuthService. throttle may be nil, disabling resend
// rate limiting.
func NewAuthService(
	users ports.UserRepository,
	profiles ports.ProfileRepository,
	creds *CredentialVerifier,
	otp *OTPChallenge,
	sessions *SessionTokenIssuer,
	approval *ApprovalWorkflow,
	social *SocialLinkResolver,
	notifier ports.Notifier,
	throttle ports.ResendThrottle,
	opts Options,
	log zerolog.Logger,
) *AuthService {
	opts = opts.withDefaults()
	return &AuthService{
		users:    users,
		profiles: profileProvisioner{profiles: profiles, now: opts.Clock},
		creds:    creds,
		otp:      otp,
		sessions: sessions,
		approval: approval,
		social:   social,
		notifier: notifier,
		throttle: throttle,
		reset: passwordReset{
			users:    users,
			creds:    creds,
			notifier: notifier,
			baseURL:  opts.AppBaseURL,
			ttl:      opts.ResetTokenTTL,
			now:      opts.Clock,
			log:      log,
		},
		cooldown: opts.ResendCooldown,
		log:      log,
		now:      opts.Clock,
	}
}

// Register creates a password account and mails a verification code. Guests are
// approved at creation; staff and managers wait for an admin. Admin accounts
// cannot be self-registered.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	role := domain.RoleGuest
	if in.Role != "" {
		r, err := domain.ParseRole(in.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}
	if role == domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	email := domain.NormalizeEmail(in.Email)
	name := sanitizeName(in.Name)
	if !validEmail(email) || name == "" {
		return nil, domain.ErrValidation
	}

	hash, err := s.creds.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		Name:          name,
		Email:         email,
		PasswordHash:  hash,
		Role:          role,
		IsApproved:    !role.RequiresApproval(),
		IsActive:      true,
		AuthProviders: []domain.AuthProvider{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	if created.IsApproved {
		if _, err := s.profiles.ensure(ctx, created, domain.ProfileGrant{}); err != nil {
			s.log.Error().Err(err).Str("user_id", created.ID).Msg("profile provisioning failed at registration")
		}
	}
	if err := s.sendOTP(ctx, created); err != nil {
		s.log.Warn().Err(err).Str("user_id", created.ID).Msg("verification code not issued at registration")
	}

	s.log.Info().Str("user_id", created.ID).Str("role", string(role)).Msg("user registered")
	return created, nil
}

// VerifyEmail checks the code mailed to email.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return s.approval.VerifyEmail(ctx, user, code)
}

// ResendOTP replaces the live code of an unverified user, at most once per
// cooldown window.
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return domain.ErrAlreadyVerified
	}
	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, "otp:"+user.ID, s.cooldown)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("resend throttle unavailable, sending anyway")
		} else if !allowed {
			return domain.ErrResendThrottled
		}
	}
	return s.sendOTP(ctx, user)
}

func (s *AuthService) sendOTP(ctx context.Context, user *domain.User) error {
	code, err := s.otp.Issue(ctx, user)
	if err != nil {
		return err
	}
	notify(ctx, s.notifier, s.log, user.Email, ports.TemplateEmailOTP, s.otp.mailParams(user, code))
	return nil
}

// Login authenticates email and password and opens a session.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.Session, error) {
	session, err := s.login(ctx, in)
	result := "success"
	if err != nil {
		result = domain.CodeOf(err)
		if result == "" {
			result = "error"
		}
	}
	metrics.LoginsTotal.WithLabelValues(methodPassword, result).Inc()
	return session, err
}

func (s *AuthService) login(ctx context.Context, in ports.LoginInput) (*ports.Session, error) {
	user, err := s.users.FindByEmail(ctx, domain.NormalizeEmail(in.Email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !user.HasPassword() {
		return nil, domain.WithUser(domain.ErrSocialOnlyAccount, user.ID)
	}
	if !s.creds.Verify(in.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if err := s.approval.GateLogin(ctx, user); err != nil {
		return nil, err
	}
	return s.startSession(ctx, user, in.LoginMeta)
}

// SocialLogin resolves an external identity to a local user and opens a session.
func (s *AuthService) SocialLogin(ctx context.Context, id ports.SocialIdentity, meta ports.LoginMeta) (*ports.Session, error) {
	session, err := s.socialLogin(ctx, id, meta)
	result := "success"
	if err != nil {
		result = domain.CodeOf(err)
		if result == "" {
			result = "error"
		}
	}
	metrics.LoginsTotal.WithLabelValues(id.Provider, result).Inc()
	return session, err
}

func (s *AuthService) socialLogin(ctx context.Context, id ports.SocialIdentity, meta ports.LoginMeta) (*ports.Session, error) {
	user, err := s.social.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.approval.GateLogin(ctx, user); err != nil {
		return nil, err
	}
	return s.startSession(ctx, user, meta)
}

// startSession heals a missing profile, records the login and signs a token.
func (s *AuthService) startSession(ctx context.Context, user *domain.User, meta ports.LoginMeta) (*ports.Session, error) {
	if _, err := s.profiles.ensure(ctx, user, domain.ProfileGrant{}); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("profile healing failed at login")
	}
	record := domain.LoginRecord{Timestamp: s.now(), IPAddress: meta.IPAddress, Device: meta.Device}
	if err := s.users.AppendLogin(ctx, user.ID, record); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("login history not recorded")
	} else {
		user.LoginHistory = append(user.LoginHistory, record)
	}

	token, exp, err := s.sessions.Issue(user)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("session issued")
	return &ports.Session{Token: token, ExpiresAt: exp, User: user}, nil
}

// ForgotPassword mails a reset link. Unknown addresses succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		s.log.Debug().Msg("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	return s.reset.issue(ctx, user, user.PasswordResetPending)
}

// ResetPassword consumes a reset token and signs the user out everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.reset.consume(ctx, token, newPassword)
	if err != nil {
		return err
	}
	metrics.SessionsInvalidatedTotal.WithLabelValues("password_reset").Inc()
	notify(ctx, s.notifier, s.log, user.Email, ports.TemplatePasswordChanged, map[string]string{"name": user.Name})
	s.log.Info().Str("user_id", user.ID).Msg("password reset completed")
	return nil
}

// ChangePassword replaces the password of a signed-in user and revokes every
// session, the current one included.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return domain.ErrSocialOnlyAccount
	}
	if !s.creds.Verify(oldPassword, user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	hash, err := s.creds.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	metrics.SessionsInvalidatedTotal.WithLabelValues("password_change").Inc()
	notify(ctx, s.notifier, s.log, user.Email, ports.TemplatePasswordChanged, map[string]string{"name": user.Name})
	return nil
}

// LogoutAll revokes every session of userID.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	if _, err := s.sessions.InvalidateAll(ctx, userID, "logout_all"); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}
	s.log.Info().Str("user_id", userID).Msg("all sessions revoked")
	return nil
}

// Me returns the account and profile of userID, provisioning the profile if it
// is missing.
func (s *AuthService) Me(ctx context.Context, userID string) (*ports.Account, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	acct := &ports.Account{User: user}
	if !user.IsApproved {
		return acct, nil
	}
	profile, err := s.profiles.ensure(ctx, user, domain.ProfileGrant{})
	if err != nil {
		return nil, err
	}
	acct.Profile = profile
	return acct, nil
}

// DeleteAccount removes a user and their profile. Users may delete themselves;
// admins may delete anyone else.
func (s *AuthService) DeleteAccount(ctx context.Context, actor ports.Actor, userID string) error {
	if actor.UserID != userID && requireAdmin(actor) != nil {
		return domain.ErrForbidden
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return err
	}
	if err := s.profiles.profiles.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	s.log.Info().Str("user_id", userID).Str("by", actor.UserID).Msg("account deleted")
	return nil
}
