package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
	"github.com/innkeep/hotel-system/internal/pkg/metrics"
)

// DefaultOTPTTL is how long an email verification code stays valid.
const DefaultOTPTTL = 10 * time.Minute

var otpSpace = big.NewInt(1_000_000)

// OTPChallenge issues and checks the six-digit email verification code. At most
// one challenge is live per user; issuing a new one replaces the old.
type OTPChallenge struct {
	users ports.UserRepository
	ttl   time.Duration
	now   Clock
}

// NewOTPChallenge returns an OTPChallenge. A non-positive ttl selects
// DefaultOTPTTL and a nil clock the UTC wall clock.
func NewOTPChallenge(users ports.UserRepository, ttl time.Duration, clock Clock) *OTPChallenge {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	if clock == nil {
		clock = systemClock
	}
	return &OTPChallenge{users: users, ttl: ttl, now: clock}
}

// Issue stores a fresh challenge for user and returns the code. It refuses when
// the email is already verified.
func (c *OTPChallenge) Issue(ctx context.Context, user *domain.User) (string, error) {
	if user.EmailVerified {
		return "", domain.ErrAlreadyVerified
	}
	code, err := generateOTP()
	if err != nil {
		return "", fmt.Errorf("issue otp: %w", err)
	}
	otp := domain.OTP{Code: code, ExpiresAt: c.now().Add(c.ttl)}
	if err := c.users.SetOTP(ctx, user.ID, otp); err != nil {
		return "", fmt.Errorf("issue otp: %w", err)
	}
	user.OTP = &otp
	metrics.OTPIssuedTotal.Inc()
	return code, nil
}

// Verify checks code against the live challenge of user. On success the
// challenge is cleared and the email is marked verified in one write. A wrong
// code leaves the challenge in place.
func (c *OTPChallenge) Verify(ctx context.Context, user *domain.User, code string) error {
	now := c.now()
	switch {
	case user.OTP == nil:
		metrics.OTPVerificationsTotal.WithLabelValues("missing").Inc()
		return domain.ErrOTPMissing
	case user.OTP.Code != code:
		metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
		return domain.ErrOTPInvalid
	case user.OTP.Expired(now):
		metrics.OTPVerificationsTotal.WithLabelValues("expired").Inc()
		return domain.ErrOTPExpired
	}

	ok, err := c.users.ConsumeOTP(ctx, user.ID, code, now)
	if err != nil {
		return fmt.Errorf("verify otp: %w", err)
	}
	if !ok {
		// Replaced or consumed between read and write.
		metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
		return domain.ErrOTPInvalid
	}
	user.OTP = nil
	user.EmailVerified = true
	metrics.OTPVerificationsTotal.WithLabelValues("success").Inc()
	return nil
}

// mailParams returns the template parameters announcing code to user.
func (c *OTPChallenge) mailParams(user *domain.User, code string) map[string]string {
	return map[string]string{
		"name":       user.Name,
		"code":       code,
		"expires_in": humanDuration(c.ttl),
	}
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
