package domain

import (
	"strings"
	"time"
)

// Role is the coarse authorization tier of an account.
type Role string

const (
	RoleGuest   Role = "guest"
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// ParseRole validates s against the closed set of roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleGuest, RoleStaff, RoleManager, RoleAdmin:
		return r, nil
	}
	return "", ErrValidation
}

// RequiresApproval reports whether accounts of this role pass through the approval gate.
func (r Role) RequiresApproval() bool {
	return r != RoleGuest
}

// OTP is the single live email-verification challenge of a user.
type OTP struct {
	Code      string    `json:"-" bson:"code"`
	ExpiresAt time.Time `json:"-" bson:"expires_at"`
}

// Expired reports whether the challenge is past its deadline. A submission at
// exactly ExpiresAt is still accepted.
func (o *OTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// AuthProvider links a third-party identity to a user.
type AuthProvider struct {
	Provider   string `json:"provider" bson:"provider"`
	ProviderID string `json:"provider_id" bson:"provider_id"`
	Email      string `json:"email" bson:"email"`
}

// LoginRecord is one entry of the append-only login history.
type LoginRecord struct {
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	IPAddress string    `json:"ip_address" bson:"ip_address"`
	Device    string    `json:"device" bson:"device"`
}

// User is the identity aggregate root.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`

	EmailVerified bool       `json:"email_verified"`
	IsApproved    bool       `json:"is_approved"`
	IsActive      bool       `json:"is_active"`
	ApprovedBy    string     `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`

	TokenVersion int  `json:"-"`
	OTP          *OTP `json:"-"`

	PasswordResetToken   string     `json:"-"`
	PasswordResetExpiry  *time.Time `json:"-"`
	PasswordResetPending bool       `json:"password_reset_pending"`

	AuthProviders []AuthProvider `json:"auth_providers"`
	LoginHistory  []LoginRecord  `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeEmail folds an address to its canonical lookup form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasPassword reports whether password sign-in is possible for the account.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// LastLogin is derived from the login history.
func (u *User) LastLogin() *time.Time {
	if len(u.LoginHistory) == 0 {
		return nil
	}
	ts := u.LoginHistory[len(u.LoginHistory)-1].Timestamp
	return &ts
}

// HasProvider reports whether the (provider, providerID) pair is linked.
func (u *User) HasProvider(provider, providerID string) bool {
	for _, p := range u.AuthProviders {
		if p.Provider == provider && p.ProviderID == providerID {
			return true
		}
	}
	return false
}

// State is the lifecycle position of a user, derived from its flags.
type State string

const (
	StateUnverified      State = "unverified"
	StatePendingApproval State = "pending_approval"
	StateActive          State = "active"
	StateDeactivated     State = "deactivated"
)

// State derives the lifecycle state. PasswordResetPending is orthogonal and not
// reflected here.
func (u *User) State() State {
	switch {
	case !u.EmailVerified:
		return StateUnverified
	case u.Role.RequiresApproval() && !u.IsApproved:
		return StatePendingApproval
	case !u.IsActive:
		return StateDeactivated
	default:
		return StateActive
	}
}
