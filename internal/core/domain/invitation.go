package domain

import "time"

// Invitation pre-authorizes account creation at a non-guest role. Token is a
// single-use bearer secret. Used is a one-way latch; expired invitations are kept
// for audit.
type Invitation struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	Department  string     `json:"department,omitempty"`
	Position    string     `json:"position,omitempty"`
	Permissions []string   `json:"permissions,omitempty"`
	Token       string     `json:"-"`
	CreatedBy   string     `json:"created_by"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Used        bool       `json:"used"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Expired reports whether the invitation is past its deadline.
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Validate returns the reason the invitation cannot be redeemed, if any.
func (i *Invitation) Validate(now time.Time) error {
	if i.Used {
		return ErrInvitationUsed
	}
	if i.Expired(now) {
		return ErrInvitationExpired
	}
	return nil
}

// Grant returns the profile attributes the invitation pre-assigns.
func (i *Invitation) Grant() ProfileGrant {
	return ProfileGrant{
		Department:  i.Department,
		Position:    i.Position,
		Permissions: i.Permissions,
	}
}
