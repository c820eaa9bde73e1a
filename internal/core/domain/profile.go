package domain

import "time"

// RoleProfile is the role-specific extension record owned 1:1 by a User.
// The set of implementations is closed: Guest, Staff, Manager and Admin.
type RoleProfile interface {
	ProfileRole() Role
	OwnerID() string
	isRoleProfile()
}

// ProfileBase carries the fields every role profile shares.
type ProfileBase struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (b ProfileBase) OwnerID() string { return b.UserID }

type GuestProfile struct {
	ProfileBase
	Phone       string   `json:"phone,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
}

type StaffProfile struct {
	ProfileBase
	Department string `json:"department,omitempty"`
	Position   string `json:"position,omitempty"`
}

type ManagerProfile struct {
	ProfileBase
	Department string `json:"department,omitempty"`
}

// AdminProfile holds the granular module permissions granted to an admin.
type AdminProfile struct {
	ProfileBase
	Permissions []string `json:"permissions"`
}

func (GuestProfile) ProfileRole() Role   { return RoleGuest }
func (StaffProfile) ProfileRole() Role   { return RoleStaff }
func (ManagerProfile) ProfileRole() Role { return RoleManager }
func (AdminProfile) ProfileRole() Role   { return RoleAdmin }

func (GuestProfile) isRoleProfile()   {}
func (StaffProfile) isRoleProfile()   {}
func (ManagerProfile) isRoleProfile() {}
func (AdminProfile) isRoleProfile()   {}

// ProfileGrant carries the optional attributes an invitation or admin can
// pre-assign to the profile created for a new account.
type ProfileGrant struct {
	Department  string
	Position    string
	Permissions []string
}

// NewProfile builds the profile shape matching role. Every Role constant has a
// case; an unknown role is a validation error, never a silent default.
func NewProfile(role Role, userID string, grant ProfileGrant, now time.Time) (RoleProfile, error) {
	base := ProfileBase{UserID: userID, CreatedAt: now}
	switch role {
	case RoleGuest:
		return GuestProfile{ProfileBase: base}, nil
	case RoleStaff:
		return StaffProfile{ProfileBase: base, Department: grant.Department, Position: grant.Position}, nil
	case RoleManager:
		return ManagerProfile{ProfileBase: base, Department: grant.Department}, nil
	case RoleAdmin:
		perms := append([]string{}, grant.Permissions...)
		return AdminProfile{ProfileBase: base, Permissions: perms}, nil
	}
	return nil, ErrValidation
}
