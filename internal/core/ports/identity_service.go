package ports

import (
	"context"
	"time"

	"github.com/innkeep/hotel-system/internal/core/domain"
)

// Actor identifies the authenticated caller of a privileged operation.
type Actor struct {
	UserID string
	Role   domain.Role
}

// LoginMeta describes the client a session is opened for.
type LoginMeta struct {
	IPAddress string
	Device    string
}

// RegisterInput carries the fields of a self-service sign-up.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// LoginInput carries email and password credentials.
type LoginInput struct {
	Email    string
	Password string
	LoginMeta
}

// SocialIdentity is a verified assertion from an external identity provider.
type SocialIdentity struct {
	Provider    string
	ProviderID  string
	Email       string
	DisplayName string
}

// Session is an issued bearer token and the account it belongs to.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Account is a user together with its role profile.
type Account struct {
	User    *domain.User
	Profile domain.RoleProfile
}

// AuthService is the inbound port for self-service identity operations.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	VerifyEmail(ctx context.Context, email, code string) (*domain.User, error)
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, in LoginInput) (*Session, error)
	SocialLogin(ctx context.Context, id SocialIdentity, meta LoginMeta) (*Session, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	LogoutAll(ctx context.Context, userID string) error
	Me(ctx context.Context, userID string) (*Account, error)
	DeleteAccount(ctx context.Context, actor Actor, userID string) error
}

// CreateUserInput carries an admin-provisioned account.
type CreateUserInput struct {
	Name  string
	Email string
	Role  string
	domain.ProfileGrant
}

// AdminService is the inbound port for the approval workflow.
type AdminService interface {
	ListPending(ctx context.Context, actor Actor) ([]*domain.User, error)
	Approve(ctx context.Context, actor Actor, userID string, role *domain.Role) (*domain.User, error)
	Deactivate(ctx context.Context, actor Actor, userID string) (*domain.User, error)
	Reactivate(ctx context.Context, actor Actor, userID string) (*domain.User, error)
	CreateUser(ctx context.Context, actor Actor, in CreateUserInput) (*domain.User, error)
	ForceReset(ctx context.Context, actor Actor, userID string) error
}

// IssueInvitationInput carries a new invitation. TTLHours <= 0 selects the
// configured default.
type IssueInvitationInput struct {
	Email    string
	Role     string
	TTLHours int
	domain.ProfileGrant
}

// UpdateInvitationInput lists the mutable fields of an unused invitation. Nil
// fields are left unchanged.
type UpdateInvitationInput struct {
	Email       *string
	Role        *string
	Department  *string
	Position    *string
	Permissions []string
	ExpiresAt   *time.Time
}

// RedeemInput carries the account fields supplied with an invitation token.
// Email is optional; when present it must match the invited address.
type RedeemInput struct {
	Token    string
	Name     string
	Email    string
	Password string
}

// InvitationService is the inbound port for the invitation ledger.
type InvitationService interface {
	Issue(ctx context.Context, actor Actor, in IssueInvitationInput) (*domain.Invitation, error)
	Check(ctx context.Context, token string) (*domain.Invitation, error)
	Redeem(ctx context.Context, in RedeemInput) (*domain.User, error)
	Update(ctx context.Context, actor Actor, id string, in UpdateInvitationInput) (*domain.Invitation, error)
	Delete(ctx context.Context, actor Actor, id string) error
	List(ctx context.Context, actor Actor) ([]*domain.Invitation, error)
}
