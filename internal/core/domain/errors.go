package domain

import "errors"

// Kind classifies a domain error so transports can branch without parsing text.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindExpired           Kind = "expired"
	KindInvalidCredential Kind = "invalid_credential"
	KindForbidden         Kind = "forbidden"
	KindValidation        Kind = "validation"
	KindDependency        Kind = "dependency_failure"
)

// Error is a named identity error. Instances are sentinels compared with errors.Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrUserNotFound       = newError(KindNotFound, "user_not_found", "user not found")
	ErrUserExists         = newError(KindConflict, "user_exists", "user already exists")
	ErrInvalidCredentials = newError(KindInvalidCredential, "invalid_credentials", "invalid credentials")
	ErrForbidden          = newError(KindForbidden, "forbidden", "access forbidden")
	ErrValidation         = newError(KindValidation, "validation", "invalid input")
	ErrProfileNotFound    = newError(KindNotFound, "profile_not_found", "profile not found")

	ErrInvitationNotFound    = newError(KindNotFound, "invitation_not_found", "invitation not found")
	ErrInvitationUsed        = newError(KindConflict, "invitation_used", "invitation already used")
	ErrInvitationExpired     = newError(KindExpired, "invitation_expired", "invitation expired")
	ErrInvitationRoleInvalid = newError(KindValidation, "invitation_role_invalid", "guests cannot be invited")

	ErrOTPMissing        = newError(KindInvalidCredential, "otp_missing", "no verification code pending")
	ErrOTPInvalid        = newError(KindInvalidCredential, "otp_invalid", "invalid verification code")
	ErrOTPExpired        = newError(KindExpired, "otp_expired", "verification code expired")
	ErrAlreadyVerified   = newError(KindConflict, "already_verified", "email already verified")
	ErrResendThrottled   = newError(KindForbidden, "resend_throttled", "verification code recently sent")
	ErrResetTokenExpired = newError(KindExpired, "reset_token_expired", "password reset link expired")
	ErrResetTokenInvalid = newError(KindInvalidCredential, "reset_token_invalid", "password reset link invalid")

	ErrRequiresVerification = newError(KindForbidden, "requires_verification", "email verification required")
	ErrPendingApproval      = newError(KindForbidden, "pending_approval", "account pending admin approval")
	ErrAccountDeactivated   = newError(KindForbidden, "account_deactivated", "account deactivated")
	ErrSocialOnlyAccount    = newError(KindForbidden, "social_only_account", "account uses social sign-in")
	ErrResetRequired        = newError(KindForbidden, "reset_required", "password reset required")
	ErrNotPendingApproval   = newError(KindConflict, "not_pending_approval", "account is not pending approval")
	ErrSessionInvalid       = newError(KindInvalidCredential, "session_invalid", "session no longer valid")
)

// Detail attaches the context a UI needs to route the user (resend OTP, wait for
// approval, forced reset) to a sentinel error.
type Detail struct {
	Err        *Error
	UserID     string
	RedirectTo string
}

func (d *Detail) Error() string { return d.Err.Error() }

func (d *Detail) Unwrap() error { return d.Err }

// WithUser wraps err with the affected user id.
func WithUser(err *Error, userID string) error {
	return &Detail{Err: err, UserID: userID}
}

// WithRedirect wraps err with the affected user id and a client route.
func WithRedirect(err *Error, userID, redirectTo string) error {
	return &Detail{Err: err, UserID: userID, RedirectTo: redirectTo}
}

// KindOf reports the kind of err. Anything that is not a domain error is treated
// as a dependency failure (store, cache or transport).
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindDependency
}

// CodeOf returns the stable code of a domain error, or "" for foreign errors.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// DetailOf extracts the routing context of err, if any.
func DetailOf(err error) (userID, redirectTo string) {
	var d *Detail
	if errors.As(err, &d) {
		return d.UserID, d.RedirectTo
	}
	return "", ""
}
