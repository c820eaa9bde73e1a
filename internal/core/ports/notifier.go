package ports

import (
	"context"
	"time"
)

// Template names an outbound message shape.
type Template string

const (
	TemplateEmailOTP          Template = "email_otp"
	TemplateInvitation        Template = "invitation"
	TemplatePasswordReset     Template = "password_reset"
	TemplateApprovalRequested Template = "approval_requested"
	TemplateAccountApproved   Template = "account_approved"
	TemplatePasswordChanged   Template = "password_changed"
)

// Notifier delivers a message to an email address. Callers treat delivery as
// fire-and-forget: an error is reported but never rolls back committed state.
type Notifier interface {
	Send(ctx context.Context, to string, tmpl Template, params map[string]string) error
}

// ResendThrottle rate-limits repeated sends keyed by an opaque string.
type ResendThrottle interface {
	// Allow reports whether a send for key may happen now and, if so, starts a
	// cooldown window.
	Allow(ctx context.Context, key string, cooldown time.Duration) (bool, error)
}
