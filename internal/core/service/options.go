package service

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultInviteTTL is the lifetime of an invitation when the issuer does not
// choose one.
const DefaultInviteTTL = 72 * time.Hour

// DefaultResendCooldown spaces out verification code resends per user.
const DefaultResendCooldown = time.Minute

// Options carries the tunables shared by the identity services.
type Options struct {
	// AppBaseURL prefixes links embedded in outbound mail.
	AppBaseURL     string
	ResetTokenTTL  time.Duration
	InviteTTL      time.Duration
	ResendCooldown time.Duration
	// Clock overrides the time source. Nil means UTC wall clock.
	Clock Clock
}

func (o Options) withDefaults() Options {
	o.AppBaseURL = strings.TrimRight(o.AppBaseURL, "/")
	if o.ResetTokenTTL <= 0 {
		o.ResetTokenTTL = DefaultResetTokenTTL
	}
	if o.InviteTTL <= 0 {
		o.InviteTTL = DefaultInviteTTL
	}
	if o.ResendCooldown <= 0 {
		o.ResendCooldown = DefaultResendCooldown
	}
	if o.Clock == nil {
		o.Clock = systemClock
	}
	return o
}

var namePolicy = bluemonday.StrictPolicy()

// sanitizeName strips markup from a display name before it is stored or mailed.
// Entities escaped by the policy are folded back so names like O'Brien survive.
func sanitizeName(name string) string {
	return strings.TrimSpace(html.UnescapeString(namePolicy.Sanitize(name)))
}
