// Package metrics defines and registers the custom Prometheus metrics of the
// hotel identity service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics register with the default Prometheus registry on package load and are
// served by the echoprometheus handler mounted at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hotel_identity"

// ── Authentication metrics ────────────────────────────────────────────────────

// LoginsTotal counts sign-in attempts.
// Labels:
//   - method: "password" or the social provider name (e.g. "google")
//   - result: "success" or the error code that blocked the session
//     (e.g. "invalid_credentials", "pending_approval")
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of sign-in attempts, by method and result.",
	},
	[]string{"method", "result"},
)

// SessionsInvalidatedTotal counts token version bumps.
// Label:
//   - reason: "logout_all", "password_reset", "password_change"
var SessionsInvalidatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_invalidated_total",
		Help:      "Total number of global session invalidations, by reason.",
	},
	[]string{"reason"},
)

// ── Lifecycle metrics ─────────────────────────────────────────────────────────

// OTPIssuedTotal counts email verification codes issued.
var OTPIssuedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_issued_total",
		Help:      "Total number of email verification codes issued.",
	},
)

// OTPVerificationsTotal counts verification attempts.
// Label:
//   - result: "success", "invalid", "expired", "missing"
var OTPVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_verifications_total",
		Help:      "Total number of email verification attempts, by result.",
	},
	[]string{"result"},
)

// InvitationsTotal counts invitation lifecycle events.
// Label:
//   - event: "issued", "redeemed", "rejected"
var InvitationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invitations_total",
		Help:      "Total number of invitation lifecycle events.",
	},
	[]string{"event"},
)

// ApprovalsTotal counts approval decisions.
// Label:
//   - role: role granted on approval
var ApprovalsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "approvals_total",
		Help:      "Total number of accounts approved, by granted role.",
	},
	[]string{"role"},
)

// ── Notification metrics ──────────────────────────────────────────────────────

// NotificationsTotal counts delivery outcomes.
// Labels:
//   - template: notification template (e.g. "email_otp")
//   - result: "sent" or "failed"
var NotificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total number of notifications attempted, by template and result.",
	},
	[]string{"template", "result"},
)

// NotificationQueueDepth tracks pending messages in each notification worker channel.
// Label:
//   - worker_id: numeric worker index
var NotificationQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notification_queue_depth",
		Help:      "Current number of notifications pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
