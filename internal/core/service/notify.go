package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/innkeep/hotel-system/internal/core/ports"
	"github.com/innkeep/hotel-system/internal/pkg/metrics"
)

// notify hands a message to the notifier. Delivery failures are logged and
// counted; they never fail the calling operation.
func notify(ctx context.Context, n ports.Notifier, log zerolog.Logger, to string, tmpl ports.Template, params map[string]string) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, to, tmpl, params); err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(tmpl), "failed").Inc()
		log.Warn().Err(err).Str("template", string(tmpl)).Msg("notification not delivered")
	}
}

// humanDuration renders d for mail copy, e.g. "10 minutes" or "72 hours".
func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int64(d/time.Hour), "hour")
	}
	return plural(int64(d/time.Minute), "minute")
}
