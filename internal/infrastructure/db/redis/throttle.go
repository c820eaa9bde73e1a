package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResendThrottle rate-limits outbound verification codes with expiring keys.
// Key format: throttle:<key>
type ResendThrottle struct {
	client *redis.Client
}

// NewResendThrottle creates a ResendThrottle wrapping the given Redis client.
func NewResendThrottle(client *redis.Client) *ResendThrottle {
	return &ResendThrottle{client: client}
}

// Allow claims the cooldown window for key. It returns false while a previous
// claim is still live.
func (t *ResendThrottle) Allow(ctx context.Context, key string, cooldown time.Duration) (bool, error) {
	ok, err := t.client.SetNX(ctx, "throttle:"+key, "1", cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("throttle check: %w", err)
	}
	return ok, nil
}
