package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OAuthStateStore keeps the anti-forgery state of in-flight OAuth redirects.
// Each state is single-use. Key format: oauth_state:<state>
type OAuthStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOAuthStateStore creates an OAuthStateStore whose entries expire after ttl.
func NewOAuthStateStore(client *redis.Client, ttl time.Duration) *OAuthStateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OAuthStateStore{client: client, ttl: ttl}
}

// Save records state with the post-login redirect it should resume.
func (s *OAuthStateStore) Save(ctx context.Context, state, returnTo string) error {
	if err := s.client.Set(ctx, s.key(state), returnTo, s.ttl).Err(); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// Consume atomically reads and deletes state. ok is false when the state is
// unknown, expired, or already used.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) (returnTo string, ok bool, err error) {
	returnTo, err = s.client.GetDel(ctx, s.key(state)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("consume oauth state: %w", err)
	}
	return returnTo, true, nil
}

func (s *OAuthStateStore) key(state string) string {
	return "oauth_state:" + state
}
