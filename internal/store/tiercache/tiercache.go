// internal/store/tiercache/tiercache.go
package tiercache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"entitlement-workers/internal/entitlement"
)

const keyPrefix = "tier:"

// Store is the durable tier cache on Redis. Entries carry no TTL: a cached
// tier may be served as STALE indefinitely while the billing provider is
// unreachable, so expiry would silently downgrade offline users.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func key(userID string) string {
	return keyPrefix + userID
}

// Get returns the cached tier for the user and whether one exists.
func (s *Store) Get(ctx context.Context, userID string) (entitlement.Tier, bool, error) {
	val, err := s.client.Get(ctx, key(userID)).Result()
	if err == redis.Nil {
		return entitlement.TierFree, false, nil
	}
	if err != nil {
		return entitlement.TierFree, false, fmt.Errorf("tier cache get: %w", err)
	}
	// ParseTier maps anything unrecognized to free, so a corrupted entry can
	// never upgrade a user.
	return entitlement.ParseTier(val), true, nil
}

// Set stores the tier for the user, overwriting any previous value.
func (s *Store) Set(ctx context.Context, userID string, tier entitlement.Tier) error {
	if err := s.client.Set(ctx, key(userID), string(tier), 0).Err(); err != nil {
		return fmt.Errorf("tier cache set: %w", err)
	}
	return nil
}
