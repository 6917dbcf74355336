// internal/store/mirror/mirror.go
package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"entitlement-workers/internal/common/logger"
	"entitlement-workers/internal/entitlement"
)

const (
	docPrefix     = "mirror:"
	channelPrefix = "mirror:events:"
)

// Store is the remote mirror on Redis: a per-user JSON document plus a
// pub/sub channel announcing every write, so other devices of the same user
// observe tier changes in near real time. The mirror is a visibility
// channel only; readers treat it as a hint to resync, never as truth.
type Store struct {
	client *redis.Client
	log    logger.Logger
}

func New(client *redis.Client, log logger.Logger) *Store {
	return &Store{client: client, log: log}
}

func docKey(userID string) string {
	return docPrefix + userID
}

func channel(userID string) string {
	return channelPrefix + userID
}

// Read returns the mirror document for the user, or nil when none exists.
func (s *Store) Read(ctx context.Context, userID string) (*entitlement.MirrorDoc, error) {
	raw, err := s.client.Get(ctx, docKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mirror read: %w", err)
	}

	var doc entitlement.MirrorDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("mirror document corrupt: %w", err)
	}
	return &doc, nil
}

// Write stores the document and publishes a change event. The publish rides
// on the write; a subscriber miss is acceptable because the next write
// publishes again.
func (s *Store) Write(ctx context.Context, userID string, doc entitlement.MirrorDoc) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("mirror marshal: %w", err)
	}

	if err := s.client.Set(ctx, docKey(userID), raw, 0).Err(); err != nil {
		return fmt.Errorf("mirror write: %w", err)
	}

	if err := s.client.Publish(ctx, channel(userID), raw).Err(); err != nil {
		return fmt.Errorf("mirror publish: %w", err)
	}
	return nil
}

// Subscribe listens on the user's change channel and forwards decoded
// events. Malformed payloads are dropped with a warning rather than
// terminating the subscription.
func (s *Store) Subscribe(ctx context.Context, userID string) (<-chan entitlement.MirrorEvent, func(), error) {
	sub := s.client.Subscribe(ctx, channel(userID))

	// Receive forces the SUBSCRIBE handshake so a broken connection
	// surfaces here instead of as a silently dead channel.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("mirror subscribe: %w", err)
	}

	out := make(chan entitlement.MirrorEvent, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var doc entitlement.MirrorDoc
			if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
				s.log.Warn("dropping malformed mirror event", map[string]interface{}{
					"userId": userID,
					"error":  err.Error(),
				})
				continue
			}
			select {
			case out <- entitlement.MirrorEvent{UserID: userID, Doc: doc}:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		_ = sub.Close()
	}
	return out, cancel, nil
}
