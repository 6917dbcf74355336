// internal/workers/subscription/sync-subscription/models.go
package syncsubscription

import (
	"context"
	"time"

	"entitlement-workers/internal/entitlement"
)

type Input struct {
	UserID string `json:"userId"`
	Force  bool   `json:"force,omitempty"`
}

type Output struct {
	Success      bool       `json:"success"`
	Tier         string     `json:"tier"`
	Freshness    string     `json:"freshness"`
	SyncStatus   string     `json:"syncStatus"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
}

// SubscriptionService is the slice of the session manager this worker uses.
type SubscriptionService interface {
	SyncUser(ctx context.Context, userID string, force bool) (entitlement.State, error)
}
