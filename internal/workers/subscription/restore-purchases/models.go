// internal/workers/subscription/restore-purchases/models.go
package restorepurchases

import (
	"context"

	"entitlement-workers/internal/entitlement"
)

type Input struct {
	UserID string `json:"userId"`
}

type Output struct {
	Success    bool   `json:"success"`
	Restored   bool   `json:"restored"`
	Tier       string `json:"tier"`
	SyncStatus string `json:"syncStatus"`
}

// SubscriptionService is the slice of the session manager this worker uses.
type SubscriptionService interface {
	RestoreUser(ctx context.Context, userID string) (bool, entitlement.State, error)
}
