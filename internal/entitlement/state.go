// internal/entitlement/state.go
package entitlement

import "time"

// Freshness marks whether the in-memory tier came from a successful adapter
// read or from a cache fallback after a failed sync.
type Freshness string

const (
	FreshnessFresh Freshness = "FRESH"
	FreshnessStale Freshness = "STALE"
)

// SyncStatus is the synchronizer's lifecycle state.
//
//	UNINITIALIZED -> SYNCING -> {SYNCED, STALE}
//
// ERROR is reachable only when a sync fails and no cached tier exists at all
// (first-ever sync on a fresh install with no connectivity); it is terminal
// until the next successful sync. Logout returns any state to UNINITIALIZED.
type SyncStatus string

const (
	StatusUninitialized SyncStatus = "UNINITIALIZED"
	StatusSyncing       SyncStatus = "SYNCING"
	StatusSynced        SyncStatus = "SYNCED"
	StatusStale         SyncStatus = "STALE"
	StatusError         SyncStatus = "ERROR"
)

// State is the subscription state owned exclusively by the Synchronizer for
// the lifetime of a logged-in session.
type State struct {
	Tier         Tier       `json:"tier"`
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
	Freshness    Freshness  `json:"freshness"`
	Status       SyncStatus `json:"status"`
}

// newState is the state a session starts in: free tier, stale until the
// first successful sync.
func newState() State {
	return State{
		Tier:      TierFree,
		Freshness: FreshnessStale,
		Status:    StatusUninitialized,
	}
}

// Receipt is the result of a completed purchase, carrying the entitlement
// set obtained at purchase time.
type Receipt struct {
	TransactionID string   `json:"transactionId"`
	OfferID       string   `json:"offerId"`
	Entitlements  []string `json:"entitlements"`
}

// TierChange is emitted on the notification channel whenever the effective
// tier moves.
type TierChange struct {
	UserID   string    `json:"userId"`
	Previous Tier      `json:"previous"`
	Current  Tier      `json:"current"`
	At       time.Time `json:"at"`
}
