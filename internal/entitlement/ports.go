// internal/entitlement/ports.go
package entitlement

import (
	"context"
	"time"
)

// Provider is the entitlement source adapter over the billing SDK. It is the
// only party whose answers may be written into SubscriptionState.
type Provider interface {
	// ActiveEntitlements returns the set of currently active entitlement
	// identifiers for the billing identity.
	ActiveEntitlements(ctx context.Context, identity string) ([]string, error)

	// Purchase initiates a purchase of the given offer.
	Purchase(ctx context.Context, identity, offerID string) (*Receipt, error)

	// RestorePurchases re-attaches prior purchases to the identity and
	// returns the resulting active entitlement set.
	RestorePurchases(ctx context.Context, identity string) ([]string, error)

	// LoginIdentity binds the app user to a billing identity for the
	// session.
	LoginIdentity(ctx context.Context, userID string) error
}

// TierCache is the durable local cache surviving process restarts and
// offline periods.
type TierCache interface {
	Get(ctx context.Context, userID string) (Tier, bool, error)
	Set(ctx context.Context, userID string, tier Tier) error
}

// MirrorDoc is the per-user mirror document used for near-real-time
// multi-device visibility.
type MirrorDoc struct {
	Tier      Tier      `json:"tier"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MirrorEvent is one change notification from the mirror store.
type MirrorEvent struct {
	UserID string
	Doc    MirrorDoc
}

// MirrorStore is the remote mirror: read, best-effort write, and a change
// subscription. It is a visibility channel, never a source of truth.
type MirrorStore interface {
	Read(ctx context.Context, userID string) (*MirrorDoc, error)
	Write(ctx context.Context, userID string, doc MirrorDoc) error

	// Subscribe returns a channel of change events for the user and a
	// function tearing the subscription down. The channel closes after
	// teardown.
	Subscribe(ctx context.Context, userID string) (<-chan MirrorEvent, func(), error)
}

// WalletStore holds the in-app currency balance. The core never mutates the
// balance except through ConditionalDebit.
type WalletStore interface {
	ReadBalance(ctx context.Context, userID string) (int64, error)

	// ConditionalDebit decrements the balance by amount iff the balance is
	// still at least amount at commit time. Returns false when the guard
	// fails (e.g. a concurrent spend drained the balance first).
	ConditionalDebit(ctx context.Context, userID string, amount int64) (bool, error)
}

// GrantRequest is the transient value object sent to the remote grant
// endpoint. Created per attempt, discarded after completion, never persisted.
type GrantRequest struct {
	EntitlementID    string `json:"entitlementId"`
	DurationDays     int    `json:"durationDays"`
	DurationUnit     string `json:"durationUnit"`
	RequestingUserID string `json:"requestingUserId"`
	BillingIdentity  string `json:"billingIdentity"`

	// IdempotencyKey makes retried calls with the same parameters safe on
	// the grant endpoint side.
	IdempotencyKey string `json:"idempotencyKey"`
}

// Granter is the remote authority issuing temporary promotional
// entitlements. Idempotent per logical request.
type Granter interface {
	Grant(ctx context.Context, req GrantRequest) error
}

// ExchangeRecord is what the audit sink receives for every exchange attempt
// that reached the grant call.
type ExchangeRecord struct {
	UserID        string    `json:"userId"`
	EntitlementID string    `json:"entitlementId"`
	Cost          int64     `json:"cost"`
	Result        string    `json:"result"`
	GrantKey      string    `json:"grantKey"`
	Source        string    `json:"source"`
	At            time.Time `json:"at"`
}

// AuditSink records exchange outcomes for offline reconciliation. Writes are
// best effort; a sink failure never changes an exchange result.
type AuditSink interface {
	RecordExchange(ctx context.Context, rec ExchangeRecord)
}
