// internal/entitlement/synchronizer.go
package entitlement

import (
	"context"
	"sync"
	"time"

	"entitlement-workers/internal/common/errors"
	"entitlement-workers/internal/common/logger"
	"entitlement-workers/internal/common/metrics"
)

// DefaultFreshnessWindow bounds call volume to the billing provider. It is a
// time-based cache, not a correctness guarantee.
const DefaultFreshnessWindow = 5 * time.Minute

// Synchronizer is the single authority deciding the effective tier for one
// logged-in session. It queries the billing provider, applies the precedence
// rule, and fans the result out to the local cache (always) and the mirror
// store (best effort). Nothing else mutates State.
type Synchronizer struct {
	userID   string
	provider Provider
	cache    TierCache
	mirror   MirrorStore
	window   time.Duration
	log      logger.Logger

	mu    sync.Mutex
	state State
	subs  []chan TierChange
}

// SynchronizerOption tweaks construction.
type SynchronizerOption func(*Synchronizer)

// WithFreshnessWindow overrides the default 5-minute freshness window.
func WithFreshnessWindow(d time.Duration) SynchronizerOption {
	return func(s *Synchronizer) { s.window = d }
}

func NewSynchronizer(userID string, provider Provider, cache TierCache, mirror MirrorStore, log logger.Logger, opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{
		userID:   userID,
		provider: provider,
		cache:    cache,
		mirror:   mirror,
		window:   DefaultFreshnessWindow,
		log:      log.WithFields(map[string]interface{}{"userId": userID}),
		state:    newState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentTier is a pure read of in-memory state, no I/O.
func (s *Synchronizer) CurrentTier() Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Tier
}

// Snapshot returns a copy of the full subscription state.
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel receiving tier changes and a teardown
// function. Sends never block; a slow consumer misses intermediate changes
// and re-reads the tier instead.
func (s *Synchronizer) Subscribe() (<-chan TierChange, func()) {
	ch := make(chan TierChange, 8)

	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, c := range s.subs {
			if c == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Sync reconciles the in-memory tier with the billing provider.
//
// Within the freshness window a non-forced call returns the held tier with
// no I/O. Otherwise the provider is queried and the derived tier is
// persisted to the local cache and, best effort, to the mirror. A provider
// failure falls back to the cached tier (marked STALE); only when no cached
// tier exists does Sync fail, with ADAPTER_UNAVAILABLE.
func (s *Synchronizer) Sync(ctx context.Context, force bool) (Tier, error) {
	started := time.Now()
	defer func() {
		metrics.SyncDuration.Observe(time.Since(started).Seconds())
	}()

	s.mu.Lock()
	if !force && s.state.LastSyncedAt != nil && time.Since(*s.state.LastSyncedAt) < s.window {
		tier := s.state.Tier
		s.mu.Unlock()
		metrics.SubscriptionSyncs.WithLabelValues("fresh_hit").Inc()
		return tier, nil
	}
	s.state.Status = StatusSyncing
	s.mu.Unlock()

	entitlements, err := s.provider.ActiveEntitlements(ctx, s.userID)
	if err != nil {
		return s.fallbackToCache(ctx, err)
	}
	metrics.AdapterCalls.WithLabelValues("active_entitlements", "ok").Inc()

	return s.applyEntitlements(ctx, entitlements), nil
}

// ApplyReceipt applies a freshly obtained entitlement set from a completed
// purchase immediately, bypassing the freshness check.
func (s *Synchronizer) ApplyReceipt(ctx context.Context, receipt *Receipt) Tier {
	return s.applyEntitlements(ctx, receipt.Entitlements)
}

// RestorePurchases re-attaches prior purchases and terminates in the same
// forced sync as every other entry point, so tier visibility converges on a
// single code path.
func (s *Synchronizer) RestorePurchases(ctx context.Context) (bool, Tier, error) {
	restored, err := s.provider.RestorePurchases(ctx, s.userID)
	if err != nil {
		metrics.AdapterCalls.WithLabelValues("restore_purchases", "error").Inc()
		tier, ferr := s.fallbackToCache(ctx, err)
		return false, tier, ferr
	}
	metrics.AdapterCalls.WithLabelValues("restore_purchases", "ok").Inc()

	tier, err := s.Sync(ctx, true)
	return len(restored) > 0, tier, err
}

// Reset returns the session to its logged-out state.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = newState()
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

// applyEntitlements derives the tier, commits it locally, then propagates:
// local cache always, mirror best effort. The in-memory commit happens
// first; the distinction between the authoritative adapter-derived tier and
// the best-effort mirror copy is deliberate.
func (s *Synchronizer) applyEntitlements(ctx context.Context, entitlements []string) Tier {
	tier := TierFromEntitlements(entitlements)
	now := time.Now().UTC()

	s.mu.Lock()
	prev := s.state.Tier
	s.state.Tier = tier
	s.state.LastSyncedAt = &now
	s.state.Freshness = FreshnessFresh
	s.state.Status = StatusSynced
	s.mu.Unlock()

	if err := s.cache.Set(ctx, s.userID, tier); err != nil {
		s.log.Warn("tier cache write failed", map[string]interface{}{
			"tier":  string(tier),
			"error": err.Error(),
		})
	}

	if err := s.mirror.Write(ctx, s.userID, MirrorDoc{Tier: tier, UpdatedAt: now}); err != nil {
		metrics.MirrorWriteFailures.Inc()
		s.log.Warn("mirror write failed", map[string]interface{}{
			"tier":  string(tier),
			"error": errors.NewMirrorWriteFailedError(s.userID, err).Error(),
		})
	}

	metrics.SubscriptionSyncs.WithLabelValues("synced").Inc()

	if prev != tier {
		s.notify(TierChange{UserID: s.userID, Previous: prev, Current: tier, At: now})
	}

	return tier
}

// notify fans a change out to the current subscribers. It holds the mutex so
// sends are serialized with the closes in Reset and Subscribe's cancel; a
// channel is only ever closed while no send can be in flight.
func (s *Synchronizer) notify(change TierChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

// fallbackToCache handles a provider failure: the cached tier, if any,
// remains authoritative (marked STALE) until the next successful sync.
func (s *Synchronizer) fallbackToCache(ctx context.Context, cause error) (Tier, error) {
	metrics.AdapterCalls.WithLabelValues("active_entitlements", "error").Inc()

	cached, ok, cacheErr := s.cache.Get(ctx, s.userID)
	if cacheErr != nil {
		s.log.Warn("tier cache read failed during fallback", map[string]interface{}{
			"error": cacheErr.Error(),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok {
		s.state.Status = StatusError
		metrics.SubscriptionSyncs.WithLabelValues("error").Inc()
		return TierFree, errors.NewAdapterUnavailableError(cause)
	}

	s.state.Tier = cached
	s.state.Freshness = FreshnessStale
	s.state.Status = StatusStale
	metrics.SubscriptionSyncs.WithLabelValues("stale_fallback").Inc()

	s.log.Info("sync fell back to cached tier", map[string]interface{}{
		"tier":  string(cached),
		"cause": cause.Error(),
	})

	return cached, nil
}
