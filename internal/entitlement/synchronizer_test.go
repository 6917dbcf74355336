// internal/entitlement/synchronizer_test.go
package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "entitlement-workers/internal/common/errors"
	"entitlement-workers/internal/common/logger"
)

func newTestSynchronizer(t *testing.T, provider *fakeProvider, cache *fakeTierCache, mirror MirrorStore, opts ...SynchronizerOption) *Synchronizer {
	t.Helper()
	return NewSynchronizer("user-1", provider, cache, mirror, logger.NewTestLogger(t), opts...)
}

func TestSyncDerivesTierAndPersists(t *testing.T) {
	provider := &fakeProvider{entitlements: []string{EntitlementPremium}}
	cache := newFakeTierCache()
	mirror := newFakeMirror()
	s := newTestSynchronizer(t, provider, cache, mirror)

	tier, err := s.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, TierPremium, tier)

	state := s.Snapshot()
	assert.Equal(t, StatusSynced, state.Status)
	assert.Equal(t, FreshnessFresh, state.Freshness)
	require.NotNil(t, state.LastSyncedAt)

	cached, ok, _ := cache.Get(context.Background(), "user-1")
	require.True(t, ok)
	assert.Equal(t, TierPremium, cached)

	doc, err := mirror.Read(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, TierPremium, doc.Tier)
}

func TestSyncFreshnessWindowSkipsProvider(t *testing.T) {
	provider := &fakeProvider{entitlements: []string{EntitlementPro}}
	s := newTestSynchronizer(t, provider, newFakeTierCache(), newFakeMirror())

	_, err := s.Sync(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls())

	// Second non-forced call inside the window does no I/O.
	tier, err := s.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, TierPro, tier)
	assert.Equal(t, 1, provider.calls())

	// Forced call always hits the provider.
	_, err = s.Sync(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls())
}

func TestSyncExpiredWindowHitsProvider(t *testing.T) {
	provider := &fakeProvider{entitlements: []string{EntitlementPremium}}
	s := newTestSynchronizer(t, provider, newFakeTierCache(), newFakeMirror(),
		WithFreshnessWindow(time.Millisecond))

	_, err := s.Sync(context.Background(), false)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = s.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls())
}

func TestSyncFallsBackToCacheWhenProviderDown(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	cache := newFakeTierCache()
	cache.tiers["user-1"] = TierPro
	s := newTestSynchronizer(t, provider, cache, newFakeMirror())

	tier, err := s.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, TierPro, tier)

	state := s.Snapshot()
	assert.Equal(t, StatusStale, state.Status)
	assert.Equal(t, FreshnessStale, state.Freshness)
	assert.Nil(t, state.LastSyncedAt)
}

func TestSyncFailsWithoutCache(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	s := newTestSynchronizer(t, provider, newFakeTierCache(), newFakeMirror())

	tier, err := s.Sync(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAdapterUnavailable, apperrors.CodeOf(err))
	assert.Equal(t, TierFree, tier)
	assert.Equal(t, StatusError, s.Snapshot().Status)
}

func TestSyncMirrorFailureIsBestEffort(t *testing.T) {
	provider := &fakeProvider{entitlements: []string{EntitlementPremium}}
	cache := newFakeTierCache()
	mirror := newFakeMirror()
	mirror.writeErr = errors.New("mirror down")
	s := newTestSynchronizer(t, provider, cache, mirror)

	tier, err := s.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, TierPremium, tier)
	assert.Equal(t, StatusSynced, s.Snapshot().Status)

	// Local cache still got the write.
	cached, ok, _ := cache.Get(context.Background(), "user-1")
	require.True(t, ok)
	assert.Equal(t, TierPremium, cached)
}

func TestSyncNotifiesTierChanges(t *testing.T) {
	provider := &fakeProvider{entitlements: []string{EntitlementPro}}
	s := newTestSynchronizer(t, provider, newFakeTierCache(), newFakeMirror())

	ch, cancel := s.Subscribe()
	defer cancel()

	_, err := s.Sync(context.Background(), true)
	require.NoError(t, err)

	select {
	case change := <-ch:
		assert.Equal(t, TierFree, change.Previous)
		assert.Equal(t, TierPro, change.Current)
	case <-time.After(time.Second):
		t.Fatal("expected a tier change notification")
	}

	// Same tier again, no notification.
	_, err = s.Sync(context.Background(), true)
	require.NoError(t, err)
	select {
	case change := <-ch:
		t.Fatalf("unexpected notification: %+v", change)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestApplyReceiptBypassesFreshness(t *testing.T) {
	provider := &fakeProvider{entitlements: []string{}}
	s := newTestSynchronizer(t, provider, newFakeTierCache(), newFakeMirror())

	_, err := s.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, TierFree, s.CurrentTier())

	tier := s.ApplyReceipt(context.Background(), &Receipt{
		TransactionID: "txn-9",
		OfferID:       "premium_monthly",
		Entitlements:  []string{EntitlementPremium},
	})
	assert.Equal(t, TierPremium, tier)
	assert.Equal(t, TierPremium, s.CurrentTier())
}

func TestRestorePurchases(t *testing.T) {
	tests := []struct {
		name         string
		restoreSet   []string
		afterRestore []string
		wantRestored bool
		wantTier     Tier
	}{
		{
			name:         "restores premium",
			restoreSet:   []string{EntitlementPremium},
			afterRestore: []string{EntitlementPremium},
			wantRestored: true,
			wantTier:     TierPremium,
		},
		{
			name:         "nothing to restore",
			restoreSet:   nil,
			afterRestore: nil,
			wantRestored: false,
			wantTier:     TierFree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{
				restoreSet:   tt.restoreSet,
				entitlements: tt.afterRestore,
			}
			s := newTestSynchronizer(t, provider, newFakeTierCache(), newFakeMirror())

			restored, tier, err := s.RestorePurchases(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantRestored, restored)
			assert.Equal(t, tt.wantTier, tier)
		})
	}
}

// gatedMirror holds a Write until released so a test can interleave other
// calls with an in-flight sync.
type gatedMirror struct {
	*fakeMirror
	entered chan struct{}
	release chan struct{}
}

func newGatedMirror() *gatedMirror {
	return &gatedMirror{
		fakeMirror: newFakeMirror(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (m *gatedMirror) Write(ctx context.Context, userID string, doc MirrorDoc) error {
	m.entered <- struct{}{}
	<-m.release
	return m.fakeMirror.Write(ctx, userID, doc)
}

func TestResetDuringSyncDoesNotPanicSubscribers(t *testing.T) {
	provider := &fakeProvider{entitlements: []string{EntitlementPremium}}
	mirror := newGatedMirror()
	s := newTestSynchronizer(t, provider, newFakeTierCache(), mirror)

	ch, _ := s.Subscribe()

	done := make(chan error, 1)
	go func() {
		_, err := s.Sync(context.Background(), true)
		done <- err
	}()

	// Hold the sync mid-propagation, log the user out, then let it finish.
	<-mirror.entered
	s.Reset()
	close(mirror.release)
	require.NoError(t, <-done)

	// Reset closed the subscriber channel; the completing sync must not
	// have sent on it.
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, StatusUninitialized, s.Snapshot().Status)
}

func TestResetReturnsToLoggedOutState(t *testing.T) {
	provider := &fakeProvider{entitlements: []string{EntitlementPro}}
	s := newTestSynchronizer(t, provider, newFakeTierCache(), newFakeMirror())

	_, err := s.Sync(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, TierPro, s.CurrentTier())

	s.Reset()

	state := s.Snapshot()
	assert.Equal(t, TierFree, state.Tier)
	assert.Equal(t, StatusUninitialized, state.Status)
	assert.Equal(t, FreshnessStale, state.Freshness)
	assert.Nil(t, state.LastSyncedAt)
}
