// internal/entitlement/manager_test.go
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

func TestManagerSessionLifecycle(t *testing.T) {
	provider := &fakeProvider{entitlements: []string{EntitlementPro}}
	m := NewManager(provider, newFakeTierCache(), newFakeMirror(), time.Minute, logger.NewTestLogger(t))
	defer m.Close()

	s, err := m.Session(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.loginCalls)
	assert.Equal(t, StatusUninitialized, s.Synchronizer.Snapshot().Status)

	// Second call reuses the session, no second identity login.
	s2, err := m.Session(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Same(t, s, s2)
	assert.Equal(t, 1, provider.loginCalls)

	_, err = s.Synchronizer.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, TierPro, s.Synchronizer.CurrentTier())

	m.Logout("user-1")
	assert.Equal(t, StatusUninitialized, s.Synchronizer.Snapshot().Status)
	assert.Equal(t, TierFree, s.Synchronizer.CurrentTier())

	// Logout again is a no-op.
	m.Logout("user-1")
}

// gatedLoginProvider holds LoginIdentity until released so a test can line
// up concurrent session creations for the same user.
type gatedLoginProvider struct {
	*fakeProvider
	entered chan struct{}
	release chan struct{}
}

func (p *gatedLoginProvider) LoginIdentity(ctx context.Context, userID string) error {
	p.entered <- struct{}{}
	<-p.release
	return p.fakeProvider.LoginIdentity(ctx, userID)
}

func TestManagerConcurrentSessionCreationLogsInOnce(t *testing.T) {
	provider := &gatedLoginProvider{
		fakeProvider: &fakeProvider{},
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	m := NewManager(provider, newFakeTierCache(), newFakeMirror(), time.Minute, logger.NewTestLogger(t))
	defer m.Close()

	type result struct {
		sess *Session
		err  error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			s, err := m.Session(context.Background(), "user-1")
			results <- result{s, err}
		}()
	}

	// One caller is held inside the identity login; the other must wait on
	// its result rather than dialing the provider too.
	<-provider.entered
	close(provider.release)

	first := <-results
	second := <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	assert.Same(t, first.sess, second.sess)
	assert.Equal(t, 1, provider.loginCalls)
}

func TestManagerLoginFailure(t *testing.T) {
	provider := &fakeProvider{loginErr: errors.New("identity service down")}
	m := NewManager(provider, newFakeTierCache(), newFakeMirror(), time.Minute, logger.NewTestLogger(t))
	defer m.Close()

	_, err := m.Session(context.Background(), "user-1")
	require.Error(t, err)
}

func TestManagerSyncerForRequiresSession(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, newFakeTierCache(), newFakeMirror(), time.Minute, logger.NewTestLogger(t))
	defer m.Close()

	_, err := m.SyncerFor(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.CodeOf(err))

	_, err = m.Session(context.Background(), "user-1")
	require.NoError(t, err)

	syncer, err := m.SyncerFor(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotNil(t, syncer)
}

func TestManagerSyncUser(t *testing.T) {
	provider := &fakeProvider{entitlements: []string{EntitlementPro}}
	m := NewManager(provider, newFakeTierCache(), newFakeMirror(), time.Minute, logger.NewTestLogger(t))
	defer m.Close()

	state, err := m.SyncUser(context.Background(), "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, TierPro, state.Tier)
	assert.Equal(t, StatusSynced, state.Status)
	assert.Equal(t, 1, provider.loginCalls)
}

func TestManagerRestoreUser(t *testing.T) {
	provider := &fakeProvider{
		restoreSet:   []string{EntitlementPremium},
		entitlements: []string{EntitlementPremium},
	}
	m := NewManager(provider, newFakeTierCache(), newFakeMirror(), time.Minute, logger.NewTestLogger(t))
	defer m.Close()

	restored, state, err := m.RestoreUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, TierPremium, state.Tier)
}

func TestManagerLogoutKeepsDurableCache(t *testing.T) {
	provider := &fakeProvider{entitlements: []string{EntitlementPremium}}
	cache := newFakeTierCache()
	m := NewManager(provider, cache, newFakeMirror(), time.Minute, logger.NewTestLogger(t))
	defer m.Close()

	s, err := m.Session(context.Background(), "user-1")
	require.NoError(t, err)
	_, err = s.Synchronizer.Sync(context.Background(), false)
	require.NoError(t, err)

	m.Logout("user-1")

	cached, ok, _ := cache.Get(context.Background(), "user-1")
	require.True(t, ok)
	assert.Equal(t, TierPremium, cached)
}
