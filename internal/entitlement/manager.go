// internal/entitlement/manager.go
package entitlement

import (
	"context"
	"sync"
	"time"

	"entitlement-workers/internal/common/errors"
	"entitlement-workers/internal/common/logger"
)

// Session holds the per-user pair of Synchronizer and Reconciler.
type Session struct {
	UserID       string
	Synchronizer *Synchronizer
	Reconciler   *Reconciler
}

// Manager owns the active sessions. Login binds the billing identity and
// starts synchronizer and reconciler for the user; Logout tears both down
// and drops the in-memory state. The durable cache and mirror survive
// logout untouched.
type Manager struct {
	provider Provider
	cache    TierCache
	mirror   MirrorStore
	window   time.Duration
	log      logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	pending  map[string]*sessionCall
}

// sessionCall tracks one in-flight session creation so concurrent callers
// for the same user share a single identity login instead of each dialing
// the provider.
type sessionCall struct {
	done chan struct{}
	sess *Session
	err  error
}

func NewManager(provider Provider, cache TierCache, mirror MirrorStore, window time.Duration, log logger.Logger) *Manager {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return &Manager{
		provider: provider,
		cache:    cache,
		mirror:   mirror,
		window:   window,
		log:      log,
		sessions: make(map[string]*Session),
		pending:  make(map[string]*sessionCall),
	}
}

// Session returns the live session for userID, creating it on first use.
// Creation binds the billing identity, starts the mirror reconciler, and
// leaves the state UNINITIALIZED until the first sync.
func (m *Manager) Session(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	if call, ok := m.pending[userID]; ok {
		// Creation already in flight; wait for its result instead of
		// dialing the provider a second time.
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.sess, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &sessionCall{done: make(chan struct{})}
	m.pending[userID] = call
	m.mu.Unlock()

	s, err := m.startSession(ctx, userID)

	m.mu.Lock()
	delete(m.pending, userID)
	if err == nil {
		m.sessions[userID] = s
	}
	m.mu.Unlock()

	call.sess, call.err = s, err
	close(call.done)

	if err != nil {
		return nil, err
	}
	m.log.Info("session started", map[string]interface{}{"userId": userID})
	return s, nil
}

func (m *Manager) startSession(ctx context.Context, userID string) (*Session, error) {
	if err := m.provider.LoginIdentity(ctx, userID); err != nil {
		return nil, err
	}

	syncer := NewSynchronizer(userID, m.provider, m.cache, m.mirror, m.log,
		WithFreshnessWindow(m.window))
	reconciler := NewReconciler(userID, syncer, m.mirror, m.log)
	if err := reconciler.Start(ctx); err != nil {
		return nil, err
	}

	return &Session{UserID: userID, Synchronizer: syncer, Reconciler: reconciler}, nil
}

// SyncerFor satisfies SyncerSource for the exchange workflow. It never
// creates a session: an exchange for a user with no live session syncs on
// that user's next login instead.
func (m *Manager) SyncerFor(_ context.Context, userID string) (Syncer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, errors.NewSessionNotFoundError(userID)
	}
	return s.Synchronizer, nil
}

// SyncUser runs a sync on the user's session, creating the session on
// first use, and returns the resulting state snapshot.
func (m *Manager) SyncUser(ctx context.Context, userID string, force bool) (State, error) {
	s, err := m.Session(ctx, userID)
	if err != nil {
		return newState(), err
	}
	if _, err := s.Synchronizer.Sync(ctx, force); err != nil {
		return s.Synchronizer.Snapshot(), err
	}
	return s.Synchronizer.Snapshot(), nil
}

// RestoreUser re-attaches prior purchases on the user's session.
func (m *Manager) RestoreUser(ctx context.Context, userID string) (bool, State, error) {
	s, err := m.Session(ctx, userID)
	if err != nil {
		return false, newState(), err
	}
	restored, _, err := s.Synchronizer.RestorePurchases(ctx)
	return restored, s.Synchronizer.Snapshot(), err
}

// Logout stops the reconciler, resets in-memory state, and forgets the
// session. Idempotent.
func (m *Manager) Logout(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if !ok {
		return
	}

	s.Reconciler.Stop()
	s.Synchronizer.Reset()
	m.log.Info("session ended", map[string]interface{}{"userId": userID})
}

// Close tears down every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Reconciler.Stop()
		s.Synchronizer.Reset()
	}
}
