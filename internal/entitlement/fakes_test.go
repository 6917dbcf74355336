// internal/entitlement/fakes_test.go
package entitlement

import (
	"context"
	"sync"
)

type fakeProvider struct {
	mu           sync.Mutex
	entitlements []string
	err          error
	restoreSet   []string
	restoreErr   error
	loginErr     error
	activeCalls  int
	loginCalls   int
}

func (p *fakeProvider) ActiveEntitlements(_ context.Context, _ string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeCalls++
	if p.err != nil {
		return nil, p.err
	}
	return p.entitlements, nil
}

func (p *fakeProvider) Purchase(_ context.Context, _, offerID string) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &Receipt{TransactionID: "txn-1", OfferID: offerID, Entitlements: p.entitlements}, nil
}

func (p *fakeProvider) RestorePurchases(_ context.Context, _ string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.restoreErr != nil {
		return nil, p.restoreErr
	}
	return p.restoreSet, nil
}

func (p *fakeProvider) LoginIdentity(_ context.Context, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginCalls++
	return p.loginErr
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeCalls
}

type fakeTierCache struct {
	mu      sync.Mutex
	tiers   map[string]Tier
	getErr  error
	setErr  error
	setKeys []string
}

func newFakeTierCache() *fakeTierCache {
	return &fakeTierCache{tiers: make(map[string]Tier)}
}

func (c *fakeTierCache) Get(_ context.Context, userID string) (Tier, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return TierFree, false, c.getErr
	}
	tier, ok := c.tiers[userID]
	return tier, ok, nil
}

func (c *fakeTierCache) Set(_ context.Context, userID string, tier Tier) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.tiers[userID] = tier
	c.setKeys = append(c.setKeys, userID)
	return nil
}

type fakeMirror struct {
	mu       sync.Mutex
	docs     map[string]MirrorDoc
	writeErr error
	subErr   error
	events   chan MirrorEvent
	writes   int
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{
		docs:   make(map[string]MirrorDoc),
		events: make(chan MirrorEvent, 16),
	}
}

func (m *fakeMirror) Read(_ context.Context, userID string) (*MirrorDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[userID]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (m *fakeMirror) Write(_ context.Context, userID string, doc MirrorDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.docs[userID] = doc
	m.writes++
	return nil
}

func (m *fakeMirror) Subscribe(_ context.Context, _ string) (<-chan MirrorEvent, func(), error) {
	if m.subErr != nil {
		return nil, nil, m.subErr
	}
	return m.events, func() {}, nil
}

func (m *fakeMirror) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type fakeWallet struct {
	mu        sync.Mutex
	balance   int64
	readErr   error
	debitErr  error
	debitOK   bool
	debits    []int64
	readCalls int
}

func (w *fakeWallet) ReadBalance(_ context.Context, _ string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.readCalls++
	if w.readErr != nil {
		return 0, w.readErr
	}
	return w.balance, nil
}

func (w *fakeWallet) ConditionalDebit(_ context.Context, _ string, amount int64) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debitErr != nil {
		return false, w.debitErr
	}
	if !w.debitOK {
		return false, nil
	}
	w.balance -= amount
	w.debits = append(w.debits, amount)
	return true, nil
}

type fakeGranter struct {
	mu   sync.Mutex
	err  error
	reqs []GrantRequest
}

func (g *fakeGranter) Grant(_ context.Context, req GrantRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.reqs = append(g.reqs, req)
	return nil
}

type fakeAudit struct {
	mu   sync.Mutex
	recs []ExchangeRecord
}

func (a *fakeAudit) RecordExchange(_ context.Context, rec ExchangeRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
}

func (a *fakeAudit) records() []ExchangeRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ExchangeRecord, len(a.recs))
	copy(out, a.recs)
	return out
}

type fakeSyncerSource struct {
	syncer Syncer
	err    error
}

func (s *fakeSyncerSource) SyncerFor(_ context.Context, _ string) (Syncer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.syncer, nil
}

type fakeSyncer struct {
	mu    sync.Mutex
	tier  Tier
	err   error
	calls int
}

func (s *fakeSyncer) CurrentTier() Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier
}

func (s *fakeSyncer) Sync(_ context.Context, _ bool) (Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.tier, s.err
	}
	return s.tier, nil
}

func (s *fakeSyncer) syncCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
