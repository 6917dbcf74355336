// internal/entitlement/reconciler.go
package entitlement

import (
	"context"
	"sync"

	"entitlement-workers/internal/common/logger"
	"entitlement-workers/internal/common/metrics"
)

// Reconciler watches mirror change events for one user and, on divergence
// from the locally held tier, forces a fresh sync against the billing
// provider. The mirror value itself is never adopted: it only signals that
// a reconciliation is due, the provider remains the authority.
type Reconciler struct {
	userID string
	sync   Syncer
	mirror MirrorStore
	log    logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// Syncer is the slice of the Synchronizer the Reconciler needs.
type Syncer interface {
	CurrentTier() Tier
	Sync(ctx context.Context, force bool) (Tier, error)
}

func NewReconciler(userID string, syncer Syncer, mirror MirrorStore, log logger.Logger) *Reconciler {
	return &Reconciler{
		userID: userID,
		sync:   syncer,
		mirror: mirror,
		log:    log.WithFields(map[string]interface{}{"userId": userID}),
	}
}

// Start subscribes to mirror events and processes them until Stop is called
// or the context is cancelled. Calling Start twice without Stop is an error
// on the caller's part; the second call replaces the first subscription.
func (r *Reconciler) Start(ctx context.Context) error {
	events, unsubscribe, err := r.mirror.Subscribe(ctx, r.userID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.cancel = cancel
	r.stopped = stopped
	r.mu.Unlock()

	go func() {
		defer close(stopped)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				r.handleEvent(ctx, ev)
			}
		}
	}()

	return nil
}

// Stop tears down the subscription and waits for the event loop to exit.
// Safe to call more than once.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	stopped := r.stopped
	r.cancel = nil
	r.stopped = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stopped != nil {
		<-stopped
	}
}

func (r *Reconciler) handleEvent(ctx context.Context, ev MirrorEvent) {
	local := r.sync.CurrentTier()
	if ev.Doc.Tier == local {
		return
	}

	metrics.MirrorDivergences.Inc()
	r.log.Info("mirror divergence detected", map[string]interface{}{
		"localTier":  string(local),
		"mirrorTier": string(ev.Doc.Tier),
	})

	// One forced sync per divergence event. If the provider is down the
	// local tier stands and the next event retriggers reconciliation.
	if _, err := r.sync.Sync(ctx, true); err != nil {
		r.log.Warn("reconciliation sync failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
