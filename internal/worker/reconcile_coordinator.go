// Package worker contains background coordinators that run for the
// lifetime of a host application.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/dealsync/internal/cache"
)

// Reconciler converges one cached collection with the remote
// authority. Implemented by projection.Service.
type Reconciler interface {
	Reconcile(ctx context.Context, key cache.Key) error
}

// ReconcileCoordinator periodically reconciles the cached collections
// so a mirror left idle by the UI still converges with the remote
// authority. Per-mutation reconciliation stays with the coordinator;
// this loop only covers drift between mutations.
type ReconcileCoordinator struct {
	reconciler Reconciler
	interval   time.Duration
	keys       []cache.Key
}

// NewReconcileCoordinator creates a coordinator refreshing the given
// collections on the given interval.
func NewReconcileCoordinator(reconciler Reconciler, interval time.Duration, keys ...cache.Key) *ReconcileCoordinator {
	if len(keys) == 0 {
		keys = []cache.Key{cache.Deals, cache.Stages}
	}
	return &ReconcileCoordinator{
		reconciler: reconciler,
		interval:   interval,
		keys:       keys,
	}
}

// Run starts the reconcile loop. It blocks until ctx is cancelled.
//
// The loop waits for the first ticker interval before reconciling: the
// initial population is the projection layer's fetch, so an immediate
// pass would always coalesce to a no-op.
func (c *ReconcileCoordinator) Run(ctx context.Context) {
	slog.Info("reconcile coordinator started",
		"component", "worker",
		"worker", "reconcile-coordinator",
		"interval", c.interval.String(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconcile coordinator stopped",
				"component", "worker",
				"worker", "reconcile-coordinator",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.reconcileAll(ctx)
		}
	}
}

// reconcileAll refreshes each collection, continuing on individual
// failures.
func (c *ReconcileCoordinator) reconcileAll(ctx context.Context) {
	for _, key := range c.keys {
		if ctx.Err() != nil {
			return
		}
		if err := c.reconciler.Reconcile(ctx, key); err != nil {
			slog.Error("collection reconciliation failed",
				"component", "worker",
				"worker", "reconcile-coordinator",
				"collection", string(key),
				"error", err,
			)
		}
	}
}
