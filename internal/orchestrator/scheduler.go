package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Watcher is the subset of inventory.Watcher the scheduler needs: a wake
// channel for early-triggering a cycle when new files land, instead of
// waiting out the full period.
type Watcher interface {
	Wake() <-chan struct{}
}

// Start runs the periodic scheduler and liveness monitor — two workers
// (spec.md §5: "a small shared scheduler, two workers"), grounded in the
// teacher's internal/sync/transfer.go errgroup worker-pool idiom. Start
// blocks until the context is canceled or Stop is called; a SyncConnectionError
// from any cycle calls stop() internally, which unblocks Start the same way.
func (o *Orchestrator) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.runScheduler(gctx)

		return nil
	})

	g.Go(func() error {
		o.runHeartbeat(gctx)

		return nil
	})

	return g.Wait()
}

// Stop terminates the scheduler after the current RPC returns. Cancellation
// is coarse by design (spec.md §5, §9): no in-flight chunk is interrupted.
func (o *Orchestrator) Stop() {
	o.stop()
}

// runScheduler enqueues RunCycle at a fixed period, or early if the
// attached Watcher wakes it. Overlapping enqueues are silently dropped by
// RunCycle's own syncInProgress guard, so the scheduler never needs to
// track in-flight state itself.
func (o *Orchestrator) runScheduler(ctx context.Context) {
	ticker := time.NewTicker(o.Cfg.CyclePeriod())
	defer ticker.Stop()

	var wake <-chan struct{}
	if o.Watcher != nil {
		wake = o.Watcher.Wake()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			o.triggerCycle(ctx)
		case <-wake:
			o.triggerCycle(ctx)
		}
	}
}

func (o *Orchestrator) triggerCycle(ctx context.Context) {
	if err := o.RunCycle(ctx); err != nil {
		o.Logger.Error("cycle aborted", slog.String("error", err.Error()))
	}
}

// runHeartbeat logs at a fixed period whenever syncInProgress is set
// (spec.md §4.8: "the liveness monitor emits a heartbeat log at a fixed
// period whenever the flag is set").
func (o *Orchestrator) runHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(o.Cfg.HeartbeatPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			if o.InProgress() {
				o.Logger.Info("heartbeat: sync in progress")
			}
		}
	}
}
