package orchestrator

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tonimelisma/tsreplica-go/internal/config"
	"github.com/tonimelisma/tsreplica-go/internal/history"
	"github.com/tonimelisma/tsreplica-go/internal/inventory"
	"github.com/tonimelisma/tsreplica-go/internal/statusfeed"
)

// Orchestrator owns one sender's cycle state machine plus its periodic
// scheduler. Re-architected per spec.md §9 from the source's lazily
// initialized module-global into an explicitly constructed value owned by
// the entry point: the "only one sender" property is enforced by the
// Singleton Guard's OS lock, not by language-level singleton semantics.
type Orchestrator struct {
	Cfg       *config.Config
	Logger    *slog.Logger
	Inventory inventory.Provider
	Watcher   Watcher          // nil disables the fsnotify early-wake fast path
	History   *history.Store   // nil disables history recording
	Feed      *statusfeed.Feed // nil disables status-feed broadcast
	Dial      DialFunc         // overridable in tests

	syncInProgress atomic.Bool
	stopCh         chan struct{}
}

// New creates an Orchestrator ready for Start or a single RunCycle call.
func New(cfg *config.Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		Cfg:       cfg,
		Logger:    logger,
		Inventory: inventory.DefaultProvider{},
		Dial:      dialRPC,
		stopCh:    make(chan struct{}),
	}
}

// publish broadcasts a state transition on the status feed, if one is
// attached, and logs it at INFO (spec.md §7: "logs at INFO on state
// transitions").
func (o *Orchestrator) publish(state, detail string) {
	o.Logger.Info("cycle state transition", slog.String("state", state), slog.String("detail", detail))

	if o.Feed != nil {
		o.Feed.Publish(statusfeed.Event{State: state, Detail: detail, Timestamp: time.Now()})
	}
}

// stop terminates the scheduler after the current RPC returns (spec.md
// §4.8, §5: cancellation is coarse). Safe to call multiple times.
func (o *Orchestrator) stop() {
	select {
	case <-o.stopCh:
		// already stopped
	default:
		close(o.stopCh)
	}
}

// InProgress reports whether a cycle is currently running, for `status`
// reporting and for the scheduler's overlap guard.
func (o *Orchestrator) InProgress() bool {
	return o.syncInProgress.Load()
}
