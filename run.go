package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/tsreplica-go/internal/history"
	"github.com/tonimelisma/tsreplica-go/internal/inventory"
	"github.com/tonimelisma/tsreplica-go/internal/orchestrator"
	"github.com/tonimelisma/tsreplica-go/internal/statusfeed"
)

// newRunCmd builds the daemon command: runs the periodic scheduler until
// interrupted, enforcing the Singleton Guard for the lifetime of the
// process (spec.md §5, §9).
func newRunCmd(getCC func() *CLIContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sender daemon, shipping data on a periodic schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), getCC())
		},
	}
}

func runDaemon(ctx context.Context, cc *CLIContext) error {
	cleanup, err := acquireLock(cc.Cfg.LockFilePath)
	if err != nil {
		return err
	}
	defer cleanup()

	orch := buildOrchestrator(cc)
	defer orch.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go watchSIGHUP(ctx, orch.Orchestrator, cc)

	cc.Statusf("sender daemon starting, cycle period %s\n", cc.Cfg.CyclePeriod())

	return orch.Orchestrator.Start(ctx)
}

// watchSIGHUP triggers an out-of-band cycle whenever the daemon receives
// SIGHUP, without disabling the periodic scheduler (spec.md's "SIGHUP-
// triggered immediate cycle", grounded in the teacher's sendSIGHUP/
// daemon-reload pattern).
func watchSIGHUP(ctx context.Context, orch *orchestrator.Orchestrator, cc *CLIContext) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			cc.Logger.Info("SIGHUP received, triggering an out-of-band cycle")

			if err := orch.RunCycle(ctx); err != nil {
				cc.Logger.Error("SIGHUP-triggered cycle failed", "error", err)
			}
		}
	}
}

// daemonResources bundles the Orchestrator plus everything that must be
// closed alongside it: the fsnotify watcher, history store, and status
// feed server.
type daemonResources struct {
	Orchestrator *orchestrator.Orchestrator
	watcher      *inventory.Watcher
	history      *history.Store
	feed         *statusfeed.Feed
}

func (d *daemonResources) Close() {
	if d.watcher != nil {
		d.watcher.Close()
	}

	if d.feed != nil {
		d.feed.Stop(context.Background())
	}

	if d.history != nil {
		d.history.Close()
	}
}

// buildOrchestrator wires an Orchestrator with the fsnotify early-wake
// watcher, the history store, and the status feed, all driven from the
// resolved config. Any auxiliary resource that fails to start is logged
// and left disabled rather than failing the whole daemon (spec.md §7:
// these are observability aids, not authoritative state).
func buildOrchestrator(cc *CLIContext) *daemonResources {
	orch := orchestrator.New(cc.Cfg, cc.Logger)
	res := &daemonResources{Orchestrator: orch}

	roots := make([]string, 0, len(cc.Cfg.Directories))
	for _, d := range cc.Cfg.Directories {
		roots = append(roots, d.Path)
	}

	if watcher, err := inventory.NewWatcher(roots, cc.Logger); err != nil {
		cc.Logger.Warn("fsnotify watcher unavailable, falling back to periodic-only scheduling", "error", err)
	} else {
		res.watcher = watcher
		orch.Watcher = watcher
	}

	if cc.Cfg.HistoryDBPath != "" {
		store, err := history.Open(cc.Cfg.HistoryDBPath, cc.Logger)
		if err != nil {
			cc.Logger.Warn("history store unavailable", "error", err)
		} else {
			res.history = store
			orch.History = store
		}
	}

	if cc.Cfg.StatusFeedAddr != "" {
		feed := statusfeed.New(cc.Cfg.StatusFeedAddr, cc.Logger)
		if err := feed.Start(); err != nil {
			cc.Logger.Warn("status feed unavailable", "error", err)
		} else {
			res.feed = feed
			orch.Feed = feed
		}
	}

	return res
}
