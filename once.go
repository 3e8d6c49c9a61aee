package main

import (
	"github.com/spf13/cobra"

	"github.com/tonimelisma/tsreplica-go/internal/orchestrator"
)

// newOnceCmd builds the single-cycle command: runs exactly one sync cycle
// and exits, useful for cron-driven deployments or manual troubleshooting
// (spec.md §5's scheduler is optional — a cycle is just RunCycle).
func newOnceCmd(getCC func() *CLIContext) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single sync cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := getCC()

			cleanup, err := acquireLock(cc.Cfg.LockFilePath)
			if err != nil {
				return err
			}
			defer cleanup()

			orch := orchestrator.New(cc.Cfg, cc.Logger)

			if err := orch.RunCycle(cmd.Context()); err != nil {
				return err
			}

			cc.Statusf("cycle completed successfully\n")

			return nil
		},
	}
}
