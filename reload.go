package main

import (
	"github.com/spf13/cobra"
)

// newReloadCmd builds the reload command: sends SIGHUP to the running
// daemon, requesting an out-of-band cycle without waiting for the next
// periodic tick (spec.md's SIGHUP-triggered immediate cycle).
func newReloadCmd(getCC func() *CLIContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Signal the running daemon to start a cycle immediately",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := getCC()

			if err := sendSIGHUP(cc.Cfg.LockFilePath); err != nil {
				return err
			}

			cc.Statusf("reload signal sent\n")

			return nil
		},
	}
}
