package main

import (
	"github.com/spf13/cobra"

	"github.com/tonimelisma/tsreplica-go/internal/identity"
)

// newIdentityCmd builds the identity command: prints the sender's stable
// per-host identifier, creating one if it does not yet exist (spec.md §4.2).
func newIdentityCmd(getCC func() *CLIContext) *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "Print this sender's identity, creating one if it does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := getCC()

			id, err := identity.GetOrCreateIdentity(cc.Cfg.IdentityFilePath)
			if err != nil {
				return err
			}

			if cc.Flags.JSON {
				cmd.Printf("{\"identity\":%q}\n", id)

				return nil
			}

			cmd.Println(id)

			return nil
		},
	}
}
