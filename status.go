package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/tsreplica-go/internal/baseline"
	"github.com/tonimelisma/tsreplica-go/internal/history"
	"github.com/tonimelisma/tsreplica-go/internal/identity"
)

// recentCycleLimit bounds how many history rows `status` displays.
const recentCycleLimit = 10

// statusReport is the JSON shape for `status --json`.
type statusReport struct {
	Identity      string       `json:"identity"`
	LockHeld      bool         `json:"lock_held"`
	LockHolderPID int          `json:"lock_holder_pid,omitempty"`
	BaselineFiles int          `json:"baseline_files"`
	RecentCycles  []cycleEntry `json:"recent_cycles"`
}

type cycleEntry struct {
	ID                 int64  `json:"id"`
	StartedAt          string `json:"started_at"`
	Status             string `json:"status"`
	SchemaLinesShipped int    `json:"schema_lines_shipped"`
	FilesShipped       int    `json:"files_shipped"`
	FilesDeleted       int    `json:"files_deleted"`
	Error              string `json:"error,omitempty"`
}

// newStatusCmd builds the status command: identity, lock state, baseline
// size, and recent cycle history (spec.md §7's "status reporting").
func newStatusCmd(getCC func() *CLIContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sender identity, lock state, and recent cycle history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, getCC())
		},
	}
}

func runStatus(cmd *cobra.Command, cc *CLIContext) error {
	report := statusReport{}

	id, err := identity.GetOrCreateIdentity(cc.Cfg.IdentityFilePath)
	if err != nil {
		return err
	}

	report.Identity = id

	if pid, err := readPIDFile(cc.Cfg.LockFilePath); err == nil {
		report.LockHeld = true
		report.LockHolderPID = pid
	}

	baselineSet, err := baseline.Load(cc.Cfg.BaselineFilePath)
	if err != nil {
		return err
	}

	report.BaselineFiles = len(baselineSet)

	if cc.Cfg.HistoryDBPath != "" {
		if _, statErr := os.Stat(cc.Cfg.HistoryDBPath); statErr == nil {
			store, err := history.Open(cc.Cfg.HistoryDBPath, cc.Logger)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), recentCycleLimit)
			if err != nil {
				return err
			}

			for _, r := range records {
				report.RecentCycles = append(report.RecentCycles, cycleEntry{
					ID:                 r.ID,
					StartedAt:          formatTime(r.StartedAt),
					Status:             r.Status,
					SchemaLinesShipped: r.SchemaLinesShipped,
					FilesShipped:       r.FilesShipped,
					FilesDeleted:       r.FilesDeleted,
					Error:              r.Error,
				})
			}
		}
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(report)
	}

	printStatusReport(cmd, report)

	return nil
}

func printStatusReport(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()

	cmd.Printf("Identity:       %s\n", report.Identity)
	cmd.Printf("Lock held:      %v", report.LockHeld)

	if report.LockHeld {
		cmd.Printf(" (PID %d)", report.LockHolderPID)
	}

	cmd.Println()
	cmd.Printf("Baseline files: %d\n", report.BaselineFiles)

	if len(report.RecentCycles) == 0 {
		cmd.Println("\nNo cycle history recorded yet.")

		return
	}

	cmd.Println("\nRecent cycles:")

	headers := []string{"ID", "STARTED", "STATUS", "SCHEMA LINES", "SHIPPED", "DELETED"}

	rows := make([][]string, 0, len(report.RecentCycles))
	for _, c := range report.RecentCycles {
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10),
			c.StartedAt,
			c.Status,
			strconv.Itoa(c.SchemaLinesShipped),
			strconv.Itoa(c.FilesShipped),
			strconv.Itoa(c.FilesDeleted),
		})
	}

	printTable(out, headers, rows)
}
