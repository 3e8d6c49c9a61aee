package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/tsreplica-go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// cliFlags bundles the persistent CLI flags every command can see.
type cliFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	Debug      bool
	Quiet      bool
}

// CLIContext bundles the resolved config, logger, and flags. Built once in
// PersistentPreRunE and held in newRootCmd's closure, where each subcommand
// reads it through its getCC accessor, mirroring the teacher's
// single-construction-point CLIContext pattern.
type CLIContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Flags  cliFlags
}

var flags cliFlags

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	var cc *CLIContext

	cmd := &cobra.Command{
		Use:           "tsreplica-sender",
		Short:         "Time-series replication sender",
		Long:          "A daemon and CLI for shipping time-series data directories to a remote receiver.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			built, err := loadCLIContext()
			if err != nil {
				return err
			}

			cc = built

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flags.JSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newRunCmd(func() *CLIContext { return cc }))
	cmd.AddCommand(newOnceCmd(func() *CLIContext { return cc }))
	cmd.AddCommand(newStatusCmd(func() *CLIContext { return cc }))
	cmd.AddCommand(newIdentityCmd(func() *CLIContext { return cc }))
	cmd.AddCommand(newReloadCmd(func() *CLIContext { return cc }))

	return cmd
}

// loadCLIContext resolves the effective configuration and builds the
// logger, following the teacher's "config is optional, sensible defaults
// apply" philosophy: a missing --config path falls back to DefaultConfig().
func loadCLIContext() (*CLIContext, error) {
	logger := buildLogger(nil)

	path := flags.ConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.LoadOrDefault(path, logger)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	finalLogger := buildLogger(cfg)

	return &CLIContext{Cfg: cfg, Logger: finalLogger, Flags: flags}, nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Pass nil for pre-config bootstrap. Config-file log level is
// the baseline; --verbose, --debug, and --quiet override it since CLI
// flags always win (enforced mutually exclusive by Cobra).
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	if flags.Verbose {
		level = slog.LevelInfo
	}

	if flags.Debug {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
