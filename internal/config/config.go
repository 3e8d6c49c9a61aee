// Package config loads the sender's TOML configuration file and resolves
// platform-specific default paths, following the same two-pass decode and
// unknown-key validation the teacher repo uses for its own config.
package config

import (
	"path/filepath"
	"strconv"
	"time"
)

// Directory describes one local data directory the sender watches: its
// StorageGroup-partitioned file tree and the schema log that accumulates
// metadata operations for it.
type Directory struct {
	Name          string `toml:"name"`
	Path          string `toml:"path"`
	SchemaLogPath string `toml:"schema_log_path"`
}

// Receiver is the remote endpoint the RPC client connects to.
type Receiver struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns "host:port" for use with net.Dial.
func (r Receiver) Addr() string {
	if r.Port == 0 {
		return r.Host
	}

	return r.Host + ":" + strconv.Itoa(r.Port)
}

// Config is the fully-resolved sender configuration.
type Config struct {
	Directories []Directory `toml:"directory"`
	Receiver    Receiver    `toml:"receiver"`

	LockFilePath     string `toml:"lock_file_path"`
	IdentityFilePath string `toml:"identity_file_path"`
	BaselineFilePath string `toml:"baseline_file_path"`
	JournalFilePath  string `toml:"journal_file_path"`
	SnapshotDir      string `toml:"snapshot_dir"`
	HistoryDBPath    string `toml:"history_db_path"`
	StatusFeedAddr   string `toml:"status_feed_addr"`

	CyclePeriodSeconds     int `toml:"cycle_period_seconds"`
	HeartbeatPeriodSeconds int `toml:"heartbeat_period_seconds"`
	MaxSyncFileTry         int `toml:"max_sync_file_try"`
	DataChunkSizeBytes     int `toml:"data_chunk_size_bytes"`
	BatchLine              int `toml:"batch_line"`

	LogLevel string `toml:"log_level"`
}

// CyclePeriod returns the configured cycle period as a time.Duration.
func (c *Config) CyclePeriod() time.Duration {
	return time.Duration(c.CyclePeriodSeconds) * time.Second
}

// HeartbeatPeriod returns the configured heartbeat period as a time.Duration.
func (c *Config) HeartbeatPeriod() time.Duration {
	return time.Duration(c.HeartbeatPeriodSeconds) * time.Second
}

// Defaults mirroring spec.md §6's receiver-compatible constants.
const (
	DefaultCyclePeriodSeconds     = 300
	DefaultHeartbeatPeriodSeconds = 30
	DefaultMaxSyncFileTry         = 3
	DefaultDataChunkSizeBytes     = 1 << 20 // 1 MiB
	DefaultBatchLine              = 1000
)

// DefaultConfig returns a Config populated with the sender's baked-in
// defaults and platform-specific paths, before any file is read. Load()
// starts from this and overlays whatever the TOML file specifies.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()

	return &Config{
		LockFilePath:           filepath.Join(dataDir, "sender.lock"),
		IdentityFilePath:       filepath.Join(dataDir, "identity"),
		BaselineFilePath:       filepath.Join(dataDir, "baseline"),
		JournalFilePath:        filepath.Join(dataDir, "journal"),
		SnapshotDir:            filepath.Join(dataDir, "snapshot"),
		HistoryDBPath:          filepath.Join(dataDir, "history.db"),
		StatusFeedAddr:         "127.0.0.1:7777",
		CyclePeriodSeconds:     DefaultCyclePeriodSeconds,
		HeartbeatPeriodSeconds: DefaultHeartbeatPeriodSeconds,
		MaxSyncFileTry:         DefaultMaxSyncFileTry,
		DataChunkSizeBytes:     DefaultDataChunkSizeBytes,
		BatchLine:              DefaultBatchLine,
		LogLevel:               "warn",
	}
}
