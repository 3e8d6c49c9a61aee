package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestLoadOrDefault_MissingPathReturnsDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "does-not-exist.toml"), discardLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSyncFileTry, cfg.MaxSyncFileTry)
}

func TestLoadOrDefault_EmptyPathReturnsDefault(t *testing.T) {
	cfg, err := LoadOrDefault("", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_ParsesDirectoriesAndReceiver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	toml := `
log_level = "debug"

[receiver]
host = "receiver.example"
port = 9000

[[directory]]
name = "group-a"
path = "/data/group-a"
schema_log_path = "/data/group-a/schema.log"
`
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	cfg, err := Load(path, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, "receiver.example:9000", cfg.Receiver.Addr())
	require.Len(t, cfg.Directories, 1)
	assert.Equal(t, "group-a", cfg.Directories[0].Name)
	assert.Equal(t, "/data/group-a", cfg.Directories[0].Path)
	assert.Equal(t, "debug", cfg.LogLevel)
	// defaults survive for fields the file didn't set.
	assert.Equal(t, DefaultMaxSyncFileTry, cfg.MaxSyncFileTry)
}

func TestLoad_UnknownTopLevelKeyFailsLoudly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`bogus_field = "x"`), 0o644))

	_, err := Load(path, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus_field")
}

func TestValidate_RejectsDirectoriesWithoutReceiverHost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Directories = []Directory{{Name: "g", Path: "/data/g"}}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "receiver.host")
}

func TestValidate_RejectsNonPositiveMaxSyncFileTry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSyncFileTry = 0

	err := Validate(cfg)
	require.Error(t, err)
}

func TestValidate_RejectsDirectoryMissingNameOrPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Receiver.Host = "host"
	cfg.Directories = []Directory{{Path: "/data/g"}}

	err := Validate(cfg)
	require.Error(t, err)
}

func TestReceiver_AddrOmitsPortWhenZero(t *testing.T) {
	r := Receiver{Host: "receiver.example"}
	assert.Equal(t, "receiver.example", r.Addr())
}
