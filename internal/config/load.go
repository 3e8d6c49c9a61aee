package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file using a two-pass decode: pass 1
// decodes the known fields onto DefaultConfig()'s baked-in defaults, pass 2
// checks the decode metadata for any key (top-level or nested) that no field
// consumed, so typos fail loudly instead of being silently ignored.
func Load(path string, logger *slog.Logger) (*Config, error) {
	logger.Debug("loading config file", "path", path)

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("config file parsed successfully", "path", path, "directories", len(cfg.Directories))

	return cfg, nil
}

// LoadOrDefault loads path if it exists, otherwise returns DefaultConfig().
// Mirrors the teacher's "config is optional, sensible defaults apply"
// philosophy for commands that can run without a config file present.
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}

		return nil, fmt.Errorf("checking config file %s: %w", path, err)
	}

	return Load(path, logger)
}

// Validate checks invariants Load cannot express via struct tags alone.
func Validate(cfg *Config) error {
	if cfg.Receiver.Host == "" && len(cfg.Directories) > 0 {
		return fmt.Errorf("receiver.host must be set when directories are configured")
	}

	if cfg.MaxSyncFileTry < 1 {
		return fmt.Errorf("max_sync_file_try must be >= 1, got %d", cfg.MaxSyncFileTry)
	}

	if cfg.DataChunkSizeBytes < 1 {
		return fmt.Errorf("data_chunk_size_bytes must be >= 1, got %d", cfg.DataChunkSizeBytes)
	}

	for _, d := range cfg.Directories {
		if d.Name == "" || d.Path == "" {
			return fmt.Errorf("directory entries require both name and path")
		}
	}

	return nil
}
