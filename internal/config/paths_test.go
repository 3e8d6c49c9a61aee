package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultDataDir_NonEmpty(t *testing.T) {
	assert.NotEmpty(t, DefaultDataDir())
}

func TestDefaultConfigPath_EndsWithConfigToml(t *testing.T) {
	path := DefaultConfigPath()
	if path == "" {
		t.Skip("no home directory resolvable in this environment")
	}

	assert.Contains(t, path, "config.toml")
}
