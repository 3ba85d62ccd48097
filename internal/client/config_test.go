package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientConfigMissingFile(t *testing.T) {
	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.Equal(t, DefaultClientConfig(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadClientConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  address = "games.example.com:4000"
}

player {
  name = "ana"
}
`), 0o644))

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "games.example.com:4000", cfg.Server.Address)
	assert.Equal(t, 5, cfg.Server.ConnectTimeout)
	assert.Equal(t, "ana", cfg.Player.Name)
	assert.Equal(t, "warn", cfg.UI.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestClientConfigValidate(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.Server.Address = "no-port"
	assert.Error(t, cfg.Validate())

	cfg = DefaultClientConfig()
	cfg.UI.LogLevel = "chatty"
	assert.Error(t, cfg.Validate())
}
