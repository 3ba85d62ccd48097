package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.hcl"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost:3000", cfg.TCPAddress())
	assert.Equal(t, "localhost:8080", cfg.HTTPAddress())
	assert.Equal(t, 30*time.Second, cfg.Rules().RoundDuration)
	assert.Equal(t, 5, cfg.Rules().TotalRounds)
	assert.Equal(t, 2, cfg.Rules().MinPlayers)

	runtime := cfg.Config()
	assert.Equal(t, 3*time.Second, runtime.HandshakeTimeout)
	assert.Equal(t, 256, runtime.SendBuffer)
}

func TestLoadServerConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.hcl")
	content := `
server {
  address = "0.0.0.0"
  tcp_port = 4000
  http_port = -1
  log_level = "debug"
  handshake_timeout_ms = 500
}

game {
  round_seconds = 10
  total_rounds = 3
}

limits {
  messages_per_second = 5
  burst = 10
}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:4000", cfg.TCPAddress())
	assert.Equal(t, "", cfg.HTTPAddress())
	assert.Equal(t, "debug", cfg.Server.LogLevel)

	runtime := cfg.Config()
	assert.Equal(t, 500*time.Millisecond, runtime.HandshakeTimeout)
	assert.Equal(t, 10*time.Second, runtime.Rules.RoundDuration)
	assert.Equal(t, 3, runtime.Rules.TotalRounds)
	assert.Equal(t, 2, runtime.Rules.MinPlayers, "unset values fall back to defaults")
	assert.Equal(t, 5.0, runtime.MessagesPerSecond)
	assert.Equal(t, 10, runtime.Burst)
}

func TestLoadServerConfigOnlyServerBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.hcl")
	require.NoError(t, os.WriteFile(path, []byte("server {\n  tcp_port = 4100\n}\n"), 0o600))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Game)
	require.NotNil(t, cfg.Limits)
	assert.Equal(t, 5, cfg.Game.TotalRounds)
}

func TestLoadServerConfigParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.hcl")
	require.NoError(t, os.WriteFile(path, []byte("server {"), 0o600))

	_, err := LoadServerConfig(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"bad tcp port", func(c *ServerConfig) { c.Server.TCPPort = 70000 }},
		{"same ports", func(c *ServerConfig) { c.Server.HTTPPort = c.Server.TCPPort }},
		{"no rounds", func(c *ServerConfig) { c.Game.TotalRounds = -1 }},
		{"one player", func(c *ServerConfig) { c.Game.MinPlayers = 1 }},
		{"zero burst", func(c *ServerConfig) { c.Limits.Burst = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
