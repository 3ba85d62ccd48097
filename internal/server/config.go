package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/roshambo/internal/game"
)

// ServerConfig represents the complete server configuration file
type ServerConfig struct {
	Server ServerSettings `hcl:"server,block"`
	Game   *GameSettings  `hcl:"game,block"`
	Limits *LimitSettings `hcl:"limits,block"`
}

// ServerSettings contains listener and connection settings
type ServerSettings struct {
	Address            string `hcl:"address,optional"`
	TCPPort            int    `hcl:"tcp_port,optional"`
	HTTPPort           int    `hcl:"http_port,optional"`
	LogLevel           string `hcl:"log_level,optional"`
	HandshakeTimeoutMs int    `hcl:"handshake_timeout_ms,optional"`
	SendBuffer         int    `hcl:"send_buffer,optional"`
}

// GameSettings configures every room's game session
type GameSettings struct {
	RoundSeconds int `hcl:"round_seconds,optional"`
	TotalRounds  int `hcl:"total_rounds,optional"`
	MinPlayers   int `hcl:"min_players,optional"`
}

// LimitSettings configures per-connection inbound flood control
type LimitSettings struct {
	MessagesPerSecond float64 `hcl:"messages_per_second,optional"`
	Burst             int     `hcl:"burst,optional"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{}
	cfg.applyDefaults()
	return cfg
}

// LoadServerConfig loads server configuration from an HCL file. A missing
// file yields the defaults.
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.TCPPort == 0 {
		c.Server.TCPPort = 3000
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.HandshakeTimeoutMs == 0 {
		c.Server.HandshakeTimeoutMs = 3000
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = 256
	}

	rules := game.DefaultRules()
	if c.Game == nil {
		c.Game = &GameSettings{}
	}
	if c.Game.RoundSeconds == 0 {
		c.Game.RoundSeconds = int(rules.RoundDuration / time.Second)
	}
	if c.Game.TotalRounds == 0 {
		c.Game.TotalRounds = rules.TotalRounds
	}
	if c.Game.MinPlayers == 0 {
		c.Game.MinPlayers = rules.MinPlayers
	}

	if c.Limits == nil {
		c.Limits = &LimitSettings{}
	}
	if c.Limits.MessagesPerSecond == 0 {
		c.Limits.MessagesPerSecond = 20
	}
	if c.Limits.Burst == 0 {
		c.Limits.Burst = 40
	}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.TCPPort < 1 || c.Server.TCPPort > 65535 {
		return fmt.Errorf("invalid tcp port: %d", c.Server.TCPPort)
	}
	// -1 disables the HTTP listener
	if c.Server.HTTPPort != -1 && (c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535) {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}
	if c.Server.HTTPPort == c.Server.TCPPort {
		return fmt.Errorf("tcp and http ports must differ: %d", c.Server.TCPPort)
	}
	if c.Server.HandshakeTimeoutMs < 0 {
		return fmt.Errorf("handshake timeout must be positive")
	}
	if c.Server.SendBuffer < 1 {
		return fmt.Errorf("send buffer must be positive")
	}

	if c.Game.RoundSeconds < 1 {
		return fmt.Errorf("round_seconds must be positive")
	}
	if c.Game.TotalRounds < 1 {
		return fmt.Errorf("total_rounds must be positive")
	}
	if c.Game.MinPlayers < 2 {
		return fmt.Errorf("min_players must be at least 2")
	}

	if c.Limits.MessagesPerSecond < 0 {
		return fmt.Errorf("messages_per_second must not be negative")
	}
	if c.Limits.Burst < 1 {
		return fmt.Errorf("burst must be positive")
	}

	return nil
}

// TCPAddress returns the raw TCP listen address
func (c *ServerConfig) TCPAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.TCPPort)
}

// HTTPAddress returns the HTTP listen address, or "" when disabled
func (c *ServerConfig) HTTPAddress() string {
	if c.Server.HTTPPort == -1 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.HTTPPort)
}

// Rules returns the game rules for every room
func (c *ServerConfig) Rules() game.Rules {
	return game.Rules{
		RoundDuration: time.Duration(c.Game.RoundSeconds) * time.Second,
		TotalRounds:   c.Game.TotalRounds,
		MinPlayers:    c.Game.MinPlayers,
	}
}

// Config converts the file configuration into runtime server options
func (c *ServerConfig) Config() Config {
	return Config{
		TCPAddr:           c.TCPAddress(),
		HTTPAddr:          c.HTTPAddress(),
		HandshakeTimeout:  time.Duration(c.Server.HandshakeTimeoutMs) * time.Millisecond,
		SendBuffer:        c.Server.SendBuffer,
		Rules:             c.Rules(),
		MessagesPerSecond: c.Limits.MessagesPerSecond,
		Burst:             c.Limits.Burst,
	}
}
