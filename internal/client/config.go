package client

import (
	"fmt"
	"net"
	"os"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// ClientConfig is the console client configuration file
type ClientConfig struct {
	Server ServerConnection `hcl:"server,block"`
	Player *PlayerSettings  `hcl:"player,block"`
	UI     *UISettings      `hcl:"ui,block"`
}

// ServerConnection says where and how long to dial
type ServerConnection struct {
	Address        string `hcl:"address,optional"`
	ConnectTimeout int    `hcl:"connect_timeout,optional"`
}

// PlayerSettings holds the name used for the handshake
type PlayerSettings struct {
	Name string `hcl:"name,optional"`
}

// UISettings contains console settings
type UISettings struct {
	LogLevel string `hcl:"log_level,optional"`
	NoColor  bool   `hcl:"no_color,optional"`
}

// DefaultClientConfig dials localhost with no name set
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Server: ServerConnection{
			Address:        "localhost:3000",
			ConnectTimeout: 5,
		},
		Player: &PlayerSettings{},
		UI: &UISettings{
			LogLevel: "warn",
		},
	}
}

// LoadClientConfig loads client configuration from an HCL file. A missing
// file yields the defaults.
func LoadClientConfig(filename string) (*ClientConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultClientConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", filename, diags.Error())
	}

	var config ClientConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %s", filename, diags.Error())
	}

	config.applyDefaults()

	return &config, nil
}

func (c *ClientConfig) applyDefaults() {
	d := DefaultClientConfig()
	if c.Server.Address == "" {
		c.Server.Address = d.Server.Address
	}
	if c.Server.ConnectTimeout == 0 {
		c.Server.ConnectTimeout = d.Server.ConnectTimeout
	}
	if c.Player == nil {
		c.Player = d.Player
	}
	if c.UI == nil {
		c.UI = d.UI
	} else if c.UI.LogLevel == "" {
		c.UI.LogLevel = d.UI.LogLevel
	}
}

// Validate validates the client configuration. The player name is optional
// since it can be set interactively with /name.
func (c *ClientConfig) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Address); err != nil {
		return fmt.Errorf("invalid server address %q: %w", c.Server.Address, err)
	}

	if c.Server.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got %d", c.Server.ConnectTimeout)
	}

	if _, err := log.ParseLevel(c.UI.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q", c.UI.LogLevel)
	}

	return nil
}
