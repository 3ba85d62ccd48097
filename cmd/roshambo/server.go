package main

import (
	"fmt"

	"github.com/coder/quartz"

	"github.com/lox/roshambo/cmd/roshambo/shared"
	"github.com/lox/roshambo/internal/server"
)

// ServerCmd runs the game server
type ServerCmd struct {
	Config   string `short:"c" default:"roshambo.hcl" help:"Path to HCL configuration file"`
	Address  string `short:"a" help:"Address to bind to (overrides config)"`
	TCPPort  int    `help:"TCP port (overrides config)"`
	HTTPPort int    `help:"HTTP port for /ws and /health, -1 disables (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	NoColor  bool   `help:"Disable colored log output"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if c.Address != "" {
		cfg.Server.Address = c.Address
	}
	if c.TCPPort != 0 {
		cfg.Server.TCPPort = c.TCPPort
	}
	if c.HTTPPort != 0 {
		cfg.Server.HTTPPort = c.HTTPPort
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := shared.SetupLogger(cfg.Server.LogLevel, c.NoColor)
	if err != nil {
		return err
	}

	rules := cfg.Rules()
	logger.Info("Starting roshambo server",
		"tcp", cfg.TCPAddress(),
		"http", cfg.HTTPAddress(),
		"round", rules.RoundDuration,
		"rounds", rules.TotalRounds,
		"min_players", rules.MinPlayers)

	ctx := shared.SetupSignalHandler(logger)
	srv := server.NewServer(cfg.Config(), logger, quartz.NewReal())
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
