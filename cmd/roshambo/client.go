package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/roshambo/cmd/roshambo/shared"
	"github.com/lox/roshambo/internal/client"
)

// ClientCmd is a line-mode console client
type ClientCmd struct {
	Config   string `short:"c" default:"roshambo-client.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Server TCP address (overrides config)"`
	Name     string `short:"n" help:"Display name; connects immediately when set"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	NoColor  bool   `help:"Disable colored log output"`
}

func (c *ClientCmd) Run() error {
	cfg, err := client.LoadClientConfig(c.Config)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.Name != "" {
		cfg.Player.Name = c.Name
	}
	if c.LogLevel != "" {
		cfg.UI.LogLevel = c.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := shared.SetupLogger(cfg.UI.LogLevel, c.NoColor || cfg.UI.NoColor)
	if err != nil {
		return err
	}
	ctx := shared.SetupSignalHandler(logger)

	console := &console{
		out:     os.Stdout,
		logger:  logger,
		name:    cfg.Player.Name,
		timeout: time.Duration(cfg.Server.ConnectTimeout) * time.Second,
	}
	defer console.close()

	if console.name != "" {
		if err := console.connect(ctx, cfg.Server.Address); err != nil {
			return err
		}
	} else {
		console.println("Set a name with /name <name>, then /connect <host:port>")
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := console.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

type console struct {
	out     io.Writer
	logger  *log.Logger
	name    string
	timeout time.Duration
	client  *client.Client
}

func (c *console) println(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *console) connect(ctx context.Context, addr string) error {
	if c.name == "" {
		return errors.New("set a name with /name first")
	}
	c.close()

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cl, err := client.Dial(dialCtx, addr, c.name, c.logger)
	if err != nil {
		return err
	}
	c.client = cl

	go func() {
		for ev := range cl.Events() {
			if ev.Line != "" {
				c.println("%s", ev.Line)
			}
		}
		c.println("Disconnected from %s", addr)
	}()
	return nil
}

func (c *console) close() {
	if c.client != nil {
		_ = c.client.Disconnect()
		c.client = nil
	}
}

// handle runs one input line and reports whether to quit
func (c *console) handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}

	cmd, err := client.ParseCommand(line)
	if err != nil {
		c.println("%v", err)
		return false
	}

	switch cmd.Action {
	case client.ActionQuit:
		return true

	case client.ActionSetName:
		c.name = cmd.Arg
		c.println("Name set to %s", c.name)

	case client.ActionConnect:
		if err := c.connect(ctx, cmd.Arg); err != nil {
			c.println("Connect failed: %v", err)
		}

	case client.ActionSend:
		if c.client == nil {
			c.println("Not connected, use /connect <host:port>")
			return false
		}
		if err := c.client.Send(cmd.Payload); err != nil {
			c.println("Send failed: %v", err)
		}
	}
	return false
}
