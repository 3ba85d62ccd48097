package server

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/time/rate"

	"github.com/lox/roshambo/internal/protocol"
)

// Connection is one client: a non-blocking outbound queue drained by a write
// pump, and a read loop that hands each decoded message to the client's room.
type Connection struct {
	transport transport
	send      chan *protocol.Message
	logger    *log.Logger
	clock     quartz.Clock
	limiter   *rate.Limiter
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	started   atomic.Bool

	mu   sync.RWMutex
	user protocol.User
	room *Room
}

// NewConnection wraps a transport. Call Start before Handshake.
func NewConnection(t transport, cfg Config, logger *log.Logger, clock quartz.Clock) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	limit := rate.Inf
	if cfg.MessagesPerSecond > 0 {
		limit = rate.Limit(cfg.MessagesPerSecond)
	}

	c := &Connection{
		transport: t,
		send:      make(chan *protocol.Message, max(cfg.SendBuffer, 1)),
		logger:    logger.WithPrefix("conn").With("remote", t.RemoteAddr()),
		clock:     clock,
		limiter:   rate.NewLimiter(limit, max(cfg.Burst, 1)),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.user.Reset()
	return c
}

// Start begins draining the outbound queue
func (c *Connection) Start() {
	c.started.Store(true)
	go c.writePump()
}

// Done is closed once the connection is closed
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection. Queued messages are flushed by the write pump
// before the transport closes.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		if !c.started.Load() {
			_ = c.transport.Close()
		}
	})
	return nil
}

// Send queues a message. It never blocks: a full queue closes the connection.
func (c *Connection) Send(msg *protocol.Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrSendBufferFull
	}
}

// ID returns the assigned client id, zero before admission
func (c *Connection) ID() protocol.ClientID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.ClientID
}

// DisplayName returns name#id
func (c *Connection) DisplayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.DisplayName()
}

// User returns a copy of the user record
func (c *Connection) User() protocol.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

func (c *Connection) Spectator() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.Spectator
}

func (c *Connection) SetSpectator(spectator bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user.SetSpectator(spectator)
}

func (c *Connection) SetStanding(points int, status protocol.PlayerStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user.Points = points
	if !c.user.Spectator {
		c.user.Status = status
	}
}

func (c *Connection) Room() *Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}

func (c *Connection) SetRoom(room *Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = room
}

func (c *Connection) assign(id protocol.ClientID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user.ClientID = id
	c.user.Name = name
}

// Handshake waits for the connect message and returns the requested name.
// Anything else is answered with an error until the timeout closes the
// connection.
func (c *Connection) Handshake(timeout time.Duration) (string, error) {
	var timedOut atomic.Bool
	timer := c.clock.AfterFunc(timeout, func() {
		timedOut.Store(true)
		_ = c.Close()
	}, "handshake")
	defer timer.Stop()

	for {
		msg, err := c.transport.ReadMessage()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedMessage) {
				c.sendError(CodeInvalidMessage, err.Error())
				continue
			}
			if timedOut.Load() {
				return "", ErrHandshakeTimeout
			}
			return "", err
		}

		payload, err := protocol.Decode(msg)
		if err != nil {
			c.sendError(CodeInvalidMessage, err.Error())
			continue
		}

		connect, ok := payload.(protocol.Connect)
		if !ok {
			c.sendError(CodeNotConnected, "Send a connect message with your name first")
			continue
		}
		name := strings.TrimSpace(connect.Name)
		if name == "" {
			c.sendError(CodeInvalidName, "Name required")
			continue
		}

		if timedOut.Load() {
			return "", ErrHandshakeTimeout
		}
		return name, nil
	}
}

// Serve runs the read loop until the client goes away, then removes the
// client from its room and the registry.
func (c *Connection) Serve(registry *Registry) {
	defer func() {
		registry.Disconnect(c)
		_ = c.Close()
	}()

	for {
		msg, err := c.transport.ReadMessage()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedMessage) {
				c.logger.Warn("Dropping malformed message", "error", err)
				c.sendError(CodeInvalidMessage, err.Error())
				continue
			}
			if !errors.Is(err, io.EOF) && c.ctx.Err() == nil {
				c.logger.Debug("Read failed", "client", c.DisplayName(), "error", err)
			}
			return
		}

		if !c.limiter.AllowN(c.clock.Now(), 1) {
			c.logger.Debug("Rate limited", "type", msg.Type)
			c.sendError(CodeRateLimited, "Too many messages, slow down")
			continue
		}

		c.handleMessage(msg)
	}
}

// handleMessage decodes one message and dispatches it to the current room
func (c *Connection) handleMessage(msg *protocol.Message) {
	c.logger.Debug("Received message", "client", c.DisplayName(), "type", msg.Type)

	payload, err := protocol.Decode(msg)
	if err != nil {
		c.logger.Warn("Dropping message", "type", msg.Type, "error", err)
		c.sendError(CodeInvalidMessage, err.Error())
		return
	}

	room := c.Room()
	if room == nil {
		return
	}
	room.Dispatch(c, payload)
}

// writePump writes queued messages to the client and keeps the stream alive
func (c *Connection) writePump() {
	var tick <-chan time.Time
	p, keepalive := c.transport.(pinger)
	if keepalive {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer func() { _ = c.transport.Close() }()

	for {
		select {
		case msg := <-c.send:
			if err := c.transport.WriteMessage(msg); err != nil {
				c.logger.Debug("Failed to write message", "error", err)
				c.cancel()
				return
			}

		case <-tick:
			if err := p.Ping(); err != nil {
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			c.flush()
			return
		}
	}
}

// flush writes whatever is still queued after Close
func (c *Connection) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.transport.WriteMessage(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	_ = c.Send(protocol.MustMessage(protocol.Error{Code: code, Message: message}))
}
