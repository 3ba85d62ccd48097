package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/roshambo/internal/protocol"
)

// ErrClosed is returned when sending on a closed client
var ErrClosed = errors.New("client closed")

// Event is one message received from the server
type Event struct {
	Message *protocol.Message
	Payload protocol.Payload
	// Line is the console rendering, empty for silent messages
	Line string
}

// Client is a TCP client for the game server
type Client struct {
	conn      net.Conn
	writer    *protocol.Writer
	events    chan Event
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu   sync.RWMutex
	view *View
}

// Dial connects to addr and sends the connect handshake with name
func Dial(ctx context.Context, addr, name string, logger *log.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:   conn,
		writer: protocol.NewWriter(conn),
		events: make(chan Event, 256),
		logger: logger.WithPrefix("client"),
		ctx:    cctx,
		cancel: cancel,
		view:   NewView(),
	}

	go c.readPump()

	if err := c.Send(protocol.Connect{Name: name}); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.logger.Info("Connected to server", "addr", addr, "name", name)
	return c, nil
}

// Events returns received messages. The channel closes when the connection ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed once the client is closed
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// Send writes one payload to the server
func (c *Client) Send(p protocol.Payload) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	msg, err := protocol.NewMessage(p)
	if err != nil {
		return err
	}
	return c.writer.WriteMessage(msg)
}

// ID returns the id assigned by the server, zero until the handshake completes
func (c *Client) ID() protocol.ClientID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view.Self()
}

// Members returns the known members of the current room
func (c *Client) Members() []KnownMember {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view.Members()
}

func (c *Client) Chat(text string) error        { return c.Send(protocol.Text{Text: text}) }
func (c *Client) CreateRoom(name string) error  { return c.Send(protocol.RoomCreate{Name: name}) }
func (c *Client) JoinRoom(name string) error    { return c.Send(protocol.RoomJoin{Name: name}) }
func (c *Client) Spectate(name string) error    { return c.Send(protocol.RoomSpectate{Name: name}) }
func (c *Client) LeaveRoom() error              { return c.Send(protocol.RoomLeave{}) }
func (c *Client) ListRooms(query string) error  { return c.Send(protocol.RoomList{Query: query}) }
func (c *Client) ToggleAway() error             { return c.Send(protocol.ToggleAway{}) }
func (c *Client) Pick(move string) error        { return c.Send(protocol.Pick{Move: move}) }
func (c *Client) Ready(extra, cooldown bool) error {
	return c.Send(protocol.Ready{ExtraMoves: extra, Cooldown: cooldown})
}

// Disconnect tells the server we are leaving and closes the connection
func (c *Client) Disconnect() error {
	_ = c.Send(protocol.Disconnect{ClientID: c.ID()})
	return c.Close()
}

// readPump reads messages from the server until the connection ends
func (c *Client) readPump() {
	defer close(c.events)
	defer func() { _ = c.Close() }()

	reader := protocol.NewReader(c.conn)
	for {
		msg, err := reader.ReadMessage()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedMessage) {
				c.logger.Warn("Ignoring malformed message", "error", err)
				continue
			}
			if c.ctx.Err() == nil {
				c.logger.Debug("Connection ended", "error", err)
			}
			return
		}

		payload, err := protocol.Decode(msg)
		if err != nil {
			c.logger.Warn("Ignoring message", "type", msg.Type, "error", err)
			continue
		}

		c.mu.Lock()
		line := c.view.Render(payload)
		c.view.Apply(payload)
		c.mu.Unlock()

		select {
		case c.events <- Event{Message: msg, Payload: payload, Line: line}:
		case <-c.ctx.Done():
			return
		}
	}
}
