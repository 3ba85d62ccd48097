package server

import (
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lox/roshambo/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// TCP keepalive probe interval for raw socket clients
	tcpKeepAlive = 30 * time.Second
)

// transport moves framed messages over one client stream. Reads happen on the
// connection's read loop and writes on its write pump, never concurrently
// with themselves.
type transport interface {
	// ReadMessage returns protocol.ErrMalformedMessage for a bad frame the
	// stream can recover from; any other error ends the stream.
	ReadMessage() (*protocol.Message, error)
	WriteMessage(msg *protocol.Message) error
	Close() error
	RemoteAddr() string
}

// pinger is implemented by transports with a keepalive
type pinger interface {
	Ping() error
}

// tcpTransport speaks newline delimited JSON over a raw socket
type tcpTransport struct {
	conn net.Conn
	r    *protocol.Reader
	w    *protocol.Writer
}

func newTCPTransport(conn net.Conn) *tcpTransport {
	enableKeepAlive(conn)
	return &tcpTransport{
		conn: conn,
		r:    protocol.NewReader(conn),
		w:    protocol.NewWriter(conn),
	}
}

// enableKeepAlive turns on TCP keepalive probes so a half-open peer that
// never sends again is reaped by the kernel. It reports whether conn is a
// TCP socket.
func enableKeepAlive(conn net.Conn) bool {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return false
	}
	_ = tcp.SetKeepAliveConfig(net.KeepAliveConfig{
		Enable:   true,
		Idle:     tcpKeepAlive,
		Interval: tcpKeepAlive / 2,
		Count:    3,
	})
	return true
}

func (t *tcpTransport) ReadMessage() (*protocol.Message, error) {
	return t.r.ReadMessage()
}

func (t *tcpTransport) WriteMessage(msg *protocol.Message) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.w.WriteMessage(msg)
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

// wsTransport carries one JSON envelope per WebSocket text frame
type wsTransport struct {
	conn *websocket.Conn
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	conn.SetReadLimit(protocol.MaxLineSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadMessage() (*protocol.Message, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return protocol.Unmarshal(data)
}

func (t *wsTransport) WriteMessage(msg *protocol.Message) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteJSON(msg)
}

func (t *wsTransport) Ping() error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

func (t *wsTransport) Close() error {
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
