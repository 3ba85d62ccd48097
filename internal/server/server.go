package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lox/roshambo/internal/game"
)

// Config holds the runtime server options
type Config struct {
	// TCPAddr is the raw TCP listen address
	TCPAddr string
	// HTTPAddr serves /ws and /health; empty disables it
	HTTPAddr          string
	HandshakeTimeout  time.Duration
	SendBuffer        int
	Rules             game.Rules
	MessagesPerSecond float64
	Burst             int
}

// Server accepts clients over TCP and WebSocket and hands them to the registry
type Server struct {
	cfg      Config
	logger   *log.Logger
	baseLog  *log.Logger
	clock    quartz.Clock
	registry *Registry
	upgrader websocket.Upgrader

	tcpListener  net.Listener
	httpListener net.Listener
	httpServer   *http.Server

	mu          sync.Mutex
	connections map[*Connection]bool
	closed      bool
	done        chan struct{}
}

// NewServer creates a server; call Listen then Serve, or Run
func NewServer(cfg Config, logger *log.Logger, clock quartz.Clock) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger.WithPrefix("server"),
		baseLog:  logger,
		clock:    clock,
		registry: NewRegistry(logger, clock, cfg.Rules),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		done:        make(chan struct{}),
	}
}

// Registry returns the server's registry
func (s *Server) Registry() *Registry {
	return s.registry
}

// Listen binds the TCP and HTTP listeners
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.TCPAddr)
	if err != nil {
		return err
	}
	s.tcpListener = ln

	if s.cfg.HTTPAddr != "" {
		hln, err := net.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			_ = ln.Close()
			return err
		}
		s.httpListener = hln

		mux := http.NewServeMux()
		mux.HandleFunc("/ws", s.handleWebSocket)
		mux.HandleFunc("/health", s.handleHealth)
		s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	}
	return nil
}

// TCPAddr returns the bound TCP address
func (s *Server) TCPAddr() net.Addr {
	return s.tcpListener.Addr()
}

// HTTPAddr returns the bound HTTP address, or nil when disabled
func (s *Server) HTTPAddr() net.Addr {
	if s.httpListener == nil {
		return nil
	}
	return s.httpListener.Addr()
}

// Run listens and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts clients until ctx is cancelled or Shutdown is called
func (s *Server) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	s.logger.Info("Listening for TCP clients", "addr", s.TCPAddr())
	g.Go(s.acceptLoop)

	if s.httpServer != nil {
		s.logger.Info("Listening for WebSocket clients", "addr", s.HTTPAddr())
		g.Go(func() error {
			if err := s.httpServer.Serve(s.httpListener); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.done:
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown stops accepting clients, force-disconnects every room and closes
// every connection, including ones still in their handshake.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.logger.Info("Shutting down")

	var errs []error
	if err := s.tcpListener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, err)
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.registry.Shutdown()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()

	return errors.Join(errs...)
}

func (s *Server) acceptLoop() error {
	for {
		conn, err := s.tcpListener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleClient(newTCPTransport(conn))
	}
}

// handleClient runs a client from handshake to disconnect
func (s *Server) handleClient(t transport) {
	conn := NewConnection(t, s.cfg, s.baseLog, s.clock)
	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)

	conn.Start()

	name, err := conn.Handshake(s.cfg.HandshakeTimeout)
	if err != nil {
		s.logger.Info("Handshake failed", "remote", t.RemoteAddr(), "error", err)
		_ = conn.Close()
		return
	}

	conn.assign(s.registry.NextID(), name)
	s.registry.Admit(conn)
	conn.Serve(s.registry)
}

func (s *Server) track(conn *Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.connections[conn] = true
	return true
}

func (s *Server) untrack(conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, conn)
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}
	s.handleClient(newWSTransport(conn))
}

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Rooms   int    `json:"rooms"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	clients, rooms := s.registry.Counts()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Clients: clients, Rooms: rooms})
}
