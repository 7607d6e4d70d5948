// Package server accepts client connections on a single port, speaking IRC
// over plain TCP or over WebSocket, and runs one session per connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"

	"github.com/omochice/toy-irc-bridge/internal/chat"
	"github.com/omochice/toy-irc-bridge/internal/ircd"
	"github.com/omochice/toy-irc-bridge/internal/metrics"
	"github.com/omochice/toy-irc-bridge/internal/transport/tcp"
	wstransport "github.com/omochice/toy-irc-bridge/internal/transport/ws"
	"github.com/omochice/toy-irc-bridge/pkg/logger"
)

// Server is the client-facing listener of the bridge.
type Server struct {
	address  string
	hub      *chat.Hub
	router   ircd.Router
	cfg      ircd.Config
	upgrader ws.Upgrader
	log      logger.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New creates a Server for address. Call Listen, then Serve.
func New(address string, hub *chat.Hub, router ircd.Router, cfg ircd.Config, log logger.Logger) *Server {
	return &Server{
		address: address,
		hub:     hub,
		router:  router,
		cfg:     cfg,
		upgrader: ws.Upgrader{
			Protocol: func(p []byte) bool {
				return string(p) == wstransport.Subprotocol
			},
		},
		log: log,
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Info("Server started", slog.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Serve accepts connections until ctx is done, then waits for every session
// to finish its shutdown.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("server is not listening")
	}

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Warn("Failed to accept connection", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}

	s.wg.Wait()
	s.log.Info("Server stopped")
	return nil
}

// handleConnection determines whether the connection is a WebSocket upgrade
// or a raw IRC client and runs its session.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	log := logger.NewPrefixedLogger(s.log, conn.RemoteAddr().String())

	if s.cfg.RegistrationTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.RegistrationTimeout))
	}
	kind, reader, err := detectProtocol(conn)
	if err != nil {
		log.Debug("Failed to peek connection", slog.String("error", err.Error()))
		_ = conn.Close()
		return
	}

	var c chat.Conn
	switch kind {
	case protocolHTTP:
		if _, err := s.upgrader.Upgrade(&bufferedConn{Conn: conn, reader: reader}); err != nil {
			log.Warn("WebSocket upgrade failed", slog.String("error", err.Error()))
			_ = conn.Close()
			return
		}
		c = wstransport.NewConnWithReader(conn, reader)
	default:
		c = tcp.NewConnWithReader(conn, reader)
	}
	_ = conn.SetReadDeadline(time.Time{})
	metrics.Connections.WithLabelValues(kind.String()).Inc()
	log.Debug("Accepted connection", slog.String("transport", kind.String()))

	if err := ircd.NewSession(c, s.hub, s.router, s.cfg, log).Serve(ctx); err != nil {
		log.Warn("Session ended with error", slog.String("error", err.Error()))
	}
}
