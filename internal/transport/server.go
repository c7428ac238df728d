package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/zishang520/socket.io/v2/socket"

	"github.com/roach88/weave/internal/engine"
)

// Server accepts client connections over socket.io and gives each one its
// own session from the factory.
type Server struct {
	factory *engine.Factory
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	conns map[string]*Conn

	ioOnce sync.Once
	io     *socket.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a server opening sessions from factory.
func NewServer(factory *engine.Factory, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		factory: factory,
		logger:  slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[string]*Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "transport")
	return s
}

// Handler returns the socket.io HTTP handler. Mount it at /socket.io/.
// The socket.io server is created on first use.
func (s *Server) Handler() http.Handler {
	s.ioOnce.Do(func() {
		s.io = socket.NewServer(nil, nil)
		s.io.On("connection", func(clients ...any) {
			client, ok := clients[0].(*socket.Socket)
			if !ok {
				s.logger.Error("unexpected connection payload", "type", fmt.Sprintf("%T", clients[0]))
				return
			}
			s.accept(client)
		})
	})
	return s.io.ServeHandler(nil)
}

// accept wires one socket.io client to a new session.
func (s *Server) accept(client *socket.Socket) {
	emit := func(event string, payload any) {
		client.Emit(event, payload)
	}
	conn, err := s.Connect(emit)
	if err != nil {
		s.logger.Error("open session failed", "client", client.Id(), "error", err)
		emit(EventClosed, map[string]any{"code": string(engine.CodeOf(err))})
		return
	}

	client.On(EventInput, conn.HandleInput)
	client.On(EventVisibility, conn.HandleVisibility)
	client.On("disconnect", func(...any) {
		s.logger.Debug("client disconnected", "client", client.Id(), "session", conn.ID())
		s.disconnect(conn)
	})
}

// Connect opens a session for a client reached through emit: it mounts
// the application, sends the interface tree and the first render, and
// starts the session loop.
func (s *Server) Connect(emit EmitFunc) (*Conn, error) {
	ctx, cancel := context.WithCancel(s.ctx)
	conn := &Conn{
		emit:   emit,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	root, err := s.factory.Open(ctx,
		engine.WithRenderer(conn),
		engine.WithEventErrorHandler(conn.onEventError),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	conn.root = root
	conn.logger = s.logger.With("session", root.ID())
	conn.release = func() { s.factory.Release(context.Background(), root.ID()) }
	conn.forget = func() { s.forget(conn) }

	tree, err := root.Tree()
	if err != nil {
		conn.release()
		cancel()
		return nil, fmt.Errorf("session %s: %w", root.ID(), err)
	}
	conn.markReady(tree)

	s.mu.Lock()
	s.conns[root.ID()] = conn
	s.mu.Unlock()

	go conn.run(ctx)

	conn.logger.Info("client connected", "live", s.factory.Live())
	return conn, nil
}

func (s *Server) disconnect(conn *Conn) {
	s.forget(conn)
	conn.Close()
}

func (s *Server) forget(conn *Conn) {
	s.mu.Lock()
	if s.conns[conn.ID()] == conn {
		delete(s.conns, conn.ID())
	}
	s.mu.Unlock()
}

// Conn returns the live connection for a session token.
func (s *Server) Conn(id string) (*Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	return c, ok
}

// Live returns the number of connected clients.
func (s *Server) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown closes every session and the socket.io server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for id, c := range s.conns {
		conns = append(conns, c)
		delete(s.conns, id)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, c := range conns {
			c.Close()
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
	s.cancel()
	if s.io != nil {
		s.io.Close(nil)
	}
	s.logger.Info("transport stopped", "sessions", len(conns))
	return nil
}
