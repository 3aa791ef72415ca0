// Package server accepts raw TCP connections and answers one request per
// connection through a fixed pool of workers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"hybridserver/internal/config"
	"hybridserver/internal/protocol"
)

// Dispatcher turns a parsed request into a response. An error means the
// request could not be served and is answered with a 500.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// Server owns the listening socket, the accept loop and the worker pool.
type Server struct {
	port            int
	numClients      int
	shutdownTimeout time.Duration

	dispatcher Dispatcher
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	listener   net.Listener
	pool       *pool
	acceptDone chan struct{}

	stopping atomic.Bool
	stopOnce sync.Once
	stopErr  error
}

// New creates a server from configuration. Nothing is bound until Start.
func New(cfg *config.Config, dispatcher Dispatcher, logger *slog.Logger) *Server {
	numClients := cfg.NumClients
	if numClients <= 0 {
		numClients = config.DefaultNumClients
	}
	timeout := time.Duration(cfg.ShutdownTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		port:            cfg.Port,
		numClients:      numClients,
		shutdownTimeout: timeout,
		dispatcher:      dispatcher,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Start binds the port and returns once the accept loop is running.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("server already started")
	}
	if s.stopping.Load() {
		return errors.New("server has been stopped")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}

	s.listener = ln
	s.pool = newPool(s.numClients, s.handleConn)
	s.acceptDone = make(chan struct{})
	go s.acceptLoop(ln, s.pool, s.acceptDone)

	s.logger.Info("Server started",
		"addr", ln.Addr().String(),
		"workers", s.numClients,
	)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ln net.Listener, p *pool, done chan struct{}) {
	defer close(done)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopping.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("Accept failed", "error", err.Error())
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if !p.submit(conn) {
			_ = conn.Close()
			return
		}
	}
}

// Stop closes the listener and waits up to the shutdown timeout for
// in-flight requests. It is safe to call more than once.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)

		s.mu.Lock()
		ln, p, acceptDone := s.listener, s.pool, s.acceptDone
		s.mu.Unlock()

		if ln == nil {
			s.cancel()
			return
		}

		s.logger.Info("Stopping server")
		_ = ln.Close()
		p.abort()
		<-acceptDone

		if err := p.shutdown(s.shutdownTimeout); err != nil {
			s.logger.Warn("Server stopped before all requests finished", "error", err.Error())
			s.stopErr = err
		} else {
			s.logger.Info("Server stopped")
		}
		s.cancel()
	})
	return s.stopErr
}
