package listener

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/kenelite/go-solo/internal/observability"
)

type Server struct {
	srv    *http.Server
	logger *observability.Logger

	mu    sync.Mutex
	bound net.Addr
	ready chan struct{}
}

func NewServer(addr string, handler http.Handler, logger *observability.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		close(s.ready)
		return err
	}
	s.mu.Lock()
	s.bound = ln.Addr()
	s.mu.Unlock()
	close(s.ready)

	s.logger.Infow("listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr blocks until Start has bound the socket and returns its address, or
// nil when listening failed.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
