package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/AltairaLabs/Omnia-sub008/internal/observability"
)

// ServerConfig holds configuration for the relay listener.
type ServerConfig struct {
	Port    int
	Address string
}

// Server is the HTTP server hosting the upgrade dispatcher. Sessions
// are long-lived, so only the header read is bounded; there are no
// read/write/idle timeouts on the listener.
type Server struct {
	httpServer *http.Server
	logger     observability.Logger

	mu      sync.Mutex
	running bool
}

// NewServer creates the relay listener around the given handler.
func NewServer(cfg ServerConfig, handler http.Handler, logger observability.Logger) *Server {
	addr := fmt.Sprintf("%s:%d", cfg.Address, cfg.Port)
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("relay server already running")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("relay server started",
		observability.String("address", s.httpServer.Addr),
	)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("relay server error", observability.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts the listener down. In-flight sessions on
// hijacked connections are not interrupted by Shutdown; they end when
// either leg closes.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("stopping relay server")
	return s.httpServer.Shutdown(ctx)
}
