package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/gsmoverlay/input-server/internal/audit"
	"github.com/gsmoverlay/input-server/internal/broadcast"
	"github.com/gsmoverlay/input-server/internal/gamepad"
	"github.com/gsmoverlay/input-server/internal/infrastructure/config"
	"github.com/gsmoverlay/input-server/internal/infrastructure/logging"
	"github.com/gsmoverlay/input-server/internal/mirror"
)

const (
	// gracefulShutdownTimeout is the maximum time to wait for in-flight
	// requests to complete during shutdown.
	gracefulShutdownTimeout = 5 * time.Second

	// healthCheckTimeout bounds all sink checks of one health request.
	healthCheckTimeout = 2 * time.Second
)

// HealthChecker is a backing service reported by GET /api/v1/health.
// *database.DB, *mqtt.Client and *influxdb.Client satisfy it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// MirrorStats exposes the MQTT mirror counters.
type MirrorStats interface {
	Stats() mirror.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.ServerConfig
	WebSocket config.WebSocketConfig
	Logger    *logging.Logger
	Hub       *broadcast.Hub
	Registry  *gamepad.Registry
	Worker    Worker                   // optional; local fallback when nil
	Lag       LagObserver              // optional
	Audit     *audit.Recorder          // optional
	AuditRepo audit.Repository         // optional; enables GET /api/v1/audit
	Checks    map[string]HealthChecker // optional; keyed by sink name
	Mirror    MirrorStats              // optional
	Version   string
}

// Server is the HTTP and WebSocket listener.
//
// It is created with New, started with Start, and stopped with Close.
type Server struct {
	cfg       config.ServerConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	hub       *broadcast.Hub
	registry  *gamepad.Registry
	worker    Worker
	lag       LagObserver
	audit     *audit.Recorder
	auditRepo audit.Repository
	checks    map[string]HealthChecker
	mirror    MirrorStats
	version   string

	sessions *xsync.MapOf[string, *Session]
	server   *http.Server
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	active   sync.WaitGroup
}

// New creates a server with the given dependencies. Nothing listens until
// Start.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If a required dependency is missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("broadcast hub is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WebSocket,
		logger:    deps.Logger,
		hub:       deps.Hub,
		registry:  deps.Registry,
		worker:    deps.Worker,
		lag:       deps.Lag,
		audit:     deps.Audit,
		auditRepo: deps.AuditRepo,
		checks:    deps.Checks,
		mirror:    deps.Mirror,
		version:   deps.Version,
		sessions:  xsync.NewMapOf[string, *Session](),
	}, nil
}

// Start binds the listen address and serves in the background.
//
// Binding happens synchronously so an address in use is reported here.
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	s.listener = ln
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.ReadHeader) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("listening", "address", ln.Addr().String(), "websocket_path", s.wsCfg.Path)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// SessionCount returns the number of connected subscribers.
func (s *Server) SessionCount() int {
	return s.sessions.Size()
}

// Close stops accepting connections, ends every session and waits for
// them to finish.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down", "sessions", s.sessions.Size())
	err := s.server.Shutdown(ctx)
	s.active.Wait()
	if err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
