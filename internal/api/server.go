package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/lumenhub-core/internal/command"
	"github.com/nerrad567/lumenhub-core/internal/device"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/config"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/logging"
	"github.com/nerrad567/lumenhub-core/internal/protocol"
	"github.com/nerrad567/lumenhub-core/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Dispatch  config.DispatchConfig
	Logger    *logging.Logger
	Registry  *device.Registry
	Runtime   *session.Runtime
	Router    *command.Router
	Validator *protocol.Validator

	// Observer is notified of device session transitions. Optional.
	Observer protocol.Observer

	// Checks are reported by GET /health. A nil check is shown as disabled.
	Checks map[string]HealthCheck

	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and the set of open
// device connections. The server is created with New() and started with
// Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	dispatch  config.DispatchConfig
	logger    *logging.Logger
	registry  *device.Registry
	runtime   *session.Runtime
	router    *command.Router
	validator *protocol.Validator
	observer  protocol.Observer
	checks    map[string]HealthCheck
	version   string

	upgrader  websocket.Upgrader
	hub       *Hub
	startTime time.Time

	server   *http.Server
	listener net.Listener

	mu     sync.Mutex
	ctx    context.Context //nolint:containedctx // lifetime of device connections
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Runtime == nil {
		return nil, fmt.Errorf("session runtime is required")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("command router is required")
	}
	if deps.Validator == nil {
		return nil, fmt.Errorf("frame validator is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		dispatch:  deps.Dispatch,
		logger:    deps.Logger,
		registry:  deps.Registry,
		runtime:   deps.Runtime,
		router:    deps.Router,
		validator: deps.Validator,
		observer:  deps.Observer,
		checks:    deps.Checks,
		version:   deps.Version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// Devices do not send a browser Origin
				return true
			},
		},
		hub:       NewHub(deps.Logger),
		startTime: time.Now(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	return s, nil
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns, so a port-in-use error is
// reported here. Serving happens in a background goroutine until Close.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(s.ctx)

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String(), "websocket_path", s.wsCfg.Path)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server and disconnects every device.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	// Device sockets are hijacked and not tracked by Shutdown.
	s.cancel()
	s.hub.closeAll()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
