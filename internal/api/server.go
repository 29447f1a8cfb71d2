package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-fieldio/internal/driver"
	"github.com/nerrad567/gray-logic-fieldio/internal/fieldio"
	"github.com/nerrad567/gray-logic-fieldio/internal/history"
	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is a component the health endpoint reports on. The
// database, MQTT and InfluxDB clients implement it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ValueStore reads persisted field values. history.SQLiteRepository
// implements it.
type ValueStore interface {
	Values(ctx context.Context, moniker string) ([]history.Record, error)
	History(ctx context.Context, moniker, name string, limit int) ([]history.Entry, error)
}

// EventStore pages fired trigger events. history.EventLog implements it.
type EventStore interface {
	List(ctx context.Context, filter history.EventFilter) (*history.EventPage, error)
}

// DropCounter is a background queue that drops work when full.
type DropCounter interface {
	Dropped() uint64
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Registry *driver.Registry
	FieldIO  *fieldio.Server

	// Optional. Without Values the value and history routes answer 503;
	// without Events the event route does.
	Values ValueStore
	Events EventStore

	// Checks are reported by /health under their map key.
	Checks map[string]HealthChecker

	// Queues are reported by /metrics under their map key.
	Queues map[string]DropCounter

	// Hub is shared with the event dispatcher. When nil the server creates
	// its own.
	Hub *Hub

	Version string
}

// Server is the HTTP API server for the field I/O core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	registry    *driver.Registry
	fieldio     *fieldio.Server
	values      ValueStore
	events      EventStore
	checks      map[string]HealthChecker
	queues      map[string]DropCounter
	version     string
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	externalHub bool
	tickets     *ticketStore
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("driver registry is required")
	}
	if deps.FieldIO == nil {
		deps.FieldIO = fieldio.NewServer(deps.Registry)
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		registry:  deps.Registry,
		fieldio:   deps.FieldIO,
		values:    deps.Values,
		events:    deps.Events,
		checks:    deps.Checks,
		queues:    deps.Queues,
		version:   deps.Version,
		startTime: time.Now(),
		tickets:   newTicketStore(),
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}

	return s, nil
}

// Hub returns the WebSocket hub, for wiring the event dispatcher.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
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

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
