// Package diag implements a minimal, loopback-only HTTP surface for
// operator diagnostics: liveness, readiness, and BACnet pool
// utilization. It is not a cloud REST API — this supervisor is scoped
// to MQTT-only cloud communication — just a local surface for the
// operator, built on the familiar New/Start/Close lifecycle shape
// wrapping a *http.Server behind a cancellable background context,
// trimmed down to three read-only endpoints.
package diag

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openbms-io/supervisor/internal/model"
)

const gracefulShutdownTimeout = 5 * time.Second

// Logger is the minimal logging surface Server depends on.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// WrapperUtilization mirrors bacnet.WrapperUtilization without
// importing internal/bacnet, keeping this package's dependency surface
// narrow.
type WrapperUtilization struct {
	ActiveOperations int
	IsBusy           bool
	IP               string
	Port             int
	Strategy         string
}

// Pool is the narrow BACnet pool capability Server needs.
type Pool interface {
	Utilization() map[string]WrapperUtilization
}

// StatusStore is the narrow point-store capability Server needs.
type StatusStore interface {
	GetDeviceStatus(ctx context.Context) (model.DeviceStatus, error)
}

// Deps holds the dependencies required by the diagnostics server.
type Deps struct {
	Addr    string // loopback-only, e.g. "127.0.0.1:9090"
	Logger  Logger
	Pool    Pool
	Store   StatusStore
	Version string
}

// Server is the diagnostics HTTP server.
type Server struct {
	logger    Logger
	pool      Pool
	store     StatusStore
	version   string
	startTime time.Time

	server *http.Server
	cancel context.CancelFunc
}

// New constructs a Server. It is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Addr == "" {
		return nil, fmt.Errorf("diag: addr is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Server{
		logger:    logger,
		pool:      deps.Pool,
		store:     deps.Store,
		version:   deps.Version,
		startTime: time.Now(),
		server:    &http.Server{Addr: deps.Addr},
	}, nil
}

// Start begins listening on the configured (loopback) address.
func (s *Server) Start(ctx context.Context) error {
	_, s.cancel = context.WithCancel(ctx)

	s.server.Handler = s.buildRouter()

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("diag: server error", "err", err)
		}
	}()
	return nil
}

// Close gracefully shuts the server down.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("diag: shutting down: %w", err)
	}
	return nil
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/pool", s.handlePool)
	return r
}
