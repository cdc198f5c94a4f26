package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/namelens/relay/internal/config"
	apperrors "github.com/namelens/relay/internal/errors"
	"github.com/namelens/relay/internal/observability"
	"github.com/namelens/relay/internal/server/handlers"
	servermw "github.com/namelens/relay/internal/server/middleware"
)

// Options wires the sidecar's collaborators.
type Options struct {
	// Dispatcher serves /v1/dispatch; the route is omitted when nil.
	Dispatcher handlers.Dispatcher
	// Health defaults to a manager with no checkers.
	Health *handlers.HealthManager
	Build  handlers.BuildInfo
	// Metrics serves /metrics; nil answers 503.
	Metrics http.Handler
	// AdminToken enables POST /admin/signal when set.
	AdminToken string
}

// Server is the relay HTTP sidecar.
type Server struct {
	cfg    config.ServerConfig
	opts   Options
	router *chi.Mux

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New builds the router. Nothing listens until Start.
func New(cfg config.ServerConfig, opts Options) *Server {
	if opts.Health == nil {
		opts.Health = handlers.NewHealthManager(opts.Build.Version)
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithEnvelope(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithEnvelope(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{cfg: cfg, opts: opts, router: r}
	s.registerRoutes()
	return s
}

// Start listens on the configured address and serves until Shutdown. It
// returns nil after a graceful shutdown.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	s.opts.Health.MarkStarted()
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
	}

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	return srv.Shutdown(ctx)
}

// Addr is the bound listener address, empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
