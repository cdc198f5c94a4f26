package server

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	apperrors "github.com/namelens/relay/internal/errors"
	"github.com/namelens/relay/internal/observability"
	"github.com/namelens/relay/internal/server/handlers"
)

func (s *Server) registerRoutes() {
	hm := s.opts.Health
	s.router.Get("/health", hm.HealthHandler)
	s.router.Get("/health/live", hm.LivenessHandler)
	s.router.Get("/health/ready", hm.ReadinessHandler)
	s.router.Get("/health/startup", hm.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler(s.opts.Build))
	s.router.Get("/metrics", s.metricsHandler)

	if s.opts.Dispatcher != nil {
		s.router.Post("/v1/dispatch", handlers.DispatchHandler(s.opts.Dispatcher))
	}

	s.registerAdminEndpoint()
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if s.opts.Metrics == nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewServiceUnavailableError("Metrics are disabled"))
		return
	}
	s.opts.Metrics.ServeHTTP(w, r)
}

// registerAdminEndpoint exposes gofulmen's signal handler behind a bearer
// token so operators can trigger reload or shutdown over HTTP.
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger
	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no admin token configured)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
	}
}
