package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/namelens/relay/internal/metrics"
	"github.com/namelens/relay/internal/observability"
)

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.written += int64(n)
	return n, err
}

// endpointLabel prefers the matched chi route so path parameters do not
// explode label cardinality.
func endpointLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	switch r.URL.Path {
	case "/", "/version", "/metrics", "/v1/dispatch":
		return r.URL.Path
	case "/health", "/health/live", "/health/ready", "/health/startup":
		return "/health/*"
	default:
		return "/unknown"
	}
}

// RequestMetrics records request count and latency for every served request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		endpoint := endpointLabel(r)
		metrics.RecordHTTPRequest(r.Method, endpoint, rec.status, elapsed)

		if observability.ServerLogger != nil {
			observability.ServerLogger.Debug("HTTP request completed",
				zap.String("method", r.Method),
				zap.String("endpoint", endpoint),
				zap.Int("status", rec.status),
				zap.Duration("duration", elapsed),
				zap.Int64("response_size", rec.written),
				zap.String("request_id", GetRequestID(r.Context())))
		}
	})
}
