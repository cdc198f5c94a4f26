package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/relay/internal/config"
	apperrors "github.com/namelens/relay/internal/errors"
	"github.com/namelens/relay/internal/metrics"
	"github.com/namelens/relay/internal/server/handlers"
	"github.com/namelens/relay/pkg/dispatch"
)

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		IdleTimeout:     5 * time.Second,
		ShutdownTimeout: time.Second,
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.HTTPErrorResponse {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New(testConfig(), Options{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.CodeNotFound, decodeError(t, rec).Error.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/version", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, apperrors.CodeMethodNotAllowed, decodeError(t, rec).Error.Code)
}

func TestDispatchRouteOnlyWithDispatcher(t *testing.T) {
	srv := New(testConfig(), Options{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/dispatch", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := New(testConfig(), Options{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apperrors.CodeServiceUnavailable, decodeError(t, rec).Error.Code)

	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	t.Cleanup(metrics.Reset)

	srv = New(testConfig(), Options{Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})})

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `relay_http_requests_total{endpoint="/version",method="GET",status="200"} 1`)
}

func TestServerStartDispatchAndShutdown(t *testing.T) {
	vendor := chi.NewRouter()
	vendor.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pong":true}`))
	})
	upstream := httptest.NewServer(vendor)
	defer upstream.Close()

	health := handlers.NewHealthManager("test")
	srv := New(testConfig(), Options{
		Dispatcher: dispatch.New(dispatch.WithHTTPClient(upstream.Client(), time.Second)),
		Health:     health,
		Build:      handlers.BuildInfo{Version: "test"},
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	base := "http://" + srv.Addr()

	resp, err := http.Get(base + "/health/startup")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(base+"/v1/dispatch", "application/json",
		strings.NewReader(`{"method":"GET","url":"`+upstream.URL+`/ping"}`))
	require.NoError(t, err)
	var out handlers.DispatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, out.Status)
	assert.JSONEq(t, `{"pong":true}`, string(out.Body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-errCh)
}

func TestShutdownBeforeStart(t *testing.T) {
	srv := New(testConfig(), Options{})
	assert.NoError(t, srv.Shutdown(context.Background()))
	assert.Empty(t, srv.Addr())
}
