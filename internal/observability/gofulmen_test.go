package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/namelens/relay/internal/observability"
)

func TestGofulmenLoggers(t *testing.T) {
	t.Run("CLI logger creation", func(t *testing.T) {
		observability.InitCLILogger("relay-test", false)
		require.NotNil(t, observability.CLILogger)

		observability.CLILogger.Info("Test CLI log message", zap.String("test", "value"))
	})

	t.Run("Structured logger creation", func(t *testing.T) {
		observability.InitServerLogger("relay-test", "debug")
		require.NotNil(t, observability.ServerLogger)

		observability.ServerLogger.Info("Test structured log message",
			zap.String("component", "test"),
			zap.Int("attempts", 2))
	})

	t.Run("Logger with verbose mode", func(t *testing.T) {
		logger, err := logging.NewCLI("verbose-test")
		require.NoError(t, err)

		logger.SetLevel(logging.DEBUG)
		logger.Debug("Debug message", zap.String("mode", "verbose"))
	})
}

func TestNewDispatchLogger(t *testing.T) {
	logger, err := observability.NewDispatchLogger("relay", "warn", false)
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = observability.NewDispatchLogger("relay", "info", true)
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = observability.NewDispatchLogger("relay", "trace", false)
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = observability.NewDispatchLogger("relay", "loud", false)
	require.Error(t, err)
}

func TestInitMetricsServesRuntimeCollectors(t *testing.T) {
	reg := observability.InitMetrics()
	require.NotNil(t, reg)
	require.Same(t, reg, observability.InitMetrics())

	handler := observability.MetricsHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestEmbeddedCrucibleVersion(t *testing.T) {
	version := crucible.GetVersion()
	require.NotEmpty(t, version.Gofulmen)
	require.NotEmpty(t, version.Crucible)
}
