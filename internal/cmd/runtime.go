package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/namelens/relay/internal/config"
	"github.com/namelens/relay/internal/metrics"
	"github.com/namelens/relay/internal/observability"
	"github.com/namelens/relay/pkg/dispatch"
)

var metricsOnce sync.Once

// enableMetrics registers relay collectors on the process registry once.
func enableMetrics() *prometheus.Registry {
	reg := observability.InitMetrics()
	metricsOnce.Do(func() {
		metrics.Register(reg)
	})
	return reg
}

func loadedConfig() (*config.Config, error) {
	cfg := config.GetConfig()
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}
	return cfg, nil
}

// newDispatcher builds a dispatcher from the dispatch section. connector
// labels the dispatch metrics.
func newDispatcher(cfg *config.Config, connector string) (*dispatch.Dispatcher, error) {
	logger, err := observability.NewDispatchLogger(appName, cfg.Logging.Level, verbose)
	if err != nil {
		return nil, err
	}

	opts := []dispatch.Option{dispatch.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		enableMetrics()
		opts = append(opts, dispatch.WithObserver(metrics.NewDispatchObserver(connector)))
	}
	return dispatch.NewFromConfig(cfg.Dispatch.Runtime(), opts...)
}

// parseHeaders turns "Key: Value" flags into a header set.
func parseHeaders(values []string) (http.Header, error) {
	header := make(http.Header, len(values))
	for _, raw := range values {
		key, value, ok := strings.Cut(raw, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Key: Value\"", raw)
		}
		header.Add(key, strings.TrimSpace(value))
	}
	return header, nil
}
