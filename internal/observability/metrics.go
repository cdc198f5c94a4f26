package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process-wide Prometheus registry. It is nil until
// InitMetrics runs, which keeps one-shot commands free of collectors.
var Registry *prometheus.Registry

// InitMetrics creates the registry with Go runtime and process collectors.
// Calling it again returns the existing registry.
func InitMetrics() *prometheus.Registry {
	if Registry != nil {
		return Registry
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	Registry = reg
	return reg
}

// MetricsHandler serves the registry in Prometheus exposition format. It
// returns nil when metrics are not initialized.
func MetricsHandler() http.Handler {
	if Registry == nil {
		return nil
	}
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
