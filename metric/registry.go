package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry manages the Prometheus registry and core pipeline metrics
type Registry struct {
	prometheusRegistry *prometheus.Registry
	metrics            *Metrics
}

// NewRegistry creates a registry with core metrics and Go runtime
// collectors pre-registered
func NewRegistry() *Registry {
	prometheusRegistry := prometheus.NewRegistry()

	r := &Registry{
		prometheusRegistry: prometheusRegistry,
		metrics:            NewMetrics(),
	}

	prometheusRegistry.MustRegister(
		r.metrics.EventsReceived,
		r.metrics.EventsProcessed,
		r.metrics.EventsPublished,
		r.metrics.ProcessingDuration,
		r.metrics.ErrorsTotal,
		r.metrics.HealthCheckStatus,
		r.metrics.ImagesAccepted,
		r.metrics.ImagesRejected,
		r.metrics.EmailsSent,
		r.metrics.EmailsFailed,
		r.metrics.InvokeCalls,
		r.metrics.InvokeDuration,
		r.metrics.CatalogEntries,
		r.metrics.CatalogFailures,
		r.metrics.NATSConnected,
		r.metrics.NATSRTT,
		r.metrics.NATSReconnects,
		r.metrics.NATSCircuitBreaker,
	)

	prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the core pipeline metrics
func (r *Registry) CoreMetrics() *Metrics {
	return r.metrics
}
