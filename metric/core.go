package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not domain-specific)
type Metrics struct {
	// Pipeline metrics
	EventsReceived     *prometheus.CounterVec
	EventsProcessed    *prometheus.CounterVec
	EventsPublished    *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
	HealthCheckStatus  *prometheus.GaugeVec

	// Domain metrics
	ImagesAccepted  prometheus.Counter
	ImagesRejected  *prometheus.CounterVec
	EmailsSent      *prometheus.CounterVec
	EmailsFailed    *prometheus.CounterVec
	InvokeCalls     *prometheus.CounterVec
	InvokeDuration  *prometheus.HistogramVec
	CatalogEntries  prometheus.Gauge
	CatalogFailures *prometheus.CounterVec

	// NATS metrics
	NATSConnected      prometheus.Gauge
	NATSRTT            prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		EventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "photoflow",
				Subsystem: "events",
				Name:      "received_total",
				Help:      "Total number of upload events received",
			},
			[]string{"component", "type"},
		),

		EventsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "photoflow",
				Subsystem: "events",
				Name:      "processed_total",
				Help:      "Total number of upload events processed",
			},
			[]string{"component", "type", "status"},
		),

		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "photoflow",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Total number of events published",
			},
			[]string{"component", "subject"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "photoflow",
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Event processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"component", "operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "photoflow",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "type"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "photoflow",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),

		ImagesAccepted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "photoflow",
				Subsystem: "images",
				Name:      "accepted_total",
				Help:      "Total number of images that passed validation",
			},
		),

		ImagesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "photoflow",
				Subsystem: "images",
				Name:      "rejected_total",
				Help:      "Total number of images rejected by validation",
			},
			[]string{"extension"},
		),

		EmailsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "photoflow",
				Subsystem: "mail",
				Name:      "sent_total",
				Help:      "Total number of notification emails sent",
			},
			[]string{"kind"},
		),

		EmailsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "photoflow",
				Subsystem: "mail",
				Name:      "failed_total",
				Help:      "Total number of notification emails that failed to send",
			},
			[]string{"kind"},
		),

		InvokeCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "photoflow",
				Subsystem: "invoke",
				Name:      "calls_total",
				Help:      "Total number of synchronous function invocations",
			},
			[]string{"function", "status"},
		),

		InvokeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "photoflow",
				Subsystem: "invoke",
				Name:      "duration_seconds",
				Help:      "Synchronous invocation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"function"},
		),

		CatalogEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "photoflow",
				Subsystem: "catalog",
				Name:      "entries",
				Help:      "Current number of catalog entries",
			},
		),

		CatalogFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "photoflow",
				Subsystem: "catalog",
				Name:      "failures_total",
				Help:      "Total number of failed catalog operations",
			},
			[]string{"operation"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "photoflow",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "photoflow",
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "photoflow",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "photoflow",
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open)",
			},
		),
	}
}

// RecordEventReceived increments received event counter
func (c *Metrics) RecordEventReceived(component, eventType string) {
	c.EventsReceived.WithLabelValues(component, eventType).Inc()
}

// RecordEventProcessed increments processed event counter
func (c *Metrics) RecordEventProcessed(component, eventType, status string) {
	c.EventsProcessed.WithLabelValues(component, eventType, status).Inc()
}

// RecordEventPublished increments published event counter
func (c *Metrics) RecordEventPublished(component, subject string) {
	c.EventsPublished.WithLabelValues(component, subject).Inc()
}

// RecordProcessingDuration records processing time
func (c *Metrics) RecordProcessingDuration(component, operation string, duration time.Duration) {
	c.ProcessingDuration.WithLabelValues(component, operation).Observe(duration.Seconds())
}

// RecordError increments error counter
func (c *Metrics) RecordError(component, errorType string) {
	c.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(component).Set(value)
}

// RecordImageAccepted increments the accepted image counter
func (c *Metrics) RecordImageAccepted() {
	c.ImagesAccepted.Inc()
}

// RecordImageRejected increments the rejected image counter
func (c *Metrics) RecordImageRejected(extension string) {
	if extension == "" {
		extension = "none"
	}
	c.ImagesRejected.WithLabelValues(extension).Inc()
}

// RecordEmailSent increments the sent email counter
func (c *Metrics) RecordEmailSent(kind string) {
	c.EmailsSent.WithLabelValues(kind).Inc()
}

// RecordEmailFailed increments the failed email counter
func (c *Metrics) RecordEmailFailed(kind string) {
	c.EmailsFailed.WithLabelValues(kind).Inc()
}

// RecordInvoke records a synchronous invocation and its duration
func (c *Metrics) RecordInvoke(function, status string, duration time.Duration) {
	c.InvokeCalls.WithLabelValues(function, status).Inc()
	c.InvokeDuration.WithLabelValues(function).Observe(duration.Seconds())
}

// RecordCatalogEntries updates the catalog entry gauge
func (c *Metrics) RecordCatalogEntries(n int) {
	c.CatalogEntries.Set(float64(n))
}

// RecordCatalogFailure increments the failed catalog operation counter
func (c *Metrics) RecordCatalogFailure(operation string) {
	c.CatalogFailures.WithLabelValues(operation).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSRTT updates NATS round-trip time
func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	c.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(open bool) {
	value := 0.0
	if open {
		value = 1.0
	}
	c.NATSCircuitBreaker.Set(value)
}
