// Package metric exposes Prometheus instrumentation for the pipeline:
// event flow counters, image validation outcomes, email delivery,
// synchronous invocation latency, catalog state, and NATS connection
// health. The Registry owns a dedicated Prometheus registry so tests
// never collide with the global default, and Server serves the
// /metrics scrape endpoint.
package metric
