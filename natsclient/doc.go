// Package natsclient manages the NATS connection the pipeline runs on.
//
// The Client wraps a single NATS connection with a circuit breaker,
// health monitoring, and helpers for the JetStream resources the
// pipeline uses: streams for durable event delivery, KV buckets for
// the catalog, and object store buckets for image bytes.
//
// Connection failures trip the circuit breaker after a configurable
// threshold. While the circuit is open, operations fail fast with
// ErrCircuitOpen instead of piling up on a dead connection; the
// breaker closes itself after an exponentially growing backoff.
//
// Typical usage:
//
//	client, err := natsclient.NewClient(url,
//		natsclient.WithName("photoflow"),
//		natsclient.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(ctx)
//
// The KVStore type adds timeouts, value size limits, and uniform
// error mapping on top of a raw jetstream.KeyValue bucket.
package natsclient
