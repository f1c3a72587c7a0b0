// Package photoflow is an event-driven image ingestion pipeline built on NATS.
//
// Uploaded image objects flow through a fan-out/fan-in choreography:
//
//	┌──────────────┐  created   ┌──────────────┐
//	│ Object Store ├───────────→│ Event Router │
//	└──────┬───────┘            └──────┬───────┘
//	       │                           │ fan-out
//	       │                ┌──────────┴──────────┐
//	       │                ↓                     ↓
//	       │        processing queue      notification queue
//	       │                ↓                     ↓
//	       │         ┌────────────┐       ┌─────────────────┐
//	       │         │  Ingest    │       │ Success Notifier│
//	       │         │ Validator  │       │   (mailer)      │
//	       │         └────────────┘       └────────┬────────┘
//	       │                                       │ invoke
//	       │                                       ↓
//	       │ removed                       ┌───────────────┐
//	       │                               │ Catalog Writer│
//	       ↓                               └───────────────┘
//	┌───────────────────┐   invoke    ┌────────────────┐
//	│ Rejection Notifier├────────────→│ Catalog Remover│
//	└───────────────────┘  (waits)    └────────────────┘
//
// NATS provides every collaborator contract: JetStream streams are the
// durable at-least-once queues, a KV bucket is the catalog store, an
// object-store bucket holds the uploaded images, and core request/reply
// is the synchronous cross-component invocation used by the
// compensating-action flow.
//
// Correctness does not depend on ordering or exactly-once delivery.
// Every catalog mutation is a last-writer-wins upsert or an idempotent
// delete keyed by filename, so the pipeline converges under duplicate
// and reordered delivery.
//
// # Packages
//
//   - event: UploadEvent data model and validated envelope decoding
//   - errors: error classification (transient/invalid/fatal)
//   - natsclient: NATS connection management, JetStream, KV
//   - objectstore: object-store boundary with created/removed notifications
//   - router: fan-out of upload-created events to subscriber queues
//   - queue: JetStream batch consumers (≤5 envelopes, ≤5s window)
//   - ingest: file-type validation and pluggable content processing
//   - catalog: catalog store, writer and remover handlers
//   - invoke: synchronous request/reply invocation between components
//   - mailer: mail boundary and message templates
//   - notify: success and rejection notifiers
//   - metric, health, config, pkg/retry, pkg/worker: infrastructure
package photoflow
