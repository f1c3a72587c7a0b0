// Package router fans upload notifications out to the pipeline's
// queues. Each created-object envelope is republished unchanged to
// every subscriber subject, so the processing queue and the
// notification queue each receive their own durable copy.
package router

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/c360/photoflow/errors"
	"github.com/c360/photoflow/event"
	"github.com/c360/photoflow/metric"
)

// publisher publishes to a JetStream subject.
// natsclient.Client satisfies this.
type publisher interface {
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// Router republishes envelopes to a fixed set of subjects
type Router struct {
	publisher publisher
	subjects  []string
	logger    *slog.Logger
	metrics   *metric.Metrics
}

// New creates a router fanning out to the given subjects
func New(pub publisher, subjects []string, logger *slog.Logger, metrics *metric.Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		publisher: pub,
		subjects:  subjects,
		logger:    logger,
		metrics:   metrics,
	}
}

// HandleEnvelope republishes the envelope to every subscriber subject.
// Every subject gets an attempt even when an earlier one fails; any
// failure is transient so the source message is redelivered and the
// idempotent subscribers absorb the duplicates.
func (r *Router) HandleEnvelope(ctx context.Context, env event.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}

	var errs []error
	for _, subject := range r.subjects {
		if err := r.publisher.PublishToStream(ctx, subject, data); err != nil {
			r.logger.Error("fan-out publish failed",
				"subject", subject, "envelope", env.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		if r.metrics != nil {
			r.metrics.RecordEventPublished("router", subject)
		}
	}

	if len(errs) > 0 {
		return errors.WrapTransient(stderrors.Join(errs...), "Router", "HandleEnvelope", "fan out envelope "+env.ID)
	}

	r.logger.Debug("envelope fanned out", "envelope", env.ID, "events", len(env.Events))
	return nil
}
