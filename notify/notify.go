// Package notify runs the pipeline's two notification flows. The
// success flow emails the uploader about each accepted image and then
// invokes the catalog writer. The rejection flow emails about a
// removed object and then invokes the catalog remover, waiting for
// the remover's reply before letting its event be acknowledged.
package notify

import (
	"context"
	"log/slog"

	"github.com/c360/photoflow/event"
	"github.com/c360/photoflow/invoke"
	"github.com/c360/photoflow/mailer"
	"github.com/c360/photoflow/metric"
)

// invoker calls a named function and waits for its outcome.
// invoke.Client satisfies this.
type invoker interface {
	Invoke(ctx context.Context, function string, ev event.UploadEvent) error
}

// Addresses are the sender and recipient for notification emails
type Addresses struct {
	From string
	To   string
}

// SuccessNotifier handles accepted-image notifications
type SuccessNotifier struct {
	mailer  mailer.Mailer
	invoker invoker
	addrs   Addresses
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewSuccessNotifier creates the acceptance notification handler.
// A nil mailer disables email and only the catalog invocation runs.
func NewSuccessNotifier(m mailer.Mailer, inv invoker, addrs Addresses, logger *slog.Logger, metrics *metric.Metrics) *SuccessNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SuccessNotifier{
		mailer:  m,
		invoker: inv,
		addrs:   addrs,
		logger:  logger,
		metrics: metrics,
	}
}

// HandleBatch processes one batch of accepted images. Items are
// independent: a failed email or catalog write for one image never
// blocks the rest, and the batch is always acknowledged. The catalog
// writer is idempotent, so items that failed here are safe to submit
// again on a later upload of the same image.
func (n *SuccessNotifier) HandleBatch(ctx context.Context, events []event.UploadEvent) error {
	for _, ev := range events {
		n.handleOne(ctx, ev)
	}
	return nil
}

func (n *SuccessNotifier) handleOne(ctx context.Context, ev event.UploadEvent) {
	filename := ev.Filename()

	if n.mailer != nil {
		msg, err := mailer.AcceptanceMessage(n.addrs.From, n.addrs.To, filename)
		if err != nil {
			n.logger.Error("acceptance email build failed", "filename", filename, "error", err)
		} else if err := n.mailer.Send(ctx, msg); err != nil {
			n.logger.Error("acceptance email failed", "filename", filename, "error", err)
			if n.metrics != nil {
				n.metrics.RecordEmailFailed("acceptance")
			}
			return
		} else {
			if n.metrics != nil {
				n.metrics.RecordEmailSent("acceptance")
			}
			n.logger.Info("acceptance email sent", "filename", filename, "to", n.addrs.To)
		}
	}

	if err := n.invoker.Invoke(ctx, invoke.FunctionCatalogWriter, ev); err != nil {
		n.logger.Error("catalog writer invocation failed", "filename", filename, "error", err)
		if n.metrics != nil {
			n.metrics.RecordEventProcessed("success-notifier", string(ev.Type), "error")
		}
		return
	}

	if n.metrics != nil {
		n.metrics.RecordEventProcessed("success-notifier", string(ev.Type), "success")
	}
}

// RejectionNotifier handles removed-object notifications
type RejectionNotifier struct {
	mailer  mailer.Mailer
	invoker invoker
	addrs   Addresses
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewRejectionNotifier creates the removal notification handler
func NewRejectionNotifier(m mailer.Mailer, inv invoker, addrs Addresses, logger *slog.Logger, metrics *metric.Metrics) *RejectionNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RejectionNotifier{
		mailer:  m,
		invoker: inv,
		addrs:   addrs,
		logger:  logger,
		metrics: metrics,
	}
}

// HandleRemoved notifies about a removed object and then invokes the
// catalog remover, waiting for its reply. The email is best effort:
// a delivery failure is logged and the removal still proceeds. The
// invocation outcome is the handler outcome, so a failed or timed-out
// removal leaves the event unacknowledged for redelivery.
func (n *RejectionNotifier) HandleRemoved(ctx context.Context, ev event.UploadEvent) error {
	filename := ev.Filename()

	if n.mailer != nil {
		msg, err := mailer.RejectionMessage(n.addrs.From, n.addrs.To, filename)
		if err != nil {
			n.logger.Error("rejection email build failed", "filename", filename, "error", err)
		} else if err := n.mailer.Send(ctx, msg); err != nil {
			n.logger.Error("rejection email failed", "filename", filename, "error", err)
			if n.metrics != nil {
				n.metrics.RecordEmailFailed("rejection")
			}
		} else {
			if n.metrics != nil {
				n.metrics.RecordEmailSent("rejection")
			}
			n.logger.Info("rejection email sent", "filename", filename, "to", n.addrs.To)
		}
	}

	if err := n.invoker.Invoke(ctx, invoke.FunctionCatalogRemover, ev); err != nil {
		if n.metrics != nil {
			n.metrics.RecordEventProcessed("rejection-notifier", string(ev.Type), "error")
		}
		return err
	}

	if n.metrics != nil {
		n.metrics.RecordEventProcessed("rejection-notifier", string(ev.Type), "success")
	}
	n.logger.Info("catalog removal confirmed", "filename", filename)
	return nil
}
