// Package ingest validates uploaded images. Accepted files flow on to
// the content processor; files with an unaccepted extension are
// deleted from the object store, which emits the removal notification
// that drives the rejection flow.
package ingest

import (
	"context"
	"log/slog"

	"github.com/c360/photoflow/event"
	"github.com/c360/photoflow/metric"
	"github.com/c360/photoflow/objectstore"
)

// Processor consumes the bytes of an accepted image. Content handling
// is an extension point; the pipeline itself only validates.
type Processor interface {
	Process(ctx context.Context, filename string, data []byte) error
}

// NoopProcessor accepts every image without touching its bytes
type NoopProcessor struct{}

// Process implements Processor
func (NoopProcessor) Process(context.Context, string, []byte) error { return nil }

// Validator checks each uploaded object against the accepted extension
// set and disposes of it accordingly.
type Validator struct {
	store     objectstore.Store
	processor Processor
	logger    *slog.Logger
	metrics   *metric.Metrics
}

// New creates a validator. A nil processor defaults to NoopProcessor.
func New(store objectstore.Store, processor Processor, logger *slog.Logger, metrics *metric.Metrics) *Validator {
	if processor == nil {
		processor = NoopProcessor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		store:     store,
		processor: processor,
		logger:    logger,
		metrics:   metrics,
	}
}

// HandleBatch validates one batch of upload events. Items are
// independent and the batch is always acknowledged: a rejected or
// unfetchable item is logged and skipped, never retried here.
func (v *Validator) HandleBatch(ctx context.Context, events []event.UploadEvent) error {
	for _, ev := range events {
		if ev.Type != event.TypeCreated {
			continue
		}
		v.handleOne(ctx, ev)
	}
	return nil
}

func (v *Validator) handleOne(ctx context.Context, ev event.UploadEvent) {
	filename := ev.Filename()

	if !ev.Accepted() {
		v.logger.Info("rejecting upload with unaccepted extension",
			"filename", filename, "extension", ev.Ext())
		if v.metrics != nil {
			v.metrics.RecordImageRejected(ev.Ext())
		}

		// Best effort: the removal notification this triggers drives
		// the rejection flow, and a missing object means someone else
		// already cleaned up.
		if err := v.store.Delete(ctx, ev.Key); err != nil {
			v.logger.Error("failed to delete rejected upload",
				"filename", filename, "error", err)
			if v.metrics != nil {
				v.metrics.RecordError("ingest", "delete")
			}
		}
		return
	}

	data, err := v.store.Get(ctx, ev.Key)
	if err != nil {
		v.logger.Warn("accepted upload could not be fetched, skipping",
			"filename", filename, "error", err)
		if v.metrics != nil {
			v.metrics.RecordError("ingest", "fetch")
		}
		return
	}

	if err := v.processor.Process(ctx, filename, data); err != nil {
		v.logger.Error("content processing failed, skipping",
			"filename", filename, "error", err)
		if v.metrics != nil {
			v.metrics.RecordError("ingest", "process")
		}
		return
	}

	if v.metrics != nil {
		v.metrics.RecordImageAccepted()
	}
	v.logger.Info("image accepted", "filename", filename, "bytes", len(data))
}
