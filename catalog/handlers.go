package catalog

import (
	"context"
	"log/slog"

	"github.com/c360/photoflow/event"
	"github.com/c360/photoflow/metric"
)

// Writer adds catalog entries for accepted images. It is registered
// as the catalog-writer invocation target.
type Writer struct {
	store   *Store
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewWriter creates a catalog writer
func NewWriter(store *Store, logger *slog.Logger, metrics *metric.Metrics) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, logger: logger, metrics: metrics}
}

// HandleCreated records an accepted upload in the catalog. Safe to
// call repeatedly for the same event.
func (w *Writer) HandleCreated(ctx context.Context, ev event.UploadEvent) error {
	entry := Entry{
		Filename:    ev.Filename(),
		Description: PlaceholderDescription,
		Bucket:      ev.Bucket,
		Size:        ev.Size,
	}

	if err := w.store.Put(ctx, entry); err != nil {
		if w.metrics != nil {
			w.metrics.RecordCatalogFailure("put")
		}
		return err
	}

	w.logger.Info("image added to catalog", "filename", entry.Filename)
	return nil
}

// Remover deletes catalog entries for removed images. It is registered
// as the catalog-remover invocation target.
type Remover struct {
	store   *Store
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewRemover creates a catalog remover
func NewRemover(store *Store, logger *slog.Logger, metrics *metric.Metrics) *Remover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Remover{store: store, logger: logger, metrics: metrics}
}

// HandleRemoved drops the catalog entry for a removed object.
// Idempotent: removing an entry that never existed or was already
// removed succeeds, so redelivered removal events converge.
func (r *Remover) HandleRemoved(ctx context.Context, ev event.UploadEvent) error {
	filename := ev.Filename()

	if err := r.store.Delete(ctx, filename); err != nil {
		if r.metrics != nil {
			r.metrics.RecordCatalogFailure("delete")
		}
		return err
	}

	r.logger.Info("image removed from catalog", "filename", filename)
	return nil
}
