// Package objectstore stores image bytes in a NATS object store bucket
// and publishes change notifications to the durable event stream.
//
// Every Put emits a created notification and every effective Delete
// emits a removed notification, so downstream consumers observe the
// bucket through the stream instead of polling it.
package objectstore

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/photoflow/errors"
	"github.com/c360/photoflow/event"
)

// Store is the interface the pipeline uses to read and write image bytes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]string, error)
}

// bucket is the subset of jetstream.ObjectStore the store needs.
// Narrow so tests can fake it.
type bucket interface {
	GetBytes(ctx context.Context, name string, opts ...jetstream.GetObjectOpt) ([]byte, error)
	PutBytes(ctx context.Context, name string, data []byte) (*jetstream.ObjectInfo, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, opts ...jetstream.ListObjectsOpt) ([]*jetstream.ObjectInfo, error)
}

// publisher publishes change notifications to the durable stream.
// natsclient.Client satisfies this.
type publisher interface {
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// NATSStore implements Store over a NATS object store bucket.
type NATSStore struct {
	name      string
	bucket    bucket
	publisher publisher
	logger    *slog.Logger
	timeout   time.Duration
}

// Option configures a NATSStore
type Option func(*NATSStore)

// WithTimeout sets the per-operation timeout
func WithTimeout(d time.Duration) Option {
	return func(s *NATSStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the store's logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *NATSStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewNATSStore creates a store over the given bucket. The publisher
// receives a notification on every successful mutation; pass nil for a
// silent store (tests, backfills).
func NewNATSStore(name string, b bucket, pub publisher, opts ...Option) *NATSStore {
	s := &NATSStore{
		name:      name,
		bucket:    b,
		publisher: pub,
		logger:    slog.Default(),
		timeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get retrieves an object's bytes by key
func (s *NATSStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.bucket.GetBytes(ctx, key)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, errors.ErrObjectNotFound
		}
		return nil, errors.WrapTransient(err, "Store", "Get", "fetch object "+key)
	}
	return data, nil
}

// Put stores an object and publishes a created notification
func (s *NATSStore) Put(ctx context.Context, key string, data []byte) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.bucket.PutBytes(opCtx, key, data); err != nil {
		return errors.WrapTransient(err, "Store", "Put", "store object "+key)
	}

	s.notify(ctx, event.TypeCreated, key, int64(len(data)))
	return nil
}

// Delete removes an object and publishes a removed notification.
// Deleting a missing key is a no-op success and emits nothing.
func (s *NATSStore) Delete(ctx context.Context, key string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.bucket.Delete(opCtx, key); err != nil {
		if stderrors.Is(err, jetstream.ErrObjectNotFound) {
			s.logger.Debug("delete of missing object ignored", "bucket", s.name, "key", key)
			return nil
		}
		return errors.WrapTransient(err, "Store", "Delete", "delete object "+key)
	}

	s.notify(ctx, event.TypeRemoved, key, 0)
	return nil
}

// List returns the keys of all live objects in the bucket
func (s *NATSStore) List(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	infos, err := s.bucket.List(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoObjectsFound) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "Store", "List", "list objects")
	}

	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if info != nil && !info.Deleted {
			keys = append(keys, info.Name)
		}
	}
	return keys, nil
}

// notify publishes a single-event envelope to the objects stream.
// Notification failure is logged, not returned: the mutation already
// happened and callers cannot undo it.
func (s *NATSStore) notify(ctx context.Context, typ event.EventType, key string, size int64) {
	if s.publisher == nil {
		return
	}

	subject := event.SubjectObjectCreated
	if typ == event.TypeRemoved {
		subject = event.SubjectObjectRemoved
	}

	env := event.NewEnvelope(event.UploadEvent{
		Bucket: s.name,
		Key:    key,
		Type:   typ,
		Size:   size,
	})

	data, err := env.Encode()
	if err != nil {
		s.logger.Error("failed to encode change notification",
			"bucket", s.name, "key", key, "error", err)
		return
	}

	if err := s.publisher.PublishToStream(ctx, subject, data); err != nil {
		s.logger.Error("failed to publish change notification",
			"bucket", s.name, "subject", subject, "key", key, "error", err)
	}
}
