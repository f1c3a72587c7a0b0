package natsclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/photoflow/pkg/retry"
)

// KVEntry wraps a KV entry with its revision
type KVEntry struct {
	Key      string
	Value    []byte
	Revision uint64
}

// KVOptions configures KV operations behavior
type KVOptions struct {
	Timeout      time.Duration // Operation timeout
	MaxValueSize int           // Maximum size for values (default: 1MB)
	Retry        retry.Config  // Backoff for transient bucket failures
}

// DefaultKVOptions returns sensible defaults
func DefaultKVOptions() KVOptions {
	return KVOptions{
		Timeout:      5 * time.Second,
		MaxValueSize: 1024 * 1024,
		Retry:        retry.DefaultConfig(),
	}
}

// KVStore provides high-level KV operations over a JetStream bucket.
// Transient bucket failures are retried per the configured backoff.
type KVStore struct {
	bucket  jetstream.KeyValue
	options KVOptions
	logger  Logger
}

// NewKVStore creates a new KV store with the given bucket
func (m *Client) NewKVStore(bucket jetstream.KeyValue, opts ...func(*KVOptions)) *KVStore {
	options := DefaultKVOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &KVStore{
		bucket:  bucket,
		options: options,
		logger:  m.logger,
	}
}

func (kv *KVStore) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if kv.options.Timeout > 0 {
		return context.WithTimeout(ctx, kv.options.Timeout)
	}
	return ctx, func() {} // no-op cancel
}

// Get retrieves a value with its revision. Transient bucket failures
// are retried with backoff; a missing key fails immediately.
func (kv *KVStore) Get(ctx context.Context, key string) (*KVEntry, error) {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	entry, err := retry.DoWithResult(ctx, kv.options.Retry, func() (jetstream.KeyValueEntry, error) {
		e, err := kv.bucket.Get(ctx, key)
		if err != nil && IsKVNotFoundError(err) {
			return nil, retry.NonRetryable(ErrKVKeyNotFound)
		}
		return e, err
	})
	if err != nil {
		if IsKVNotFoundError(err) {
			return nil, ErrKVKeyNotFound
		}
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}

	return &KVEntry{
		Key:      key,
		Value:    entry.Value(),
		Revision: entry.Revision(),
	}, nil
}

// Put creates or updates a key without revision check (last writer wins)
func (kv *KVStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	if kv.options.MaxValueSize > 0 && len(value) > kv.options.MaxValueSize {
		return 0, fmt.Errorf("kv put %s: value size %d exceeds maximum %d",
			key, len(value), kv.options.MaxValueSize)
	}

	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	rev, err := retry.DoWithResult(ctx, kv.options.Retry, func() (uint64, error) {
		return kv.bucket.Put(ctx, key, value)
	})
	if err != nil {
		return 0, fmt.Errorf("kv put %s: %w", key, err)
	}

	if kv.logger != nil {
		kv.logger.Debugf("KV Put: key=%s, revision=%d", key, rev)
	}

	return rev, nil
}

// Delete removes a key from the bucket. Deleting a missing key
// returns ErrKVKeyNotFound; callers needing idempotent removal
// should treat that as success.
func (kv *KVStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	err := retry.Do(ctx, kv.options.Retry, func() error {
		if err := kv.bucket.Delete(ctx, key); err != nil {
			if IsKVNotFoundError(err) {
				return retry.NonRetryable(ErrKVKeyNotFound)
			}
			return err
		}
		return nil
	})
	if err != nil {
		if IsKVNotFoundError(err) {
			return ErrKVKeyNotFound
		}
		return fmt.Errorf("kv delete %s: %w", key, err)
	}

	if kv.logger != nil {
		kv.logger.Debugf("KV Delete: key=%s", key)
	}

	return nil
}

// Keys lists all keys in the bucket
func (kv *KVStore) Keys(ctx context.Context) ([]string, error) {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	keys, err := kv.bucket.Keys(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "no keys found") {
			return nil, nil
		}
		return nil, fmt.Errorf("kv keys: %w", err)
	}
	return keys, nil
}

// IsKVNotFoundError checks if error indicates key not found
func IsKVNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrKVKeyNotFound) {
		return true
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "key not found") ||
		strings.Contains(errMsg, "10037")
}

// Well-known KV errors
var (
	ErrKVKeyNotFound = errors.New("kv: key not found")
)
