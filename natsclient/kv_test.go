package natsclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/photoflow/pkg/retry"
)

func TestIsKVNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrKVKeyNotFound, true},
		{"wrapped sentinel", fmt.Errorf("get: %w", ErrKVKeyNotFound), true},
		{"raw nats message", errors.New("nats: key not found"), true},
		{"nats error code", errors.New("API error 10037"), true},
		{"unrelated", errors.New("timeout"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsKVNotFoundError(tt.err))
		})
	}
}

func TestDefaultKVOptions(t *testing.T) {
	opts := DefaultKVOptions()
	assert.Equal(t, 1024*1024, opts.MaxValueSize)
	assert.NotZero(t, opts.Timeout)
	assert.NotZero(t, opts.Retry.MaxAttempts)
}

// flakyBucket fails operations a configured number of times before
// succeeding. Unimplemented jetstream.KeyValue methods panic if called.
type flakyBucket struct {
	jetstream.KeyValue
	failures int
	err      error

	gets    int
	puts    int
	deletes int
}

type staticEntry struct {
	jetstream.KeyValueEntry
	key   string
	value []byte
}

func (e *staticEntry) Key() string      { return e.key }
func (e *staticEntry) Value() []byte    { return e.value }
func (e *staticEntry) Revision() uint64 { return 7 }

func (b *flakyBucket) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	b.gets++
	if b.gets <= b.failures {
		return nil, b.err
	}
	return &staticEntry{key: key, value: []byte("value")}, nil
}

func (b *flakyBucket) Put(context.Context, string, []byte) (uint64, error) {
	b.puts++
	if b.puts <= b.failures {
		return 0, b.err
	}
	return 7, nil
}

func (b *flakyBucket) Delete(_ context.Context, _ string, _ ...jetstream.KVDeleteOpt) error {
	b.deletes++
	if b.deletes <= b.failures {
		return b.err
	}
	return nil
}

func testKVStore(bucket jetstream.KeyValue) *KVStore {
	opts := DefaultKVOptions()
	opts.Retry = retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
	}
	return &KVStore{bucket: bucket, options: opts}
}

func TestKVStore_PutRetriesTransientFailures(t *testing.T) {
	bucket := &flakyBucket{failures: 2, err: errors.New("jetstream unavailable")}
	kv := testKVStore(bucket)

	rev, err := kv.Put(context.Background(), "photo.png", []byte("entry"))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), rev)
	assert.Equal(t, 3, bucket.puts, "two failures then success")
}

func TestKVStore_PutGivesUpAfterMaxAttempts(t *testing.T) {
	bucket := &flakyBucket{failures: 10, err: errors.New("jetstream unavailable")}
	kv := testKVStore(bucket)

	_, err := kv.Put(context.Background(), "photo.png", []byte("entry"))
	require.Error(t, err)
	assert.Equal(t, 3, bucket.puts)
}

func TestKVStore_GetRetriesTransientFailures(t *testing.T) {
	bucket := &flakyBucket{failures: 1, err: errors.New("jetstream unavailable")}
	kv := testKVStore(bucket)

	entry, err := kv.Get(context.Background(), "photo.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), entry.Value)
	assert.Equal(t, 2, bucket.gets)
}

func TestKVStore_GetMissingKeyDoesNotRetry(t *testing.T) {
	bucket := &flakyBucket{failures: 10, err: errors.New("nats: key not found")}
	kv := testKVStore(bucket)

	_, err := kv.Get(context.Background(), "absent.png")
	require.ErrorIs(t, err, ErrKVKeyNotFound)
	assert.Equal(t, 1, bucket.gets, "a missing key is not a transient failure")
}

func TestKVStore_DeleteMissingKeyDoesNotRetry(t *testing.T) {
	bucket := &flakyBucket{failures: 10, err: errors.New("nats: key not found")}
	kv := testKVStore(bucket)

	err := kv.Delete(context.Background(), "absent.png")
	require.ErrorIs(t, err, ErrKVKeyNotFound)
	assert.Equal(t, 1, bucket.deletes)
}

func TestKVStore_DeleteRetriesTransientFailures(t *testing.T) {
	bucket := &flakyBucket{failures: 1, err: errors.New("jetstream unavailable")}
	kv := testKVStore(bucket)

	require.NoError(t, kv.Delete(context.Background(), "photo.png"))
	assert.Equal(t, 2, bucket.deletes)
}
