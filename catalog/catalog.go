// Package catalog maintains the searchable index of accepted images.
//
// Entries are keyed by decoded filename in a NATS KV bucket. Both
// writes and removals are idempotent so the notification flow can
// redeliver events without corrupting the index: a repeated write
// converges on the same entry, and removing an absent entry succeeds.
package catalog

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/c360/photoflow/errors"
	"github.com/c360/photoflow/natsclient"
)

// PlaceholderDescription is the description given to new entries until
// a richer enrichment step fills it in.
const PlaceholderDescription = "Placeholder description"

// Entry is one catalog record
type Entry struct {
	Filename    string    `json:"filename"`
	Description string    `json:"description"`
	Bucket      string    `json:"bucket,omitempty"`
	Size        int64     `json:"size,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

// kv is the subset of natsclient.KVStore the catalog needs.
// Narrow so tests can fake it.
type kv interface {
	Get(ctx context.Context, key string) (*natsclient.KVEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Store reads and writes catalog entries
type Store struct {
	kv     kv
	logger *slog.Logger
}

// NewStore creates a catalog store over a KV bucket
func NewStore(kvStore kv, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kvStore, logger: logger}
}

// Put upserts an entry keyed by its filename. Last writer wins; a
// repeated put for the same filename converges on one entry.
func (s *Store) Put(ctx context.Context, entry Entry) error {
	if entry.Filename == "" {
		return errors.WrapInvalid(
			stderrors.New("entry filename is empty"),
			"Store", "Put", "validate entry")
	}
	if entry.Description == "" {
		entry.Description = PlaceholderDescription
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return errors.WrapInvalid(err, "Store", "Put", "marshal entry")
	}

	if _, err := s.kv.Put(ctx, entry.Filename, data); err != nil {
		return errors.WrapTransient(err, "Store", "Put", "write entry "+entry.Filename)
	}

	s.logger.Debug("catalog entry written", "filename", entry.Filename)
	return nil
}

// Get retrieves an entry by filename
func (s *Store) Get(ctx context.Context, filename string) (Entry, error) {
	kvEntry, err := s.kv.Get(ctx, filename)
	if err != nil {
		if stderrors.Is(err, natsclient.ErrKVKeyNotFound) {
			return Entry{}, errors.ErrEntryNotFound
		}
		return Entry{}, errors.WrapTransient(err, "Store", "Get", "read entry "+filename)
	}

	var entry Entry
	if err := json.Unmarshal(kvEntry.Value, &entry); err != nil {
		return Entry{}, errors.WrapInvalid(err, "Store", "Get", "unmarshal entry "+filename)
	}
	return entry, nil
}

// Delete removes an entry by filename. Removing an absent entry is a
// success: the catalog already reflects the desired state.
func (s *Store) Delete(ctx context.Context, filename string) error {
	err := s.kv.Delete(ctx, filename)
	if err != nil {
		if stderrors.Is(err, natsclient.ErrKVKeyNotFound) {
			s.logger.Debug("catalog entry already absent", "filename", filename)
			return nil
		}
		return errors.WrapTransient(err, "Store", "Delete", "remove entry "+filename)
	}

	s.logger.Debug("catalog entry removed", "filename", filename)
	return nil
}

// List returns all catalog filenames
func (s *Store) List(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "List", "list entries")
	}
	return keys, nil
}
