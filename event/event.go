// Package event defines the wire types that flow through the pipeline:
// upload events describing object store changes, the batched envelope
// they travel in, and the notification shape consumed downstream.
package event

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360/photoflow/errors"
)

// EventType identifies what happened to an object in the store.
type EventType string

const (
	// TypeCreated marks an object that was written to the store.
	TypeCreated EventType = "created"
	// TypeRemoved marks an object that was deleted from the store.
	TypeRemoved EventType = "removed"
)

// MaxBatchEvents caps how many events a single envelope may carry.
const MaxBatchEvents = 5

// Subjects for the pipeline's event flow.
const (
	SubjectObjectCreated = "photoflow.objects.created"
	SubjectObjectRemoved = "photoflow.objects.removed"
	SubjectProcessing    = "photoflow.processing"
	SubjectNotify        = "photoflow.notify"
)

// AcceptedExtensions lists the image extensions the pipeline accepts,
// lowercase and without the leading dot.
var AcceptedExtensions = map[string]bool{
	"jpeg": true,
	"jpg":  true,
	"png":  true,
}

// UploadEvent describes a single object store change.
type UploadEvent struct {
	Bucket string    `json:"bucket"`
	Key    string    `json:"key"`
	Type   EventType `json:"type"`
	Size   int64     `json:"size,omitempty"`
}

// Filename returns the human-readable name for the object key.
// Keys arrive URL-encoded with spaces as plus signs; decoding restores
// the name the uploader chose. An undecodable key is returned as-is so
// a mangled name never blocks the pipeline.
func (e UploadEvent) Filename() string {
	decoded, err := url.QueryUnescape(e.Key)
	if err != nil {
		return e.Key
	}
	return decoded
}

// Ext returns the lowercase file extension of the decoded filename,
// without the leading dot. Empty when the name has no extension.
func (e UploadEvent) Ext() string {
	ext := path.Ext(e.Filename())
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Accepted reports whether the event's extension is an accepted image type.
func (e UploadEvent) Accepted() bool {
	return AcceptedExtensions[e.Ext()]
}

// Envelope batches upload events for transport through the streams.
// Consumers must treat each contained event independently.
type Envelope struct {
	ID          string        `json:"id"`
	PublishedAt time.Time     `json:"published_at"`
	Events      []UploadEvent `json:"events"`
}

// NewEnvelope wraps events in a fresh envelope with a unique ID.
func NewEnvelope(events ...UploadEvent) Envelope {
	return Envelope{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
		Events:      events,
	}
}

// Encode serializes the envelope for publication.
func (env Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Envelope", "Encode", "marshal")
	}
	return data, nil
}

// DecodeEnvelope parses and validates an envelope from message bytes.
// All failures are invalid-class: a payload that cannot be decoded now
// will never decode, so redelivery is pointless.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, errors.WrapInvalid(err, "Envelope", "Decode", "unmarshal")
	}
	if len(env.Events) == 0 {
		return Envelope{}, errors.WrapInvalid(errors.ErrMalformedEnvelope, "Envelope", "Decode", "empty event list")
	}
	if len(env.Events) > MaxBatchEvents {
		return Envelope{}, errors.WrapInvalid(errors.ErrMalformedEnvelope, "Envelope", "Decode", "oversized batch")
	}
	for i, ev := range env.Events {
		if ev.Key == "" {
			return Envelope{}, errors.WrapInvalid(errors.ErrMalformedEnvelope, "Envelope", "Decode", fmt.Sprintf("event %d missing key", i))
		}
		if ev.Type != TypeCreated && ev.Type != TypeRemoved {
			return Envelope{}, errors.WrapInvalid(errors.ErrMalformedEnvelope, "Envelope", "Decode", fmt.Sprintf("event %d unknown type %q", i, ev.Type))
		}
	}
	return env, nil
}
