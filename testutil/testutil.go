// Package testutil provides in-memory doubles for the pipeline's
// boundaries: object store, mailer, and the invoke client. All doubles
// are safe for concurrent use.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/c360/photoflow/errors"
	"github.com/c360/photoflow/event"
	"github.com/c360/photoflow/mailer"
)

// MemoryObjectStore is an in-memory objectstore.Store double
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	deleted []string

	// GetErr and DeleteErr, when set, fail the corresponding operation
	GetErr    error
	DeleteErr error
}

// NewMemoryObjectStore creates an empty in-memory object store
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string][]byte)}
}

// Get returns stored bytes or errors.ErrObjectNotFound
func (s *MemoryObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.ErrObjectNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put stores bytes under the key
func (s *MemoryObjectStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

// Delete removes the key. Missing keys are a no-op success, matching
// the real store.
func (s *MemoryObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	if _, ok := s.objects[key]; ok {
		delete(s.objects, key)
		s.deleted = append(s.deleted, key)
	}
	return nil
}

// List returns all stored keys
func (s *MemoryObjectStore) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys, nil
}

// Deleted returns the keys removed so far, in deletion order
func (s *MemoryObjectStore) Deleted() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.deleted))
	copy(out, s.deleted)
	return out
}

// RecordingMailer is a mailer.Mailer double that records every message
type RecordingMailer struct {
	mu       sync.Mutex
	messages []mailer.Message

	// SendErr, when set, fails every Send
	SendErr error
}

// Send records the message or returns SendErr
func (m *RecordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendErr != nil {
		return m.SendErr
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns all recorded messages in send order
func (m *RecordingMailer) Messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mailer.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Invocation is one recorded invoke call
type Invocation struct {
	Function string
	Event    event.UploadEvent
}

// MockInvoker records invoke calls and fails the functions listed in
// FailFunctions.
type MockInvoker struct {
	mu          sync.Mutex
	invocations []Invocation

	FailFunctions map[string]error
}

// Invoke records the call and returns the configured error, if any
func (i *MockInvoker) Invoke(_ context.Context, function string, ev event.UploadEvent) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.invocations = append(i.invocations, Invocation{Function: function, Event: ev})
	if err, ok := i.FailFunctions[function]; ok {
		return err
	}
	return nil
}

// Invocations returns all recorded calls in order
func (i *MockInvoker) Invocations() []Invocation {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Invocation, len(i.invocations))
	copy(out, i.invocations)
	return out
}

// CreatedEvent builds an upload-created event for the key
func CreatedEvent(bucket, key string) event.UploadEvent {
	return event.UploadEvent{Bucket: bucket, Key: key, Type: event.TypeCreated}
}

// RemovedEvent builds an upload-removed event for the key
func RemovedEvent(bucket, key string) event.UploadEvent {
	return event.UploadEvent{Bucket: bucket, Key: key, Type: event.TypeRemoved}
}

// CreatedEnvelope builds an encoded envelope of created events, one
// per key.
func CreatedEnvelope(bucket string, keys ...string) []byte {
	events := make([]event.UploadEvent, 0, len(keys))
	for _, key := range keys {
		events = append(events, CreatedEvent(bucket, key))
	}
	data, err := event.NewEnvelope(events...).Encode()
	if err != nil {
		panic(fmt.Sprintf("testutil: encode envelope: %v", err))
	}
	return data
}

// RemovedEnvelope builds an encoded single-event removal envelope
func RemovedEnvelope(bucket, key string) []byte {
	data, err := event.NewEnvelope(RemovedEvent(bucket, key)).Encode()
	if err != nil {
		panic(fmt.Sprintf("testutil: encode envelope: %v", err))
	}
	return data
}

// WaitFor polls the condition until it holds or the timeout passes
func WaitFor(t testing.TB, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for condition: %s", msg)
}
