package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/photoflow/component"
	pferrors "github.com/c360/photoflow/errors"
	"github.com/c360/photoflow/event"
	"github.com/c360/photoflow/testutil"
)

// fakeMsg implements jetstream.Msg for dispatch tests
type fakeMsg struct {
	data   []byte
	acked  bool
	naked  bool
	termed bool
}

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) { return &jetstream.MsgMetadata{}, nil }
func (m *fakeMsg) Data() []byte                              { return m.data }
func (m *fakeMsg) Headers() nats.Header                      { return nil }
func (m *fakeMsg) Subject() string                           { return event.SubjectNotify }
func (m *fakeMsg) Reply() string                             { return "" }
func (m *fakeMsg) Ack() error                                { m.acked = true; return nil }
func (m *fakeMsg) DoubleAck(context.Context) error           { m.acked = true; return nil }
func (m *fakeMsg) Nak() error                                { m.naked = true; return nil }
func (m *fakeMsg) NakWithDelay(time.Duration) error          { m.naked = true; return nil }
func (m *fakeMsg) InProgress() error                         { return nil }
func (m *fakeMsg) Term() error                               { m.termed = true; return nil }
func (m *fakeMsg) TermWithReason(string) error               { m.termed = true; return nil }

func newTestConsumer(handler EnvelopeHandler) *Consumer {
	return New(Config{Name: "test-consumer", Stream: "NOTIFY"}, handler, component.Dependencies{})
}

func TestDispatch_SuccessAcks(t *testing.T) {
	var handled int
	c := newTestConsumer(func(_ context.Context, env event.Envelope) error {
		handled = len(env.Events)
		return nil
	})

	msg := &fakeMsg{data: testutil.CreatedEnvelope("images", "a.png")}
	c.dispatch(context.Background(), msg)

	assert.True(t, msg.acked)
	assert.False(t, msg.naked)
	assert.False(t, msg.termed)
	assert.Equal(t, 1, handled)
}

func TestDispatch_TransientFailureNaks(t *testing.T) {
	c := newTestConsumer(func(context.Context, event.Envelope) error {
		return pferrors.WrapTransient(errors.New("kv unavailable"), "test", "handle", "write")
	})

	msg := &fakeMsg{data: testutil.RemovedEnvelope("images", "a.png")}
	c.dispatch(context.Background(), msg)

	assert.True(t, msg.naked, "transient failures must be redelivered")
	assert.False(t, msg.acked)
	assert.False(t, msg.termed)
}

func TestDispatch_InvalidFailureTerminates(t *testing.T) {
	c := newTestConsumer(func(context.Context, event.Envelope) error {
		return pferrors.WrapInvalid(errors.New("bad payload"), "test", "handle", "decode")
	})

	msg := &fakeMsg{data: testutil.CreatedEnvelope("images", "a.png")}
	c.dispatch(context.Background(), msg)

	assert.True(t, msg.termed, "invalid envelopes must never be redelivered")
	assert.False(t, msg.naked)
	assert.False(t, msg.acked)
}

func TestDispatch_UndecodableMessageTerminates(t *testing.T) {
	var called bool
	c := newTestConsumer(func(context.Context, event.Envelope) error {
		called = true
		return nil
	})

	msg := &fakeMsg{data: []byte("not json")}
	c.dispatch(context.Background(), msg)

	assert.True(t, msg.termed)
	assert.False(t, called, "handler never sees an undecodable message")
}

func TestNewBatch_HandlerReceivesAllEvents(t *testing.T) {
	var got []event.UploadEvent
	c := NewBatch(Config{Name: "batch", Stream: "NOTIFY"},
		func(_ context.Context, events []event.UploadEvent) error {
			got = events
			return nil
		}, component.Dependencies{})

	msg := &fakeMsg{data: testutil.CreatedEnvelope("images", "a.png", "b.jpg")}
	c.dispatch(context.Background(), msg)

	require.Len(t, got, 2)
	assert.True(t, msg.acked)
}

func TestNewPerEvent_FirstFailureNaksEnvelope(t *testing.T) {
	var seen []string
	c := NewPerEvent(Config{Name: "per-event", Stream: "NOTIFY"},
		func(_ context.Context, ev event.UploadEvent) error {
			seen = append(seen, ev.Key)
			if ev.Key == "b.jpg" {
				return pferrors.WrapTransient(errors.New("down"), "test", "handle", "invoke")
			}
			return nil
		}, component.Dependencies{})

	msg := &fakeMsg{data: testutil.CreatedEnvelope("images", "a.png", "b.jpg", "c.png")}
	c.dispatch(context.Background(), msg)

	assert.Equal(t, []string{"a.png", "b.jpg"}, seen, "processing stops at the first failure")
	assert.True(t, msg.naked)
}

func TestConsumer_InitializeValidation(t *testing.T) {
	handler := func(context.Context, event.Envelope) error { return nil }

	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty name", Config{Stream: "NOTIFY"}},
		{"empty stream", Config{Name: "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.cfg, handler, component.Dependencies{})
			err := c.Initialize()
			require.Error(t, err)
			assert.True(t, pferrors.IsInvalid(err))
		})
	}

	t.Run("nil handler", func(t *testing.T) {
		c := New(Config{Name: "c", Stream: "NOTIFY"}, nil, component.Dependencies{})
		assert.Error(t, c.Initialize())
	})

	t.Run("nil nats client", func(t *testing.T) {
		c := New(Config{Name: "c", Stream: "NOTIFY"}, handler, component.Dependencies{})
		assert.Error(t, c.Initialize())
	})
}

func TestConsumer_ConfigDefaults(t *testing.T) {
	c := New(Config{Name: "c", Stream: "NOTIFY"},
		func(context.Context, event.Envelope) error { return nil }, component.Dependencies{})

	assert.Equal(t, event.MaxBatchEvents, c.cfg.BatchSize)
	assert.Equal(t, 5*time.Second, c.cfg.BatchWait)
	assert.Equal(t, 30*time.Second, c.cfg.AckWait)
	assert.Equal(t, 15*time.Second, c.cfg.ItemTimeout)
}

func TestConsumer_Meta(t *testing.T) {
	c := newTestConsumer(func(context.Context, event.Envelope) error { return nil })
	meta := c.Meta()
	assert.Equal(t, "test-consumer", meta.Name)
	assert.Equal(t, "consumer", meta.Type)
}

func TestConsumer_StopBeforeStartIsNoop(t *testing.T) {
	c := newTestConsumer(func(context.Context, event.Envelope) error { return nil })
	assert.NoError(t, c.Stop(time.Second))
}
