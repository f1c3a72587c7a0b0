package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pferrors "github.com/c360/photoflow/errors"
	"github.com/c360/photoflow/event"
)

type recordingPublisher struct {
	published map[string][]byte
	failOn    map[string]error
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{
		published: make(map[string][]byte),
		failOn:    make(map[string]error),
	}
}

func (p *recordingPublisher) PublishToStream(_ context.Context, subject string, data []byte) error {
	if err, ok := p.failOn[subject]; ok {
		return err
	}
	p.published[subject] = data
	return nil
}

func TestRouter_FansOutToAllSubjects(t *testing.T) {
	pub := newRecordingPublisher()
	r := New(pub, []string{event.SubjectProcessing, event.SubjectNotify}, nil, nil)

	env := event.NewEnvelope(event.UploadEvent{Bucket: "images", Key: "a.png", Type: event.TypeCreated})
	require.NoError(t, r.HandleEnvelope(context.Background(), env))

	require.Len(t, pub.published, 2)

	for _, subject := range []string{event.SubjectProcessing, event.SubjectNotify} {
		decoded, err := event.DecodeEnvelope(pub.published[subject])
		require.NoError(t, err)
		assert.Equal(t, env.ID, decoded.ID, "envelope must pass through unchanged")
		require.Len(t, decoded.Events, 1)
		assert.Equal(t, "a.png", decoded.Events[0].Key)
	}
}

func TestRouter_OneFailureDoesNotSuppressOthers(t *testing.T) {
	pub := newRecordingPublisher()
	pub.failOn[event.SubjectProcessing] = errors.New("stream unavailable")
	r := New(pub, []string{event.SubjectProcessing, event.SubjectNotify}, nil, nil)

	env := event.NewEnvelope(event.UploadEvent{Bucket: "images", Key: "a.png", Type: event.TypeCreated})
	err := r.HandleEnvelope(context.Background(), env)

	require.Error(t, err)
	assert.True(t, pferrors.IsTransient(err), "fan-out failures must be retried")
	assert.Contains(t, pub.published, event.SubjectNotify, "healthy subjects still get the envelope")
}

func TestRouter_AllFailuresReported(t *testing.T) {
	pub := newRecordingPublisher()
	pub.failOn[event.SubjectProcessing] = errors.New("processing down")
	pub.failOn[event.SubjectNotify] = errors.New("notify down")
	r := New(pub, []string{event.SubjectProcessing, event.SubjectNotify}, nil, nil)

	env := event.NewEnvelope(event.UploadEvent{Bucket: "images", Key: "a.png", Type: event.TypeCreated})
	err := r.HandleEnvelope(context.Background(), env)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "processing down")
	assert.Contains(t, err.Error(), "notify down")
}
