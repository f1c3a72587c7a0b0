package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/photoflow/event"
	"github.com/c360/photoflow/testutil"
)

type recordingProcessor struct {
	filenames []string
	err       error
}

func (p *recordingProcessor) Process(_ context.Context, filename string, _ []byte) error {
	if p.err != nil {
		return p.err
	}
	p.filenames = append(p.filenames, filename)
	return nil
}

func seededStore(t *testing.T, keys ...string) *testutil.MemoryObjectStore {
	t.Helper()
	store := testutil.NewMemoryObjectStore()
	for _, key := range keys {
		require.NoError(t, store.Put(context.Background(), key, []byte("bytes")))
	}
	return store
}

func created(key string) event.UploadEvent {
	return testutil.CreatedEvent("images", key)
}

func TestValidator_AcceptedImageReachesProcessor(t *testing.T) {
	store := seededStore(t, "my+photo.png")
	proc := &recordingProcessor{}
	v := New(store, proc, nil, nil)

	require.NoError(t, v.HandleBatch(context.Background(), []event.UploadEvent{created("my+photo.png")}))

	assert.Equal(t, []string{"my photo.png"}, proc.filenames, "processor sees the decoded filename")
	assert.Empty(t, store.Deleted())
}

func TestValidator_UnacceptedExtensionIsDeleted(t *testing.T) {
	store := seededStore(t, "movie.mp4")
	proc := &recordingProcessor{}
	v := New(store, proc, nil, nil)

	require.NoError(t, v.HandleBatch(context.Background(), []event.UploadEvent{created("movie.mp4")}))

	assert.Equal(t, []string{"movie.mp4"}, store.Deleted())
	assert.Empty(t, proc.filenames, "rejected uploads are never processed")
}

func TestValidator_NoExtensionIsRejected(t *testing.T) {
	store := seededStore(t, "README")
	v := New(store, nil, nil, nil)

	require.NoError(t, v.HandleBatch(context.Background(), []event.UploadEvent{created("README")}))
	assert.Equal(t, []string{"README"}, store.Deleted())
}

func TestValidator_DeleteFailureDoesNotFailBatch(t *testing.T) {
	store := seededStore(t, "ok.png")
	store.DeleteErr = errors.New("bucket unavailable")
	proc := &recordingProcessor{}
	v := New(store, proc, nil, nil)

	events := []event.UploadEvent{created("movie.mp4"), created("ok.png")}

	require.NoError(t, v.HandleBatch(context.Background(), events),
		"a failed cleanup never blocks the rest of the batch")
	assert.Equal(t, []string{"ok.png"}, proc.filenames)
}

func TestValidator_FetchFailureSkipsItem(t *testing.T) {
	store := testutil.NewMemoryObjectStore()
	store.GetErr = errors.New("object store down")
	proc := &recordingProcessor{}
	v := New(store, proc, nil, nil)

	require.NoError(t, v.HandleBatch(context.Background(), []event.UploadEvent{created("a.png")}))
	assert.Empty(t, proc.filenames)
}

func TestValidator_ProcessorFailureSkipsItem(t *testing.T) {
	store := seededStore(t, "a.png", "b.jpg")
	proc := &recordingProcessor{err: errors.New("corrupt image")}
	v := New(store, proc, nil, nil)

	require.NoError(t, v.HandleBatch(context.Background(),
		[]event.UploadEvent{created("a.png"), created("b.jpg")}))
	assert.Empty(t, proc.filenames)
	assert.Empty(t, store.Deleted(), "processing failures do not delete the object")
}

func TestValidator_RemovedEventsIgnored(t *testing.T) {
	store := testutil.NewMemoryObjectStore()
	proc := &recordingProcessor{}
	v := New(store, proc, nil, nil)

	events := []event.UploadEvent{testutil.RemovedEvent("images", "a.png")}
	require.NoError(t, v.HandleBatch(context.Background(), events))
	assert.Empty(t, proc.filenames)
	assert.Empty(t, store.Deleted())
}

func TestValidator_CaseInsensitiveExtensions(t *testing.T) {
	store := seededStore(t, "photo.PNG")
	proc := &recordingProcessor{}
	v := New(store, proc, nil, nil)

	require.NoError(t, v.HandleBatch(context.Background(), []event.UploadEvent{created("photo.PNG")}))
	assert.Equal(t, []string{"photo.PNG"}, proc.filenames)
	assert.Empty(t, store.Deleted())
}
