package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/photoflow/event"
	"github.com/c360/photoflow/invoke"
	"github.com/c360/photoflow/mailer"
	"github.com/c360/photoflow/testutil"
)

// trace records mailer and invoker activity in call order so tests can
// assert sequencing across the two collaborators.
type trace struct {
	calls []string
}

type traceMailer struct {
	trace    *trace
	messages []mailer.Message
	err      error
}

func (m *traceMailer) Send(_ context.Context, msg mailer.Message) error {
	m.trace.calls = append(m.trace.calls, "mail:"+msg.Subject)
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

type traceInvoker struct {
	trace  *trace
	events []event.UploadEvent
	errFor map[string]error
}

func (i *traceInvoker) Invoke(_ context.Context, function string, ev event.UploadEvent) error {
	i.trace.calls = append(i.trace.calls, "invoke:"+function+":"+ev.Key)
	if err, ok := i.errFor[ev.Key]; ok {
		return err
	}
	i.events = append(i.events, ev)
	return nil
}

var addrs = Addresses{From: "pipeline@example.com", To: "uploads@example.com"}

func TestSuccessNotifier_EmailThenCatalogWrite(t *testing.T) {
	tr := &trace{}
	m := &traceMailer{trace: tr}
	inv := &traceInvoker{trace: tr}
	n := NewSuccessNotifier(m, inv, addrs, nil, nil)

	events := []event.UploadEvent{testutil.CreatedEvent("images", "my+photo.png")}
	require.NoError(t, n.HandleBatch(context.Background(), events))

	require.Equal(t, []string{
		"mail:Image accepted: my photo.png",
		"invoke:" + invoke.FunctionCatalogWriter + ":my+photo.png",
	}, tr.calls, "email must precede the catalog write")

	require.Len(t, m.messages, 1)
	assert.Equal(t, "uploads@example.com", m.messages[0].To)
	assert.Contains(t, m.messages[0].HTMLBody, "my photo.png")
}

func TestSuccessNotifier_BatchItemsAreIndependent(t *testing.T) {
	tr := &trace{}
	m := &traceMailer{trace: tr}
	inv := &traceInvoker{trace: tr, errFor: map[string]error{"b.png": errors.New("writer unavailable")}}
	n := NewSuccessNotifier(m, inv, addrs, nil, nil)

	events := []event.UploadEvent{
		testutil.CreatedEvent("images", "a.png"),
		testutil.CreatedEvent("images", "b.png"),
		testutil.CreatedEvent("images", "c.png"),
	}
	require.NoError(t, n.HandleBatch(context.Background(), events),
		"the batch is acknowledged regardless of item failures")

	require.Len(t, inv.events, 2)
	assert.Equal(t, "a.png", inv.events[0].Key)
	assert.Equal(t, "c.png", inv.events[1].Key, "failure on b.png must not block c.png")
}

func TestSuccessNotifier_EmailFailureSkipsCatalogWrite(t *testing.T) {
	m := &testutil.RecordingMailer{SendErr: errors.New("relay refused")}
	inv := &testutil.MockInvoker{}
	n := NewSuccessNotifier(m, inv, addrs, nil, nil)

	events := []event.UploadEvent{testutil.CreatedEvent("images", "a.png")}
	require.NoError(t, n.HandleBatch(context.Background(), events))

	assert.Empty(t, inv.Invocations(), "unnotified images are not cataloged")
}

func TestSuccessNotifier_NilMailerStillWritesCatalog(t *testing.T) {
	inv := &testutil.MockInvoker{}
	n := NewSuccessNotifier(nil, inv, addrs, nil, nil)

	events := []event.UploadEvent{testutil.CreatedEvent("images", "a.png")}
	require.NoError(t, n.HandleBatch(context.Background(), events))

	calls := inv.Invocations()
	require.Len(t, calls, 1)
	assert.Equal(t, invoke.FunctionCatalogWriter, calls[0].Function)
	assert.Equal(t, "a.png", calls[0].Event.Key)
}

func TestRejectionNotifier_EmailThenRemoval(t *testing.T) {
	tr := &trace{}
	m := &traceMailer{trace: tr}
	inv := &traceInvoker{trace: tr}
	n := NewRejectionNotifier(m, inv, addrs, nil, nil)

	ev := testutil.RemovedEvent("images", "my+photo.png")
	require.NoError(t, n.HandleRemoved(context.Background(), ev))

	require.Equal(t, []string{
		"mail:Image removed: my photo.png",
		"invoke:" + invoke.FunctionCatalogRemover + ":my+photo.png",
	}, tr.calls, "email must precede the removal invocation")
}

func TestRejectionNotifier_EmailFailureDoesNotBlockRemoval(t *testing.T) {
	m := &testutil.RecordingMailer{SendErr: errors.New("relay refused")}
	inv := &testutil.MockInvoker{}
	n := NewRejectionNotifier(m, inv, addrs, nil, nil)

	ev := testutil.RemovedEvent("images", "a.png")
	require.NoError(t, n.HandleRemoved(context.Background(), ev))

	calls := inv.Invocations()
	require.Len(t, calls, 1, "removal proceeds even when the email fails")
	assert.Equal(t, invoke.FunctionCatalogRemover, calls[0].Function)
}

func TestRejectionNotifier_RemovalFailurePropagates(t *testing.T) {
	m := &testutil.RecordingMailer{}
	inv := &testutil.MockInvoker{
		FailFunctions: map[string]error{invoke.FunctionCatalogRemover: errors.New("remover timed out")},
	}
	n := NewRejectionNotifier(m, inv, addrs, nil, nil)

	err := n.HandleRemoved(context.Background(), testutil.RemovedEvent("images", "a.png"))

	require.Error(t, err, "the invocation outcome is the handler outcome")
	assert.Contains(t, err.Error(), "remover timed out")
}
