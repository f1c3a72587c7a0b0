package component

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	name      string
	initErr   error
	startErr  error
	stopErr   error
	events    *[]string
	healthy   bool
	startedAt time.Time
}

func (f *fakeComponent) Meta() Metadata {
	return Metadata{Name: f.name, Type: "consumer"}
}

func (f *fakeComponent) Health() HealthStatus {
	return HealthStatus{Healthy: f.healthy, LastCheck: time.Now()}
}

func (f *fakeComponent) Initialize() error {
	*f.events = append(*f.events, "init:"+f.name)
	return f.initErr
}

func (f *fakeComponent) Start(_ context.Context) error {
	*f.events = append(*f.events, "start:"+f.name)
	f.startedAt = time.Now()
	return f.startErr
}

func (f *fakeComponent) Stop(_ time.Duration) error {
	*f.events = append(*f.events, "stop:"+f.name)
	return f.stopErr
}

func TestManager_StartOrderAndReverseStop(t *testing.T) {
	var events []string
	m := NewManager(nil)
	m.Register(&fakeComponent{name: "router", events: &events, healthy: true})
	m.Register(&fakeComponent{name: "ingest", events: &events, healthy: true})
	m.Register(&fakeComponent{name: "notifier", events: &events, healthy: true})

	require.NoError(t, m.InitializeAll())
	require.NoError(t, m.StartAll(context.Background()))
	require.NoError(t, m.StopAll(time.Second))

	assert.Equal(t, []string{
		"init:router", "init:ingest", "init:notifier",
		"start:router", "start:ingest", "start:notifier",
		"stop:notifier", "stop:ingest", "stop:router",
	}, events)
}

func TestManager_InitializeFailureAborts(t *testing.T) {
	var events []string
	m := NewManager(nil)
	m.Register(&fakeComponent{name: "a", events: &events})
	m.Register(&fakeComponent{name: "b", events: &events, initErr: errors.New("no bucket")})
	m.Register(&fakeComponent{name: "c", events: &events})

	err := m.InitializeAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize b")
	assert.NotContains(t, events, "init:c")

	states := m.States()
	assert.Equal(t, StateFailed, states["b"])
	assert.Equal(t, StateCreated, states["c"])
}

func TestManager_StopAllContinuesOnError(t *testing.T) {
	var events []string
	m := NewManager(nil)
	m.Register(&fakeComponent{name: "a", events: &events})
	m.Register(&fakeComponent{name: "b", events: &events, stopErr: errors.New("drain timeout")})
	m.Register(&fakeComponent{name: "c", events: &events})

	require.NoError(t, m.InitializeAll())
	require.NoError(t, m.StartAll(context.Background()))

	err := m.StopAll(time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop b")
	// All three components still got a stop attempt
	assert.Contains(t, events, "stop:a")
	assert.Contains(t, events, "stop:c")
}

func TestManager_Health(t *testing.T) {
	var events []string
	m := NewManager(nil)
	m.Register(&fakeComponent{name: "a", events: &events, healthy: true})
	m.Register(&fakeComponent{name: "b", events: &events, healthy: false})

	health := m.Health()
	assert.True(t, health["a"].Healthy)
	assert.False(t, health["b"].Healthy)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "initialized", StateInitialized.String())
	assert.Equal(t, "started", StateStarted.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}
