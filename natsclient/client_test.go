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
)

func TestConnectionStatus_String(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{StatusCircuitOpen, "circuit_open"},
		{ConnectionStatus(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Equal(t, int32(0), client.Failures())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestNewClient_Options(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithName("photoflow-test"),
		WithMaxReconnects(10),
		WithReconnectWait(time.Second),
		WithCircuitBreakerThreshold(3),
		WithMaxBackoff(30*time.Second),
		WithRequestTimeout(5*time.Second),
	)
	require.NoError(t, err)

	assert.Equal(t, "photoflow-test", client.clientName)
	assert.Equal(t, 10, client.maxReconnects)
	assert.Equal(t, time.Second, client.reconnectWait)
	assert.Equal(t, int32(3), client.circuitThreshold)
	assert.Equal(t, 30*time.Second, client.maxBackoff)
	assert.Equal(t, 5*time.Second, client.requestTimeout)
}

func TestNewClient_OptionDefensiveDefaults(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithCircuitBreakerThreshold(0),
		WithMaxBackoff(time.Millisecond),
		WithRequestTimeout(0),
	)
	require.NoError(t, err)

	assert.Equal(t, int32(5), client.circuitThreshold)
	assert.Equal(t, time.Minute, client.maxBackoff)
	assert.Equal(t, 10*time.Second, client.requestTimeout)
}

func TestClient_CircuitBreakerOpensAfterThreshold(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithCircuitBreakerThreshold(3),
	)
	require.NoError(t, err)

	client.recordFailure()
	client.recordFailure()
	assert.NotEqual(t, StatusCircuitOpen, client.Status())

	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, int32(3), client.Failures())
}

func TestClient_CircuitBreakerBlocksOperations(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithCircuitBreakerThreshold(1),
	)
	require.NoError(t, err)

	client.recordFailure()
	require.Equal(t, StatusCircuitOpen, client.Status())

	ctx := context.Background()
	assert.ErrorIs(t, client.Connect(ctx), ErrCircuitOpen)
	assert.ErrorIs(t, client.PublishToStream(ctx, "photoflow.processing", nil), ErrCircuitOpen)

	_, err = client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: "catalog"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestClient_ResetCircuit(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithCircuitBreakerThreshold(1),
	)
	require.NoError(t, err)

	client.recordFailure()
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.resetCircuit()
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, int32(0), client.Failures())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestClient_BackoffGrowthCapped(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithCircuitBreakerThreshold(1),
		WithMaxBackoff(4*time.Second),
	)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}

	assert.LessOrEqual(t, client.Backoff(), 4*time.Second)
}

func TestClient_OperationsRequireConnection(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx := context.Background()
	assert.ErrorIs(t, client.Publish(ctx, "photoflow.notify", []byte("x")), ErrNotConnected)
	assert.ErrorIs(t, client.PublishToStream(ctx, "photoflow.notify", []byte("x")), ErrNotConnected)

	_, err = client.Request(ctx, "photoflow.invoke.catalog-writer", nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.GetStream(ctx, "OBJECTS")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.GetObjectStoreBucket(ctx, "images")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_WaitForConnectionTimeout(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = client.WaitForConnection(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection timeout")
}

func TestClient_CloseIdempotent(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Close(ctx))
	require.NoError(t, client.Close(ctx))
}

func TestIsAlreadyExistsError(t *testing.T) {
	assert.False(t, isAlreadyExistsError(nil))
	assert.True(t, isAlreadyExistsError(errors.New("stream name already in use")))
	assert.True(t, isAlreadyExistsError(errors.New("bucket name already in use")))
	assert.True(t, isAlreadyExistsError(fmt.Errorf("wrapped: %w", errors.New("object already exists"))))
	assert.False(t, isAlreadyExistsError(errors.New("connection refused")))
}
