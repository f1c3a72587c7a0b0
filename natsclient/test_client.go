// Testcontainers-based NATS infrastructure for tests that need a real
// server.
package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestClient runs a disposable NATS server in a container and exposes
// a connected Client against it.
type TestClient struct {
	container testcontainers.Container
	Client    *Client
	URL       string
	cleanup   func()
}

type testConfig struct {
	jetstream     bool
	kvBuckets     []string
	objectBuckets []string
	natsVersion   string
	timeout       time.Duration
	startTimeout  time.Duration
}

// TestOption configures the test client
type TestOption func(*testConfig)

// WithJetStream enables JetStream for tests that need it
func WithJetStream() TestOption {
	return func(cfg *testConfig) {
		cfg.jetstream = true
	}
}

// WithKVBuckets pre-creates KV buckets. Implies JetStream.
func WithKVBuckets(buckets ...string) TestOption {
	return func(cfg *testConfig) {
		cfg.jetstream = true
		cfg.kvBuckets = append(cfg.kvBuckets, buckets...)
	}
}

// WithObjectBuckets pre-creates object store buckets. Implies JetStream.
func WithObjectBuckets(buckets ...string) TestOption {
	return func(cfg *testConfig) {
		cfg.jetstream = true
		cfg.objectBuckets = append(cfg.objectBuckets, buckets...)
	}
}

// WithNATSVersion picks the NATS server image version
func WithNATSVersion(version string) TestOption {
	return func(cfg *testConfig) {
		cfg.natsVersion = version
	}
}

// WithTestTimeout sets the connection timeout for the test client
func WithTestTimeout(timeout time.Duration) TestOption {
	return func(cfg *testConfig) {
		cfg.timeout = timeout
	}
}

// NewTestClient starts a NATS container and connects a Client to it.
// Cleanup is registered on the test.
func NewTestClient(t testing.TB, opts ...TestOption) *TestClient {
	t.Helper()

	tc, err := newTestClient(opts...)
	if err != nil {
		t.Fatalf("nats test client: %v", err)
	}
	t.Cleanup(tc.cleanup)
	return tc
}

// NewSharedTestClient starts a NATS container for use from TestMain,
// where no testing.T is available. The caller owns Terminate.
func NewSharedTestClient(opts ...TestOption) (*TestClient, error) {
	return newTestClient(opts...)
}

func newTestClient(opts ...TestOption) (*TestClient, error) {
	cfg := &testConfig{
		natsVersion:  "2.11.7-alpine",
		timeout:      5 * time.Second,
		startTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx := context.Background()

	args := []string{"--port", "4222", "--http_port", "8222"}
	if cfg.jetstream {
		args = append(args, "--js")
	}

	req := testcontainers.ContainerRequest{
		Image:        "nats:" + cfg.natsVersion,
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		Cmd:          args,
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4222/tcp"),
			wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(cfg.startTimeout),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start NATS container: %w", err)
	}

	terminate := func() { _ = container.Terminate(context.Background()) }

	host, err := container.Host(ctx)
	if err != nil {
		terminate()
		return nil, fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		terminate()
		return nil, fmt.Errorf("mapped port: %w", err)
	}

	url := fmt.Sprintf("nats://%s:%s", host, port.Port())

	client, err := NewClient(url,
		WithTimeout(cfg.timeout),
		WithMaxReconnects(0),
		WithHealthInterval(0),
	)
	if err != nil {
		terminate()
		return nil, fmt.Errorf("create client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	if err := client.Connect(connectCtx); err != nil {
		terminate()
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.WaitForConnection(connectCtx); err != nil {
		_ = client.Close(ctx)
		terminate()
		return nil, fmt.Errorf("connection not ready: %w", err)
	}

	tc := &TestClient{
		container: container,
		Client:    client,
		URL:       url,
		cleanup: func() {
			_ = client.Close(context.Background())
			_ = container.Terminate(context.Background())
		},
	}

	for _, bucket := range cfg.kvBuckets {
		if _, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: bucket}); err != nil {
			tc.cleanup()
			return nil, fmt.Errorf("create KV bucket %s: %w", bucket, err)
		}
	}
	for _, bucket := range cfg.objectBuckets {
		if _, err := client.CreateObjectStoreBucket(ctx, jetstream.ObjectStoreConfig{Bucket: bucket}); err != nil {
			tc.cleanup()
			return nil, fmt.Errorf("create object bucket %s: %w", bucket, err)
		}
	}

	return tc, nil
}

// Terminate tears the container and client down. Usually handled by
// t.Cleanup.
func (tc *TestClient) Terminate() error {
	if tc.cleanup != nil {
		tc.cleanup()
		tc.cleanup = nil
	}
	return nil
}

// IsReady reports whether the NATS connection is usable
func (tc *TestClient) IsReady() bool {
	return tc.Client.IsHealthy()
}
