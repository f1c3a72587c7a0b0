// Package queue consumes upload event envelopes from JetStream
// streams. A Consumer owns one durable pull consumer and dispatches
// decoded envelopes to a handler, with acknowledgement driven by the
// handler's error class: success acks, transient failures nak for
// redelivery, and invalid payloads terminate so they are never
// redelivered.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/photoflow/component"
	"github.com/c360/photoflow/errors"
	"github.com/c360/photoflow/event"
	"github.com/c360/photoflow/metric"
	"github.com/c360/photoflow/natsclient"
	"github.com/c360/photoflow/pkg/worker"
)

// EnvelopeHandler processes one decoded envelope. A nil return
// acknowledges the source message; a transient error naks it for
// redelivery; an invalid-class error terminates it.
type EnvelopeHandler func(ctx context.Context, env event.Envelope) error

// Config describes one durable consumer on a stream
type Config struct {
	Name        string        // component and durable name
	Stream      string        // stream to consume from
	Subject     string        // filter subject, empty for all stream subjects
	BatchSize   int           // max messages per fetch, defaults to event.MaxBatchEvents
	BatchWait   time.Duration // max time to wait filling a fetch, defaults to 5s
	AckWait     time.Duration // redelivery deadline, defaults to 30s
	ItemTimeout time.Duration // per-message handler deadline, defaults to 15s
	Workers     int           // concurrent handlers; 0 processes inline
	QueueSize   int           // pending message capacity when Workers > 0
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = event.MaxBatchEvents
	}
	if c.BatchWait <= 0 {
		c.BatchWait = 5 * time.Second
	}
	if c.AckWait <= 0 {
		c.AckWait = 30 * time.Second
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = 15 * time.Second
	}
	if c.Workers > 0 && c.QueueSize <= 0 {
		c.QueueSize = 64
	}
}

// Consumer runs one durable pull consumer and feeds its handler
type Consumer struct {
	cfg        Config
	handler    EnvelopeHandler
	natsClient *natsclient.Client
	logger     *slog.Logger
	metrics    *metric.Metrics

	pool     *worker.Pool[jetstream.Msg]
	consumer jetstream.Consumer

	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.Mutex

	eventsHandled atomic.Int64
	errorCount    atomic.Int64
	lastActivity  atomic.Value // stores time.Time
}

var _ component.LifecycleComponent = (*Consumer)(nil)

// New creates a consumer dispatching whole envelopes to the handler
func New(cfg Config, handler EnvelopeHandler, deps component.Dependencies) *Consumer {
	cfg.applyDefaults()

	c := &Consumer{
		cfg:        cfg,
		handler:    handler,
		natsClient: deps.NATSClient,
		logger:     deps.GetLoggerWithComponent(cfg.Name),
		metrics:    deps.Metrics,
		startTime:  time.Now(),
	}
	c.lastActivity.Store(time.Time{})

	if cfg.Workers > 0 {
		c.pool = worker.NewPool(cfg.Workers, cfg.QueueSize, func(ctx context.Context, msg jetstream.Msg) error {
			c.dispatch(ctx, msg)
			return nil
		})
	}

	return c
}

// NewBatch creates a consumer whose handler receives the envelope's
// events as one batch.
func NewBatch(cfg Config, handler func(ctx context.Context, events []event.UploadEvent) error, deps component.Dependencies) *Consumer {
	return New(cfg, func(ctx context.Context, env event.Envelope) error {
		return handler(ctx, env.Events)
	}, deps)
}

// NewPerEvent creates a consumer whose handler receives events one at
// a time. Events within an envelope are handled in order; the first
// failure naks the whole envelope, and idempotent handlers absorb the
// replay of its earlier events.
func NewPerEvent(cfg Config, handler func(ctx context.Context, ev event.UploadEvent) error, deps component.Dependencies) *Consumer {
	return New(cfg, func(ctx context.Context, env event.Envelope) error {
		for _, ev := range env.Events {
			if err := handler(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	}, deps)
}

// Meta returns the component metadata
func (c *Consumer) Meta() component.Metadata {
	return component.Metadata{
		Name:        c.cfg.Name,
		Type:        "consumer",
		Description: fmt.Sprintf("durable consumer %q on stream %s", c.cfg.Name, c.cfg.Stream),
	}
}

// Health returns the current health status of the consumer
func (c *Consumer) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    c.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(c.errorCount.Load()),
		Uptime:     time.Since(c.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (c *Consumer) DataFlow() component.FlowMetrics {
	handled := c.eventsHandled.Load()
	errs := c.errorCount.Load()
	lastActivity, _ := c.lastActivity.Load().(time.Time)

	var perSecond, errorRate float64
	if uptime := time.Since(c.startTime).Seconds(); uptime > 0 {
		perSecond = float64(handled) / uptime
	}
	if handled > 0 {
		errorRate = float64(errs) / float64(handled)
	}

	return component.FlowMetrics{
		EventsPerSecond: perSecond,
		ErrorRate:       errorRate,
		LastActivity:    lastActivity,
	}
}

// Initialize validates configuration and dependencies
func (c *Consumer) Initialize() error {
	if c.cfg.Name == "" {
		return errors.WrapInvalid(fmt.Errorf("empty consumer name"),
			"Consumer", "Initialize", "name validation")
	}
	if c.cfg.Stream == "" {
		return errors.WrapInvalid(fmt.Errorf("empty stream name"),
			"Consumer", "Initialize", "stream validation")
	}
	if c.handler == nil {
		return errors.WrapInvalid(fmt.Errorf("nil handler"),
			"Consumer", "Initialize", "handler validation")
	}
	if c.natsClient == nil {
		return errors.WrapInvalid(fmt.Errorf("nil NATS client"),
			"Consumer", "Initialize", "NATS client validation")
	}
	return nil
}

// Start creates the durable consumer and begins fetching
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() {
		return nil
	}

	js, err := c.natsClient.JetStream()
	if err != nil {
		return err
	}

	consumerCfg := jetstream.ConsumerConfig{
		Durable:   c.cfg.Name,
		AckPolicy: jetstream.AckExplicitPolicy,
		AckWait:   c.cfg.AckWait,
	}
	if c.cfg.Subject != "" {
		consumerCfg.FilterSubject = c.cfg.Subject
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, consumerCfg)
	if err != nil {
		return errors.WrapTransient(err, "Consumer", "Start", "create durable "+c.cfg.Name)
	}
	c.consumer = consumer

	if c.pool != nil {
		if err := c.pool.Start(ctx); err != nil {
			return err
		}
	}

	c.shutdown = make(chan struct{})
	c.done = make(chan struct{})
	c.running.Store(true)
	c.startTime = time.Now()

	go c.fetchLoop(ctx)

	c.logger.Info("consumer started",
		"stream", c.cfg.Stream, "subject", c.cfg.Subject, "batch_size", c.cfg.BatchSize)
	return nil
}

// Stop halts fetching and waits for in-flight handlers
func (c *Consumer) Stop(timeout time.Duration) error {
	if !c.running.Load() {
		return nil
	}
	c.running.Store(false)

	c.mu.Lock()
	if c.shutdown != nil {
		select {
		case <-c.shutdown:
		default:
			close(c.shutdown)
		}
	}
	done := c.done
	c.mu.Unlock()

	deadline := time.Now().Add(timeout)
	if done != nil {
		select {
		case <-done:
		case <-time.After(timeout):
			return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
				"Consumer", "Stop", "fetch loop shutdown")
		}
	}

	if c.pool != nil {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = time.Millisecond
		}
		if err := c.pool.Stop(remaining); err != nil {
			return errors.WrapTransient(err, "Consumer", "Stop", "worker pool shutdown")
		}
	}
	return nil
}

func (c *Consumer) fetchLoop(ctx context.Context) {
	defer close(c.done)

	for c.running.Load() {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		default:
		}

		batch, err := c.consumer.Fetch(c.cfg.BatchSize, jetstream.FetchMaxWait(c.cfg.BatchWait))
		if err != nil {
			c.errorCount.Add(1)
			c.logger.Warn("fetch failed", "stream", c.cfg.Stream, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-c.shutdown:
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for msg := range batch.Messages() {
			if c.pool != nil {
				if err := c.pool.Submit(msg); err != nil {
					// Queue saturated, leave the message for redelivery
					if nakErr := msg.Nak(); nakErr != nil {
						c.logger.Warn("nak failed", "error", nakErr)
					}
				}
				continue
			}
			c.dispatch(ctx, msg)
		}

		if err := batch.Error(); err != nil {
			c.errorCount.Add(1)
			c.logger.Warn("fetch batch error", "stream", c.cfg.Stream, "error", err)
		}
	}
}

// dispatch decodes one message and routes the handler outcome to the
// right acknowledgement.
func (c *Consumer) dispatch(ctx context.Context, msg jetstream.Msg) {
	c.lastActivity.Store(time.Now())

	env, err := event.DecodeEnvelope(msg.Data())
	if err != nil {
		c.errorCount.Add(1)
		c.logger.Error("undecodable envelope, terminating message",
			"stream", c.cfg.Stream, "error", err)
		if c.metrics != nil {
			c.metrics.RecordError(c.cfg.Name, "decode")
		}
		if termErr := msg.Term(); termErr != nil {
			c.logger.Warn("term failed", "error", termErr)
		}
		return
	}

	if c.metrics != nil {
		for _, ev := range env.Events {
			c.metrics.RecordEventReceived(c.cfg.Name, string(ev.Type))
		}
	}

	handlerCtx, cancel := context.WithTimeout(ctx, c.cfg.ItemTimeout)
	start := time.Now()
	err = c.handler(handlerCtx, env)
	cancel()

	c.eventsHandled.Add(int64(len(env.Events)))
	if c.metrics != nil {
		c.metrics.RecordProcessingDuration(c.cfg.Name, "handle", time.Since(start))
	}

	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			c.logger.Warn("ack failed", "envelope", env.ID, "error", ackErr)
		}
	case errors.IsInvalid(err):
		c.errorCount.Add(1)
		c.logger.Error("invalid envelope rejected", "envelope", env.ID, "error", err)
		if c.metrics != nil {
			c.metrics.RecordError(c.cfg.Name, "invalid")
		}
		if termErr := msg.Term(); termErr != nil {
			c.logger.Warn("term failed", "envelope", env.ID, "error", termErr)
		}
	default:
		c.errorCount.Add(1)
		c.logger.Warn("handler failed, requesting redelivery", "envelope", env.ID, "error", err)
		if c.metrics != nil {
			c.metrics.RecordError(c.cfg.Name, "transient")
		}
		if nakErr := msg.Nak(); nakErr != nil {
			c.logger.Warn("nak failed", "envelope", env.ID, "error", nakErr)
		}
	}
}
