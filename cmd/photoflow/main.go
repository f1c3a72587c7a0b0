// Package main implements the entry point for the PhotoFlow pipeline.
// PhotoFlow validates uploaded images, maintains a searchable catalog
// of accepted files, and notifies the uploader of acceptance or
// rejection, keeping the catalog consistent with object storage.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/photoflow/catalog"
	"github.com/c360/photoflow/component"
	"github.com/c360/photoflow/config"
	"github.com/c360/photoflow/event"
	"github.com/c360/photoflow/health"
	"github.com/c360/photoflow/ingest"
	"github.com/c360/photoflow/invoke"
	"github.com/c360/photoflow/mailer"
	"github.com/c360/photoflow/metric"
	"github.com/c360/photoflow/natsclient"
	"github.com/c360/photoflow/notify"
	"github.com/c360/photoflow/objectstore"
	"github.com/c360/photoflow/queue"
	"github.com/c360/photoflow/router"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "photoflow"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting PhotoFlow",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	registry := metric.NewRegistry()
	metrics := registry.CoreMetrics()

	natsClient, err := connectNATS(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer func() { _ = natsClient.Close(ctx) }()

	if err := provisionStreams(ctx, cfg, natsClient); err != nil {
		return err
	}

	pipeline, err := buildPipeline(ctx, cfg, natsClient, metrics, logger)
	if err != nil {
		return err
	}

	return runWithSignalHandling(ctx, cfg, pipeline, registry, cliCfg.ShutdownTimeout, logger)
}

// connectNATS creates the client from config and waits for readiness
func connectNATS(ctx context.Context, cfg *config.Config, metrics *metric.Metrics) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	client, err := natsclient.NewClient(cfg.NATS.URLs[0], opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	client.OnHealthChange(func(healthy bool) {
		metrics.RecordNATSStatus(healthy)
	})

	slog.Info("Connecting to NATS", "url", cfg.NATS.URLs[0])
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}

	metrics.RecordNATSStatus(true)
	return client, nil
}

// provisionStreams creates the durable streams the pipeline rides on
func provisionStreams(ctx context.Context, cfg *config.Config, client *natsclient.Client) error {
	streams := []jetstream.StreamConfig{
		{
			Name:     cfg.Streams.ObjectsStream,
			Subjects: []string{"photoflow.objects.>"},
		},
		{
			Name:     cfg.Streams.ProcessingStream,
			Subjects: []string{event.SubjectProcessing},
		},
		{
			Name:     cfg.Streams.NotifyStream,
			Subjects: []string{event.SubjectNotify},
		},
	}

	for _, sc := range streams {
		if _, err := client.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream %s: %w", sc.Name, err)
		}
		slog.Debug("stream ready", "stream", sc.Name, "subjects", sc.Subjects)
	}
	return nil
}

// pipeline bundles everything the run loop manages
type pipeline struct {
	manager *component.Manager
	monitor *health.Monitor
}

// buildPipeline provisions buckets, registers the invocable catalog
// functions, and assembles the consumers in dependency order.
func buildPipeline(
	ctx context.Context,
	cfg *config.Config,
	natsClient *natsclient.Client,
	metrics *metric.Metrics,
	logger *slog.Logger,
) (*pipeline, error) {
	// Catalog over KV
	kvBucket, err := natsClient.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket: cfg.Buckets.Catalog,
	})
	if err != nil {
		return nil, fmt.Errorf("create catalog bucket: %w", err)
	}
	catalogStore := catalog.NewStore(
		natsClient.NewKVStore(kvBucket),
		logger.With("component", "catalog"),
	)

	// Image bytes in the object store; mutations notify the OBJECTS stream
	objBucket, err := natsClient.CreateObjectStoreBucket(ctx, jetstream.ObjectStoreConfig{
		Bucket: cfg.Buckets.Images,
	})
	if err != nil {
		return nil, fmt.Errorf("create images bucket: %w", err)
	}
	imageStore := objectstore.NewNATSStore(cfg.Buckets.Images, objBucket, natsClient,
		objectstore.WithLogger(logger.With("component", "objectstore")))

	// Catalog writer and remover exposed as invocable functions
	writer := catalog.NewWriter(catalogStore, logger.With("component", "catalog-writer"), metrics)
	remover := catalog.NewRemover(catalogStore, logger.With("component", "catalog-remover"), metrics)

	if err := invoke.Register(ctx, natsClient, invoke.FunctionCatalogWriter,
		writer.HandleCreated, logger); err != nil {
		return nil, fmt.Errorf("register catalog writer: %w", err)
	}
	if err := invoke.Register(ctx, natsClient, invoke.FunctionCatalogRemover,
		remover.HandleRemoved, logger); err != nil {
		return nil, fmt.Errorf("register catalog remover: %w", err)
	}

	invoker := invoke.NewClient(natsClient,
		invoke.WithLogger(logger.With("component", "invoke")),
		invoke.WithMetrics(metrics))

	var mail mailer.Mailer
	if cfg.Mail.Enabled {
		smtp, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
		}, logger.With("component", "mailer"))
		if err != nil {
			return nil, fmt.Errorf("create SMTP mailer: %w", err)
		}
		mail = smtp
	} else {
		slog.Warn("mail disabled, notification emails will not be sent")
	}

	addrs := notify.Addresses{From: cfg.Mail.From, To: cfg.Mail.To}
	successNotifier := notify.NewSuccessNotifier(mail, invoker, addrs,
		logger.With("component", "success-notifier"), metrics)
	rejectionNotifier := notify.NewRejectionNotifier(mail, invoker, addrs,
		logger.With("component", "rejection-notifier"), metrics)

	validator := ingest.New(imageStore, nil, logger.With("component", "ingest"), metrics)

	fanout := router.New(natsClient,
		[]string{event.SubjectProcessing, event.SubjectNotify},
		logger.With("component", "router"), metrics)

	deps := component.Dependencies{NATSClient: natsClient, Metrics: metrics, Logger: logger}
	tuning := cfg.Streams

	// Downstream consumers register before the router so they are
	// running when fan-out begins; StopAll reverses the order.
	manager := component.NewManager(logger)

	manager.Register(queue.NewPerEvent(queue.Config{
		Name:        "rejection-notifier",
		Stream:      tuning.ObjectsStream,
		Subject:     event.SubjectObjectRemoved,
		BatchSize:   tuning.BatchSize,
		BatchWait:   tuning.BatchWait,
		AckWait:     tuning.AckWait,
		ItemTimeout: tuning.ItemTimeout,
	}, rejectionNotifier.HandleRemoved, deps))

	manager.Register(queue.NewBatch(queue.Config{
		Name:        "success-notifier",
		Stream:      tuning.NotifyStream,
		Subject:     event.SubjectNotify,
		BatchSize:   tuning.BatchSize,
		BatchWait:   tuning.BatchWait,
		AckWait:     tuning.AckWait,
		ItemTimeout: tuning.ItemTimeout,
	}, successNotifier.HandleBatch, deps))

	manager.Register(queue.NewBatch(queue.Config{
		Name:        "ingest",
		Stream:      tuning.ProcessingStream,
		Subject:     event.SubjectProcessing,
		BatchSize:   tuning.BatchSize,
		BatchWait:   tuning.BatchWait,
		AckWait:     tuning.AckWait,
		ItemTimeout: tuning.ItemTimeout,
		Workers:     cfg.Ingest.Workers,
		QueueSize:   cfg.Ingest.QueueSize,
	}, validator.HandleBatch, deps))

	manager.Register(queue.New(queue.Config{
		Name:        "router",
		Stream:      tuning.ObjectsStream,
		Subject:     event.SubjectObjectCreated,
		BatchSize:   tuning.BatchSize,
		BatchWait:   tuning.BatchWait,
		AckWait:     tuning.AckWait,
		ItemTimeout: tuning.ItemTimeout,
	}, fanout.HandleEnvelope, deps))

	return &pipeline{manager: manager, monitor: health.NewMonitor()}, nil
}

// runWithSignalHandling starts the pipeline and blocks until a signal
func runWithSignalHandling(
	ctx context.Context,
	cfg *config.Config,
	p *pipeline,
	registry *metric.Registry,
	shutdownTimeout time.Duration,
	logger *slog.Logger,
) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := p.manager.InitializeAll(); err != nil {
		return fmt.Errorf("initialize components: %w", err)
	}
	if err := p.manager.StartAll(signalCtx); err != nil {
		return fmt.Errorf("start components: %w", err)
	}

	// Metrics and health endpoint
	srv := metric.NewServer(cfg.HTTP.MetricsPort, cfg.HTTP.MetricsPath, registry)
	srv.Handle("/health", p.monitor.Handler(appName))
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	defer func() { _ = srv.Stop() }()

	// Feed component health into the monitor
	go pollHealth(signalCtx, p)

	slog.Info("PhotoFlow started", "metrics", srv.Address())

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := p.manager.StopAll(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("PhotoFlow shutdown complete")
	return nil
}

// pollHealth mirrors component health into the HTTP monitor
func pollHealth(ctx context.Context, p *pipeline) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, hs := range p.manager.Health() {
				p.monitor.Update(name, health.FromComponentHealth(name, hs))
			}
		}
	}
}
