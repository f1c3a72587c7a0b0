// Package config loads and validates the pipeline configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/c360/photoflow/event"
)

const maxConfigSize = 1 << 20 // 1MB

// Config represents the complete application configuration
type Config struct {
	NATS    NATSConfig    `json:"nats"`
	Streams StreamsConfig `json:"streams"`
	Buckets BucketsConfig `json:"buckets"`
	Mail    MailConfig    `json:"mail"`
	HTTP    HTTPConfig    `json:"http"`
	Ingest  IngestConfig  `json:"ingest"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
}

// StreamsConfig defines the JetStream streams and consumer behavior
type StreamsConfig struct {
	ObjectsStream    string        `json:"objects_stream,omitempty"`
	ProcessingStream string        `json:"processing_stream,omitempty"`
	NotifyStream     string        `json:"notify_stream,omitempty"`
	BatchSize        int           `json:"batch_size,omitempty"`   // events per fetch, 1..5
	BatchWait        time.Duration `json:"batch_wait,omitempty"`   // max wait for a batch, <= 5s
	AckWait          time.Duration `json:"ack_wait,omitempty"`     // redelivery deadline
	ItemTimeout      time.Duration `json:"item_timeout,omitempty"` // per-event processing budget
}

// BucketsConfig defines the KV and object store buckets
type BucketsConfig struct {
	Catalog string `json:"catalog,omitempty"`
	Images  string `json:"images,omitempty"`
}

// MailConfig defines SMTP delivery settings
type MailConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

// HTTPConfig defines the metrics and health endpoints
type HTTPConfig struct {
	MetricsPort int    `json:"metrics_port,omitempty"`
	MetricsPath string `json:"metrics_path,omitempty"`
}

// IngestConfig tunes the ingest validator
type IngestConfig struct {
	Workers   int `json:"workers,omitempty"`
	QueueSize int `json:"queue_size,omitempty"`
}

// Default returns a configuration with all defaults applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if len(c.NATS.URLs) == 0 {
		c.NATS.URLs = []string{"nats://localhost:4222"}
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = -1
	}
	if c.NATS.ReconnectWait == 0 {
		c.NATS.ReconnectWait = 2 * time.Second
	}

	if c.Streams.ObjectsStream == "" {
		c.Streams.ObjectsStream = "OBJECTS"
	}
	if c.Streams.ProcessingStream == "" {
		c.Streams.ProcessingStream = "PROCESSING"
	}
	if c.Streams.NotifyStream == "" {
		c.Streams.NotifyStream = "NOTIFY"
	}
	if c.Streams.BatchSize == 0 {
		c.Streams.BatchSize = event.MaxBatchEvents
	}
	if c.Streams.BatchWait == 0 {
		c.Streams.BatchWait = 5 * time.Second
	}
	if c.Streams.AckWait == 0 {
		c.Streams.AckWait = 30 * time.Second
	}
	if c.Streams.ItemTimeout == 0 {
		c.Streams.ItemTimeout = 15 * time.Second
	}

	if c.Buckets.Catalog == "" {
		c.Buckets.Catalog = "catalog"
	}
	if c.Buckets.Images == "" {
		c.Buckets.Images = "images"
	}

	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}

	if c.HTTP.MetricsPort == 0 {
		c.HTTP.MetricsPort = 9090
	}
	if c.HTTP.MetricsPath == "" {
		c.HTTP.MetricsPath = "/metrics"
	}

	if c.Ingest.Workers == 0 {
		c.Ingest.Workers = 4
	}
	if c.Ingest.QueueSize == 0 {
		c.Ingest.QueueSize = 64
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if len(c.NATS.URLs) == 0 {
		return errors.New("nats.urls is required")
	}

	if c.Streams.BatchSize < 1 || c.Streams.BatchSize > event.MaxBatchEvents {
		return fmt.Errorf("streams.batch_size must be between 1 and %d, got %d",
			event.MaxBatchEvents, c.Streams.BatchSize)
	}
	if c.Streams.BatchWait <= 0 || c.Streams.BatchWait > 5*time.Second {
		return fmt.Errorf("streams.batch_wait must be positive and at most 5s, got %v",
			c.Streams.BatchWait)
	}
	if c.Streams.AckWait < c.Streams.ItemTimeout {
		return fmt.Errorf("streams.ack_wait (%v) must be at least streams.item_timeout (%v)",
			c.Streams.AckWait, c.Streams.ItemTimeout)
	}

	if c.Buckets.Catalog == "" || c.Buckets.Images == "" {
		return errors.New("buckets.catalog and buckets.images are required")
	}

	if c.Mail.Enabled {
		if c.Mail.Host == "" {
			return errors.New("mail.host is required when mail is enabled")
		}
		if c.Mail.From == "" || c.Mail.To == "" {
			return errors.New("mail.from and mail.to are required when mail is enabled")
		}
		if c.Mail.Port < 1 || c.Mail.Port > 65535 {
			return fmt.Errorf("mail.port must be a valid port, got %d", c.Mail.Port)
		}
	}

	return nil
}

// Load loads configuration from a file, applies defaults, and validates
func Load(path string) (*Config, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// safeReadFile reads a config file with basic validation
func safeReadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat config file: %w", err)
	}

	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	return data, nil
}

// ToJSON converts config to JSON string for debugging
func (c *Config) ToJSON() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
