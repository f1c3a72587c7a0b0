// Package component defines the lifecycle contract shared by the
// pipeline's long-running pieces and the manager that runs them.
package component

import (
	"context"
	"time"
)

// State represents the current lifecycle state of a component
type State int

const (
	// StateCreated indicates component was created but not initialized
	StateCreated State = iota
	// StateInitialized indicates component was initialized but not started
	StateInitialized
	// StateStarted indicates component is running
	StateStarted
	// StateStopped indicates component was stopped
	StateStopped
	// StateFailed indicates component failed during lifecycle operation
	StateFailed
)

// String returns a string representation of the component state
func (cs State) String() string {
	switch cs {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Metadata describes what a component is
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "router", "consumer", "notifier", "storage"
	Description string `json:"description"`
}

// HealthStatus describes the current health state of a component
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// FlowMetrics describes the current data flow through a component
type FlowMetrics struct {
	EventsPerSecond float64   `json:"events_per_second"`
	ErrorRate       float64   `json:"error_rate"`
	LastActivity    time.Time `json:"last_activity"`
}

// Component is the minimal interface every pipeline piece exposes
// for inspection by the management layer.
type Component interface {
	Meta() Metadata
	Health() HealthStatus
}

// LifecycleComponent defines components that support full lifecycle
// management following the unified pattern:
//   - Initialize() error                  // Setup/create only, NO context
//   - Start(ctx context.Context) error    // Start with context passed through
//   - Stop(timeout time.Duration) error   // Stop with timeout for graceful shutdown
type LifecycleComponent interface {
	Component
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}
