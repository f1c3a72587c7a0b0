package component

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// managed tracks a component and its lifecycle state. The manager
// stores each component's child context so it can cancel components
// individually; the component itself never stores the context.
type managed struct {
	component LifecycleComponent
	state     State
	cancel    context.CancelFunc
	lastError error
}

// Manager starts components in registration order and stops them in
// reverse, so downstream consumers are running before producers and
// drain after them.
type Manager struct {
	mu         sync.Mutex
	components []*managed
	logger     *slog.Logger
}

// NewManager creates a component manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Register adds a component to the manager. Registration order
// determines start order.
func (m *Manager) Register(c LifecycleComponent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, &managed{component: c, state: StateCreated})
}

// InitializeAll initializes every registered component. The first
// failure aborts initialization.
func (m *Manager) InitializeAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mc := range m.components {
		name := mc.component.Meta().Name
		if err := mc.component.Initialize(); err != nil {
			mc.state = StateFailed
			mc.lastError = err
			return fmt.Errorf("initialize %s: %w", name, err)
		}
		mc.state = StateInitialized
		m.logger.Debug("component initialized", "component", name)
	}
	return nil
}

// StartAll starts every initialized component in registration order.
// Each component receives its own child context so it can be cancelled
// individually.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mc := range m.components {
		name := mc.component.Meta().Name

		childCtx, cancel := context.WithCancel(ctx)
		mc.cancel = cancel

		if err := mc.component.Start(childCtx); err != nil {
			cancel()
			mc.state = StateFailed
			mc.lastError = err
			return fmt.Errorf("start %s: %w", name, err)
		}
		mc.state = StateStarted
		m.logger.Info("component started", "component", name)
	}
	return nil
}

// StopAll stops started components in reverse registration order.
// Every component gets a stop attempt even if an earlier one fails.
func (m *Manager) StopAll(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for i := len(m.components) - 1; i >= 0; i-- {
		mc := m.components[i]
		if mc.state != StateStarted {
			continue
		}

		name := mc.component.Meta().Name
		if err := mc.component.Stop(timeout); err != nil {
			mc.state = StateFailed
			mc.lastError = err
			m.logger.Error("component stop failed", "component", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", name, err)
			}
		} else {
			mc.state = StateStopped
			m.logger.Info("component stopped", "component", name)
		}

		if mc.cancel != nil {
			mc.cancel()
		}
	}
	return firstErr
}

// Health reports health for every registered component keyed by name.
func (m *Manager) Health() map[string]HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]HealthStatus, len(m.components))
	for _, mc := range m.components {
		out[mc.component.Meta().Name] = mc.component.Health()
	}
	return out
}

// States reports the lifecycle state of every registered component.
func (m *Manager) States() map[string]State {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]State, len(m.components))
	for _, mc := range m.components {
		out[mc.component.Meta().Name] = mc.state
	}
	return out
}
