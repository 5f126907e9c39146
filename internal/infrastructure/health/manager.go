package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"mev_engine/internal/core"
)

// DefaultCheckTimeout bounds a single component probe
const DefaultCheckTimeout = 2 * time.Second

// Check probes one component. Returning an error marks it unhealthy.
type Check func(ctx context.Context) error

type component struct {
	check    Check
	critical bool
}

// HealthManager aggregates health status from the engine's components.
// Only critical components decide IsHealthy; the rest are reported.
type HealthManager struct {
	logger  core.ILogger
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]component
}

// NewHealthManager creates a new health manager
func NewHealthManager(logger core.ILogger) *HealthManager {
	hm := &HealthManager{
		timeout: DefaultCheckTimeout,
		checks:  make(map[string]component),
	}
	if logger != nil {
		hm.logger = logger.WithField("component", "health_manager")
	}
	return hm
}

// Register adds a critical health check
func (hm *HealthManager) Register(name string, check Check) {
	hm.register(name, check, true)
}

// RegisterOptional adds a check that is reported but never fails the engine
func (hm *HealthManager) RegisterOptional(name string, check Check) {
	hm.register(name, check, false)
}

func (hm *HealthManager) register(name string, check Check, critical bool) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[name] = component{check: check, critical: critical}
}

// Components lists registered names in order
func (hm *HealthManager) Components() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (hm *HealthManager) run(c component) error {
	ctx, cancel := context.WithTimeout(context.Background(), hm.timeout)
	defer cancel()
	return c.check(ctx)
}

// GetStatus returns the current status of all registered components
func (hm *HealthManager) GetStatus() map[string]string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := make(map[string]string, len(hm.checks))
	for name, c := range hm.checks {
		if err := hm.run(c); err != nil {
			status[name] = "Unhealthy: " + err.Error()
		} else {
			status[name] = "Healthy"
		}
	}
	return status
}

// IsHealthy returns true if all critical components are healthy
func (hm *HealthManager) IsHealthy() bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	for name, c := range hm.checks {
		if !c.critical {
			continue
		}
		if err := hm.run(c); err != nil {
			if hm.logger != nil {
				hm.logger.Warn("Component unhealthy", "component", name, "error", err)
			}
			return false
		}
	}
	return true
}

var _ core.IHealthMonitor = (*HealthManager)(nil)
