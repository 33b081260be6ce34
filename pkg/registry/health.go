package registry

import (
	"context"
	"log/slog"
	"time"
)

// ProbeFunc checks one provider's health. Implementations live with the
// provider clients; the monitor only schedules them.
type ProbeFunc func(ctx context.Context, provider string) HealthStatus

// Monitor periodically re-probes every provider and records the result.
// Transitions away from healthy are reported through onChange so the
// caller can surface them (logs, system warnings).
type Monitor struct {
	registry *Registry
	probe    ProbeFunc
	interval time.Duration
	onChange func(provider string, status HealthStatus)
}

// NewMonitor creates a health monitor. onChange may be nil.
func NewMonitor(reg *Registry, probe ProbeFunc, interval time.Duration, onChange func(string, HealthStatus)) *Monitor {
	return &Monitor{
		registry: reg,
		probe:    probe,
		interval: interval,
		onChange: onChange,
	}
}

// ProbeAll probes every provider once, synchronously.
func (m *Monitor) ProbeAll(ctx context.Context) {
	for _, provider := range m.registry.Providers() {
		status := m.probe(ctx, provider)
		prev := m.registry.Health(provider)
		m.registry.SetHealth(provider, status)
		if status != prev && m.onChange != nil {
			m.onChange(provider, status)
		}
	}
}

// Start runs the probe loop until ctx is cancelled. A zero interval
// disables periodic probing.
func (m *Monitor) Start(ctx context.Context) {
	if m.interval <= 0 {
		slog.Info("Provider health monitoring disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		slog.Info("Provider health monitor started", "interval", m.interval)
		for {
			select {
			case <-ctx.Done():
				slog.Info("Provider health monitor stopped")
				return
			case <-ticker.C:
				m.ProbeAll(ctx)
			}
		}
	}()
}
