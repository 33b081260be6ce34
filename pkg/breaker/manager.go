package breaker

import "sync"

// Manager lazily creates one breaker per provider and serves snapshots
// of the whole set. Breaker state is provider-scoped: every model on a
// failing provider is gated together.
type Manager struct {
	settings Settings

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewManager creates a manager whose breakers all share the given
// settings.
func NewManager(settings Settings) *Manager {
	return &Manager{
		settings: settings,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for a provider, creating it CLOSED on first
// use.
func (m *Manager) Get(provider string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[provider]
	if !ok {
		b = New(provider, m.settings)
		m.breakers[provider] = b
	}
	return b
}

// States returns the current state of every known breaker. Providers
// never dispatched to have no entry and are implicitly CLOSED.
func (m *Manager) States() map[string]State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]State, len(m.breakers))
	for provider, b := range m.breakers {
		out[provider] = b.State()
	}
	return out
}
