// Package breaker implements per-provider circuit breakers with an
// exponential probe backoff.
//
// A breaker trips OPEN after a run of consecutive failures. While OPEN,
// calls are refused until the backoff elapses; then a single probe is
// admitted (HALF_OPEN). A successful probe closes the breaker and resets
// the backoff; a failed probe re-opens it with the backoff doubled, up to
// a fixed cap.
package breaker

import (
	"log/slog"
	"sync"
	"time"
)

// State is the breaker's position.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Settings tunes a breaker. Zero values take the defaults below.
type Settings struct {
	// FailureThreshold is the consecutive-failure count that trips the
	// breaker.
	FailureThreshold int

	// InitialBackoff is the first OPEN hold time.
	InitialBackoff time.Duration

	// MaxBackoff caps the doubling.
	MaxBackoff time.Duration

	// OnStateChange is invoked (outside the lock) on every transition.
	OnStateChange func(name string, from, to State)

	// Now overrides the clock, for tests.
	Now func() time.Time
}

const (
	defaultFailureThreshold = 5
	defaultInitialBackoff   = 60 * time.Second
	defaultMaxBackoff       = 300 * time.Second
)

// Breaker guards one provider.
type Breaker struct {
	name     string
	settings Settings

	mu            sync.Mutex
	state         State
	failures      int
	backoff       time.Duration
	openedAt      time.Time
	probeInFlight bool
}

// New creates a CLOSED breaker.
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = defaultFailureThreshold
	}
	if settings.InitialBackoff <= 0 {
		settings.InitialBackoff = defaultInitialBackoff
	}
	if settings.MaxBackoff <= 0 {
		settings.MaxBackoff = defaultMaxBackoff
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
		backoff:  settings.InitialBackoff,
	}
}

// Allow reports whether a call may proceed. An OPEN breaker whose backoff
// has elapsed moves to HALF_OPEN and admits exactly one probe; further
// calls are refused until the probe resolves.
func (b *Breaker) Allow() bool {
	b.mu.Lock()

	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return true

	case StateOpen:
		if b.settings.Now().Sub(b.openedAt) < b.backoff {
			b.mu.Unlock()
			return false
		}
		from := b.state
		b.state = StateHalfOpen
		b.probeInFlight = true
		b.mu.Unlock()
		b.notify(from, StateHalfOpen)
		return true

	case StateHalfOpen:
		admit := !b.probeInFlight
		if admit {
			b.probeInFlight = true
		}
		b.mu.Unlock()
		return admit
	}

	b.mu.Unlock()
	return false
}

// RecordSuccess resets the failure run. In HALF_OPEN it closes the
// breaker and resets the backoff schedule.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	from := b.state
	b.failures = 0
	b.probeInFlight = false
	if b.state == StateHalfOpen || b.state == StateOpen {
		b.state = StateClosed
		b.backoff = b.settings.InitialBackoff
		b.mu.Unlock()
		b.notify(from, StateClosed)
		return
	}
	b.mu.Unlock()
}

// RecordFailure counts a failure. At the threshold a CLOSED breaker
// trips OPEN; a failed HALF_OPEN probe re-opens with the backoff doubled
// up to the cap.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	from := b.state

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures < b.settings.FailureThreshold {
			b.mu.Unlock()
			return
		}
		b.state = StateOpen
		b.openedAt = b.settings.Now()
		b.backoff = b.settings.InitialBackoff
		b.mu.Unlock()
		b.notify(from, StateOpen)

	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.settings.Now()
		b.probeInFlight = false
		b.backoff = min(b.backoff*2, b.settings.MaxBackoff)
		b.mu.Unlock()
		b.notify(from, StateOpen)

	default:
		// Late failure report while already OPEN; nothing to do.
		b.mu.Unlock()
	}
}

// Ready reports whether a call could currently be admitted, without
// consuming the HALF_OPEN probe slot. Routing uses this to keep a
// provider in the candidate set once its probe window has opened.
func (b *Breaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		return b.settings.Now().Sub(b.openedAt) >= b.backoff
	default:
		return !b.probeInFlight
	}
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Backoff returns the current OPEN hold time, for observability.
func (b *Breaker) Backoff() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backoff
}

func (b *Breaker) notify(from, to State) {
	slog.Info("Circuit breaker transition", "provider", b.name, "from", from, "to", to)
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}
