package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Availability is a point-in-time view of how the backend has been behaving
// from this client's perspective. The CLI status command renders it.
type Availability struct {
	// Name is the backend identifier.
	Name string

	// CircuitState is the breaker state at snapshot time.
	CircuitState gobreaker.State

	// Counts are the breaker counters at snapshot time.
	Counts gobreaker.Counts

	// LastSuccessAt is when the last request succeeded, if any has.
	LastSuccessAt *time.Time

	// LastFailureAt is when the last request failed, if any has.
	LastFailureAt *time.Time

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int

	// LastError is the most recent failure message.
	LastError string
}

// Reachable reports whether requests are currently being attempted.
func (a *Availability) Reachable() bool {
	return a.CircuitState != gobreaker.StateOpen
}

// Degraded reports whether the breaker is probing after failures.
func (a *Availability) Degraded() bool {
	return a.CircuitState == gobreaker.StateHalfOpen
}

// Monitor records request outcomes against the backend. One monitor is shared
// between the resilient client (which feeds it) and whoever reports status.
type Monitor struct {
	mu sync.RWMutex

	name                string
	client              *Client
	lastSuccessAt       *time.Time
	lastFailureAt       *time.Time
	consecutiveFailures int
	lastError           string
}

// NewMonitor creates a monitor for the named backend.
func NewMonitor(name string) *Monitor {
	return &Monitor{name: name}
}

// Attach associates the resilient client so snapshots can include breaker
// state. Called once during client construction.
func (m *Monitor) Attach(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = c
}

// RecordSuccess notes a successful request.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.lastSuccessAt = &now
	m.consecutiveFailures = 0
}

// RecordFailure notes a failed request.
func (m *Monitor) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.lastFailureAt = &now
	m.consecutiveFailures++
	if err != nil {
		m.lastError = err.Error()
	}
}

// Snapshot returns the current availability view.
func (m *Monitor) Snapshot() *Availability {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a := &Availability{
		Name:                m.name,
		LastSuccessAt:       m.lastSuccessAt,
		LastFailureAt:       m.lastFailureAt,
		ConsecutiveFailures: m.consecutiveFailures,
		LastError:           m.lastError,
	}
	if m.client != nil {
		a.CircuitState = m.client.BreakerState()
		a.Counts = m.client.BreakerCounts()
	}
	return a
}
