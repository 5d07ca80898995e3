// Package resilience wraps outbound calls to the EchoSys backend with retry,
// circuit breaking, and availability tracking. Only safe-to-retry requests
// (the API's GETs) should travel through the resilient client; mutations go
// out exactly once.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig holds circuit breaker tuning for the backend connection.
type BreakerConfig struct {
	// Name identifies the breaker in logs and state-change callbacks.
	Name string

	// MaxRequests is the number of probe requests allowed while half-open.
	// Default: 1
	MaxRequests uint32

	// Interval is the cyclic period for clearing counts while closed.
	// Default: 0 (disabled)
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	// Default: 30 seconds
	Timeout time.Duration

	// ReadyToTrip decides when to open the breaker. Nil uses DefaultReadyToTrip.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is invoked on every breaker state transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns breaker settings tuned for an interactive
// client: open fast, probe again after half a minute.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip opens the breaker once at least 5 requests have been
// made and half or more of them failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return counts.Requests >= 5 && failureRatio >= 0.5
}

// NewBreaker builds a gobreaker circuit breaker from the configuration.
func NewBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.ReadyToTrip,
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = cfg.OnStateChange
	}
	return gobreaker.NewCircuitBreaker[T](settings)
}
