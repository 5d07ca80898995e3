// Package worker runs scheduled sanity tests against the EchoSys API and
// records their outcomes.
package worker

import (
	"time"
)

// RunConfig holds configuration for a sanity test run.
type RunConfig struct {
	// Concurrency is the number of tests executed in parallel.
	// Default: 3
	Concurrency int

	// TestTimeout bounds each individual test execution.
	// Default: 30 seconds
	TestTimeout time.Duration
}

// DefaultRunConfig returns the default run configuration.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Concurrency: 3,
		TestTimeout: 30 * time.Second,
	}
}

func (c RunConfig) withDefaults() RunConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.TestTimeout <= 0 {
		c.TestTimeout = 30 * time.Second
	}
	return c
}
