package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient requests.
var (
	// ErrCircuitOpen is returned when the breaker rejects a request outright.
	ErrCircuitOpen = errors.New("backend circuit breaker is open")
)

// ClientConfig tunes the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the backend for breaker naming and monitoring.
	Name string

	// Timeout bounds each individual HTTP attempt. Default: 10 seconds.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts after the first try.
	// Default: 3. Retried requests must be idempotent.
	MaxRetries uint64

	// InitialInterval is the first retry backoff delay. Default: 100ms.
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff delay. Default: 2 seconds.
	MaxInterval time.Duration

	// Breaker overrides the circuit breaker settings. Nil uses defaults.
	Breaker *BreakerConfig

	// Monitor, when set, records per-request outcomes for availability
	// reporting.
	Monitor *Monitor
}

// DefaultClientConfig returns retry and breaker defaults for the backend.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         &breaker,
	}
}

// Client retries transient failures with exponential backoff behind a circuit
// breaker. 5xx responses count as breaker failures so a struggling backend is
// given room to recover.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	monitor    *Monitor
	config     ClientConfig
}

// NewClient creates a resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    NewBreaker[*http.Response](breakerCfg), //nolint:bodyclose // type param, not a response
		monitor:    cfg.Monitor,
		config:     cfg,
	}
}

// Do executes the request with breaker protection and retry on transient
// failures (network errors and 5xx). Returns ErrCircuitOpen without touching
// the network when the breaker is open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req.Context(), req)
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // retries bounded by WithMaxRetries

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response

	operation := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			// 5xx trips the breaker; 4xx is the caller's problem.
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				lastResp = resp
			}
			return err
		}

		lastResp = resp
		return nil
	}

	err := backoff.Retry(operation, policy)
	if err != nil {
		c.record(false, err)
		// A 5xx that exhausted retries still carries a response body the
		// caller can surface.
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}

	c.record(true, nil)
	return lastResp, nil
}

func (c *Client) record(success bool, err error) {
	if c.monitor == nil {
		return
	}
	if success {
		c.monitor.RecordSuccess()
	} else {
		c.monitor.RecordFailure(err)
	}
}

// ServerError represents an HTTP 5xx response treated as a failure.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// BreakerCounts returns the current circuit breaker counters.
func (c *Client) BreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
