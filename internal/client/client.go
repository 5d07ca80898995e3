// Package client implements the typed EchoSys API client: the single choke
// point through which every backend call travels. It attaches bearer
// credentials from an explicitly supplied session store, speaks JSON (except
// the OAuth2-password-style login, which is form-encoded), and normalises
// every non-2xx response into *APIError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/echosysai/echosys-go/internal/resilience"
	"github.com/echosysai/echosys-go/internal/session"
	"github.com/echosysai/echosys-go/internal/telemetry"
)

const (
	// BackendName identifies the backend in breaker naming and monitoring.
	BackendName = "echosys"

	// DefaultBaseURL is the local development endpoint used when no base URL
	// is configured.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds each HTTP attempt.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds configuration for the API client.
type Config struct {
	// BaseURL is the backend base URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// Session supplies the bearer token. The client never reads ambient
	// process state for credentials; pass the store explicitly. Nil means a
	// fresh in-memory session.
	Session session.Store

	// HTTPClient overrides the transport for ALL requests (used in tests).
	// When nil, reads go through a resilient client with retry and circuit
	// breaking, and mutations use a plain timeout-bound client so they are
	// issued exactly once.
	HTTPClient HTTPDoer

	// Timeout is the per-attempt request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Monitor records request outcomes for availability reporting (optional).
	Monitor *resilience.Monitor

	// Instruments records per-operation metrics (optional).
	Instruments *telemetry.ClientInstruments

	// Tracer creates a span per operation (optional).
	Tracer trace.Tracer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is the EchoSys API client.
type Client struct {
	baseURL     string
	session     session.Store
	readClient  HTTPDoer
	writeClient HTTPDoer
	monitor     *resilience.Monitor
	instruments *telemetry.ClientInstruments
	tracer      trace.Tracer
	logger      zerolog.Logger

	// flight coalesces identical concurrent GETs; safe because all GETs on
	// this API are idempotent.
	flight singleflight.Group
}

// New creates a new API client.
func New(cfg Config) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	sess := cfg.Session
	if sess == nil {
		sess = session.NewMemoryStore()
	}

	readClient := cfg.HTTPClient
	writeClient := cfg.HTTPClient
	if cfg.HTTPClient == nil {
		clientCfg := resilience.DefaultClientConfig(BackendName)
		clientCfg.Timeout = timeout
		clientCfg.Monitor = cfg.Monitor
		resilient := resilience.NewClient(clientCfg)
		if cfg.Monitor != nil {
			cfg.Monitor.Attach(resilient)
		}
		readClient = resilient
		writeClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:     baseURL,
		session:     sess,
		readClient:  readClient,
		writeClient: writeClient,
		monitor:     cfg.Monitor,
		instruments: cfg.Instruments,
		tracer:      cfg.Tracer,
		logger:      cfg.Logger,
	}
}

// Session exposes the session store the client was built with.
func (c *Client) Session() session.Store {
	return c.session
}

// Availability returns the monitored backend availability, or nil when no
// monitor was configured.
func (c *Client) Availability() *resilience.Availability {
	if c.monitor == nil {
		return nil
	}
	return c.monitor.Snapshot()
}

// authMode states how an operation treats the bearer token.
type authMode int

const (
	// authNone never attaches a token.
	authNone authMode = iota
	// authOptional attaches the token when present.
	authOptional
	// authRequired fails locally with ErrNotAuthenticated when absent, so a
	// doomed request is never issued.
	authRequired
)

// bearer resolves the token for the given mode.
func (c *Client) bearer(mode authMode) (string, error) {
	if mode == authNone {
		return "", nil
	}
	token, ok := c.session.Token()
	if !ok {
		if mode == authRequired {
			return "", ErrNotAuthenticated
		}
		return "", nil
	}
	return token, nil
}

// get performs a GET, coalescing identical concurrent calls, and decodes the
// JSON response into out when out is non-nil.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, mode authMode, out any) error {
	token, err := c.bearer(mode)
	if err != nil {
		return err
	}

	ctx, finish := c.start(ctx, op)

	// The shared fetch is detached from any single caller's cancellation, so
	// the first caller canceling cannot poison the result for the others.
	// Each caller still honors its own context while waiting; the transport
	// timeout bounds the detached request.
	key := path + "?" + query.Encode() + "#" + token
	ch := c.flight.DoChan(key, func() (any, error) {
		return c.doGet(context.WithoutCancel(ctx), path, query, token)
	})

	select {
	case <-ctx.Done():
		finish(ctx.Err())
		return ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.logger.Debug().Str("op", op).Msg("coalesced duplicate in-flight read")
		}
		finish(res.Err)
		if res.Err != nil {
			return res.Err
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(res.Val.([]byte), out); err != nil {
			return fmt.Errorf("decoding %s response: %w", op, err)
		}
		return nil
	}
}

func (c *Client) doGet(ctx context.Context, path string, query url.Values, token string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.roundTrip(c.readClient, req, path)
}

// sendJSON performs a mutation (POST/PATCH/PUT/DELETE) with a JSON body.
// Mutations are issued exactly once: no retry, no idempotency key. Callers
// must guard against duplicate submission themselves.
func (c *Client) sendJSON(ctx context.Context, op, method, path string, body any, mode authMode, out any) error {
	token, err := c.bearer(mode)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	ctx, finish := c.start(ctx, op)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		finish(err)
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	respBody, err := c.roundTrip(c.writeClient, req, path)
	finish(err)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

// postForm performs a form-encoded POST. Only the login operation uses this:
// the auth endpoint implements the OAuth2 password flow, which takes
// application/x-www-form-urlencoded fields rather than JSON.
func (c *Client) postForm(ctx context.Context, op, path string, form url.Values, out any) error {
	ctx, finish := c.start(ctx, op)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		finish(err)
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	respBody, err := c.roundTrip(c.writeClient, req, path)
	finish(err)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

// roundTrip executes the request and returns the body of a 2xx response, or
// an *APIError for anything else the backend answered with.
func (c *Client) roundTrip(doer HTTPDoer, req *http.Request, path string) ([]byte, error) {
	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, body)
	}
	return body, nil
}

// start opens the per-operation span and returns a completion callback that
// records metrics and logs the outcome.
func (c *Client) start(ctx context.Context, op string) (context.Context, func(error)) {
	began := time.Now()
	var span trace.Span
	if c.tracer != nil {
		ctx, span = c.tracer.Start(ctx, "echosys."+op)
	}

	return ctx, func(err error) {
		duration := time.Since(began)
		status := 0
		if apiErr, ok := err.(*APIError); ok { //nolint:errorlint // direct construction site
			status = apiErr.Status
		}
		c.instruments.Record(ctx, op, status, duration, err != nil)
		if span != nil {
			if err != nil {
				span.RecordError(err)
			}
			span.End()
		}
		evt := c.logger.Debug()
		if err != nil {
			evt = c.logger.Warn().Err(err)
		}
		evt.Str("op", op).Dur("duration", duration).Msg("api operation finished")
	}
}
