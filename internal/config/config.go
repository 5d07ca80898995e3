// Package config reads ECHOSYS_* environment configuration with local
// development defaults.
package config

import (
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Client holds SDK/CLI configuration.
type Client struct {
	// BaseURL selects the backend host. Defaults to the local development
	// endpoint.
	BaseURL string

	// SessionPath is where the bearer token and last-used email persist.
	SessionPath string

	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
}

// ClientFromEnv builds client configuration from the environment.
func ClientFromEnv() Client {
	timeout, _ := time.ParseDuration(getEnvOrDefault("ECHOSYS_TIMEOUT", "10s"))
	home, _ := os.UserHomeDir()

	return Client{
		BaseURL:     getEnvOrDefault("ECHOSYS_API_URL", "http://localhost:8000"),
		SessionPath: getEnvOrDefault("ECHOSYS_SESSION_FILE", filepath.Join(home, ".echosys", "session.json")),
		Timeout:     timeout,
	}
}

// Server holds development API server configuration.
type Server struct {
	// Port the server listens on.
	Port string

	// Store selects the backing store: "memory" (seeded demo data) or
	// "postgres".
	Store string

	// JWTSigningKey signs issued access tokens.
	JWTSigningKey string

	// TokenLifetime is how long issued tokens are valid.
	TokenLifetime time.Duration

	// AuthRateLimit is the per-IP request budget per minute on the auth
	// endpoints.
	AuthRateLimit int
}

// ServerFromEnv builds server configuration from the environment.
func ServerFromEnv() Server {
	lifetime, _ := time.ParseDuration(getEnvOrDefault("ECHOSYS_TOKEN_LIFETIME", "24h"))
	rate, _ := strconv.Atoi(getEnvOrDefault("ECHOSYS_AUTH_RATE_LIMIT", "20"))

	return Server{
		Port:          getEnvOrDefault("ECHOSYS_PORT", "8000"),
		Store:         getEnvOrDefault("ECHOSYS_STORE", "memory"),
		JWTSigningKey: getEnvOrDefault("ECHOSYS_JWT_SIGNING_KEY", "local-dev-signing-key-change-in-production"),
		TokenLifetime: lifetime,
		AuthRateLimit: rate,
	}
}

// Worker holds sanity-test worker configuration.
type Worker struct {
	// Interval between scheduled runs.
	Interval time.Duration

	// Concurrency is the number of tests executed in parallel.
	Concurrency int

	// TestTimeout bounds each test execution.
	TestTimeout time.Duration

	// PubSubProject and PubSubSubscription enable the Pub/Sub trigger when
	// both are set.
	PubSubProject      string
	PubSubSubscription string

	// Email and Password authenticate the worker's API session. When empty
	// the worker registers a throwaway demo account instead.
	Email    string
	Password string
}

// WorkerFromEnv builds worker configuration from the environment.
func WorkerFromEnv() Worker {
	interval, _ := time.ParseDuration(getEnvOrDefault("ECHOSYS_WORKER_INTERVAL", "5m"))
	concurrency, _ := strconv.Atoi(getEnvOrDefault("ECHOSYS_WORKER_CONCURRENCY", "3"))
	testTimeout, _ := time.ParseDuration(getEnvOrDefault("ECHOSYS_TEST_TIMEOUT", "30s"))

	return Worker{
		Interval:           interval,
		Concurrency:        concurrency,
		TestTimeout:        testTimeout,
		PubSubProject:      os.Getenv("ECHOSYS_PUBSUB_PROJECT"),
		PubSubSubscription: os.Getenv("ECHOSYS_PUBSUB_SUBSCRIPTION"),
		Email:              os.Getenv("ECHOSYS_WORKER_EMAIL"),
		Password:           os.Getenv("ECHOSYS_WORKER_PASSWORD"),
	}
}

// Database holds the PostgreSQL settings for the development server's
// durable store.
type Database struct {
	// URL, when set, is used verbatim and the individual fields below are
	// ignored.
	URL string

	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	// MaxConns and MinConns bound the connection pool.
	MaxConns int32
	MinConns int32

	// ConnLifetime recycles pooled connections after this long.
	ConnLifetime time.Duration
}

// DatabaseFromEnv builds database configuration from the environment.
func DatabaseFromEnv() Database {
	maxConns, _ := strconv.Atoi(getEnvOrDefault("ECHOSYS_DB_MAX_CONNS", "10"))
	minConns, _ := strconv.Atoi(getEnvOrDefault("ECHOSYS_DB_MIN_CONNS", "2"))
	lifetime, _ := time.ParseDuration(getEnvOrDefault("ECHOSYS_DB_CONN_LIFETIME", "5m"))

	return Database{
		URL:          os.Getenv("ECHOSYS_DATABASE_URL"),
		Host:         getEnvOrDefault("ECHOSYS_DB_HOST", "localhost"),
		Port:         getEnvOrDefault("ECHOSYS_DB_PORT", "5432"),
		User:         getEnvOrDefault("ECHOSYS_DB_USER", "echosys"),
		Password:     getEnvOrDefault("ECHOSYS_DB_PASSWORD", "localdev"),
		Name:         getEnvOrDefault("ECHOSYS_DB_NAME", "echosys"),
		SSLMode:      getEnvOrDefault("ECHOSYS_DB_SSLMODE", "disable"),
		MaxConns:     int32(maxConns),
		MinConns:     int32(minConns),
		ConnLifetime: lifetime,
	}
}

// ConnString returns the connection string to dial: the explicit URL when
// set, otherwise one assembled from the individual fields with the
// credentials properly escaped.
func (d Database) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

// Telemetry holds observability configuration shared by every program.
type Telemetry struct {
	Enabled      bool
	OTLPEndpoint string
	Environment  string
}

// TelemetryFromEnv builds telemetry configuration from the environment.
func TelemetryFromEnv() Telemetry {
	return Telemetry{
		Enabled:      os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Environment:  getEnvOrDefault("ECHOSYS_ENV", "development"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
