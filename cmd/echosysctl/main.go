// Package main provides echosysctl, the command line interface to the EchoSys
// API: authentication, observability queries, project management, and
// scheduled sanity tests.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/echosysai/echosys-go/internal/client"
	"github.com/echosysai/echosys-go/internal/config"
	"github.com/echosysai/echosys-go/internal/resilience"
	"github.com/echosysai/echosys-go/internal/session"
)

var rootCmd = &cobra.Command{
	Use:           "echosysctl",
	Short:         "Command line interface to the EchoSys AI operations platform",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliLogger logs to stderr so command output on stdout stays parseable.
func cliLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if os.Getenv("ECHOSYS_DEBUG") == "true" {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// newAPI builds the API client with the persistent session file, so a login
// in one invocation carries over to the next.
func newAPI() (*client.Client, error) {
	cfg := config.ClientFromEnv()

	store, err := session.NewFileStore(cfg.SessionPath)
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}

	return client.New(client.Config{
		BaseURL: cfg.BaseURL,
		Session: store,
		Timeout: cfg.Timeout,
		Monitor: resilience.NewMonitor(client.BackendName),
		Logger:  cliLogger(),
	}), nil
}

// printJSON renders a value as indented JSON on stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
