package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const sdkMeterName = "github.com/echosysai/echosys-go/internal/client"

// ClientInstruments holds the instruments the API client records per
// operation.
type ClientInstruments struct {
	opDuration metric.Float64Histogram
	opTotal    metric.Int64Counter
	opErrors   metric.Int64Counter
}

// NewClientInstruments creates the client-side instruments on the global
// meter.
func NewClientInstruments() (*ClientInstruments, error) {
	meter := otel.Meter(sdkMeterName)

	opDuration, err := meter.Float64Histogram(
		"echosys.client.operation.duration",
		metric.WithDescription("Duration of EchoSys API operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	opTotal, err := meter.Int64Counter(
		"echosys.client.operation.total",
		metric.WithDescription("Total number of EchoSys API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	opErrors, err := meter.Int64Counter(
		"echosys.client.operation.errors",
		metric.WithDescription("Number of failed EchoSys API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	return &ClientInstruments{
		opDuration: opDuration,
		opTotal:    opTotal,
		opErrors:   opErrors,
	}, nil
}

// Record registers one completed operation. Safe on a nil receiver so the
// client can run without telemetry wired.
func (ci *ClientInstruments) Record(ctx context.Context, op string, status int, duration time.Duration, failed bool) {
	if ci == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("echosys.operation", op),
		attribute.Int("http.response.status_code", status),
	)
	ci.opTotal.Add(ctx, 1, attrs)
	ci.opDuration.Record(ctx, duration.Seconds(), attrs)
	if failed {
		ci.opErrors.Add(ctx, 1, attrs)
	}
}
