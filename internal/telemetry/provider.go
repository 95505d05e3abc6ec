package telemetry

import (
	"context"
	"fmt"
	"io"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
)

// Providers bundles the SDK providers InitStdout installs, so the caller can
// flush and shut them down on exit.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// Shutdown flushes and closes both providers, logging neither error
// (the caller decides whether a shutdown failure is fatal).
func (p *Providers) Shutdown(ctx context.Context) error {
	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shut down tracer provider: %w", err)
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shut down meter provider: %w", err)
	}
	return nil
}

// InitStdout installs a stdout-exporting tracer and meter provider as the
// global otel providers, so the package-level Tracer/Meter vars start
// emitting instead of no-oping. Grounded on the teacher's go.mod, which
// carries the otel stdout exporters directly (no OTLP collector assumed for
// local/dev runs); a production deployment would swap these for an OTLP
// exporter pointed at the configured endpoint instead.
func InitStdout(w io.Writer) (*Providers, error) {
	traceExp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp))
	otel.SetTracerProvider(tp)

	metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create stdout metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
	otel.SetMeterProvider(mp)

	Tracer = otel.Tracer(instrumentationName)
	Meter = otel.Meter(instrumentationName)
	if err := reinitCycleCuts(); err != nil {
		return nil, err
	}
	return &Providers{TracerProvider: tp, MeterProvider: mp}, nil
}
