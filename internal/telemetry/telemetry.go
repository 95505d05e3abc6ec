// Package telemetry wires the shared tracer and meter used by the
// deletion engine and index lifecycle. Grounded on the teacher's
// internal/storage/dolt/store.go, which declares package-level
// otel.Tracer("...")/otel.Meter("...") vars and uses them directly from
// storage methods rather than threading a telemetry object through every
// call.
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/catalogkit/depengine"

// Tracer is the shared tracer for spans around PerformDeletion and index
// lifecycle operations.
var Tracer trace.Tracer = otel.Tracer(instrumentationName)

// Meter is the shared meter for counters such as the cycle-cut count
// findAutoDeletable reports.
var Meter metric.Meter = otel.Meter(instrumentationName)

// CycleCuts counts the number of times findAutoDeletable's
// okToDelete.ContainsOrParent check short-circuited a re-visit during Phase
// A, across the process. Before InitStdout it is a no-op instrument, which
// is safe to record against.
var CycleCuts metric.Int64Counter

func init() {
	if err := reinitCycleCuts(); err != nil {
		panic(err)
	}
}

// reinitCycleCuts (re)creates the CycleCuts instrument against the current
// Meter. Called from init() against the default no-op meter, and again from
// InitStdout once a real MeterProvider has been installed.
func reinitCycleCuts() error {
	c, err := Meter.Int64Counter(
		"depengine.deletion.cycle_cuts",
		metric.WithDescription("number of times Phase A's auto-deletable pre-scan cut a cycle instead of re-visiting"),
	)
	if err != nil {
		return err
	}
	CycleCuts = c
	return nil
}
