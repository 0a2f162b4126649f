package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Configure installs an otel/sdk TracerProvider as the global provider
// and returns a shutdown func to flush and release it on exit. Callers
// that never configure an exporter still get valid span contexts and
// sampling decisions from the SDK; wiring a real exporter (OTLP, etc.)
// is a matter of adding a sdktrace.WithBatcher option here.
func Configure() (shutdown func(context.Context) error) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
