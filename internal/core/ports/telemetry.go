package ports

import (
	"context"
	"io"
)

//go:generate go run go.uber.org/mock/mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Tracer is the entry point for creating spans around a build or pipeline
// run.
type Tracer interface {
	// Start creates a new span.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// EmitPlan signals that a set of action or node names is planned for
	// execution.
	EmitPlan(ctx context.Context, names []string)
}

// Span represents a unit of work: one action, one pipeline node.
type Span interface {
	io.Writer
	End()
	RecordError(err error)
	SetAttribute(key string, value any)
}

// SpanConfig holds configuration for a starting span.
type SpanConfig struct {
	Group string
}

// SpanOption is a functional option for configuring a span.
type SpanOption func(*SpanConfig)

// WithGroup sets the span's group label (CORE A's project name, CORE B's
// agent name).
func WithGroup(group string) SpanOption {
	return func(c *SpanConfig) { c.Group = group }
}
