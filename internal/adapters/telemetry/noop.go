package telemetry

import (
	"context"

	"go.forgebuild.dev/forge/internal/core/ports"
)

// NoOpTracer implements ports.Tracer doing nothing. The graft wiring
// always registers the OTel tracer; NoOpTracer serves components built
// by hand, such as the pipeline runtime tests.
type NoOpTracer struct{}

// NewNoOpTracer creates a NoOpTracer.
func NewNoOpTracer() *NoOpTracer { return &NoOpTracer{} }

func (t *NoOpTracer) Start(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	return ctx, &NoOpSpan{}
}

func (t *NoOpTracer) EmitPlan(_ context.Context, _ []string) {}

// NoOpSpan implements ports.Span doing nothing.
type NoOpSpan struct{}

func (s *NoOpSpan) End()                         {}
func (s *NoOpSpan) RecordError(_ error)          {}
func (s *NoOpSpan) SetAttribute(_ string, _ any) {}
func (s *NoOpSpan) Write(p []byte) (int, error)  { return len(p), nil }
