package ports

import "context"

//go:generate go run go.uber.org/mock/mockgen -source=vertex.go -destination=mocks/mock_vertex.go -package=mocks

// VertexRecorder records live per-unit-of-work progress: one Vertex per
// pipeline Node (CORE B), independent of the Tracer's span tracing. CORE
// A's executor records no vertices.
type VertexRecorder interface {
	// Record starts a new vertex named name and returns it.
	Record(ctx context.Context, name string) Vertex

	// Close flushes and closes the recording session.
	Close() error
}

// Vertex is one recorded unit of work.
type Vertex interface {
	// Log appends a log line to the vertex's output.
	Log(line string)

	// Cached marks the vertex as a cache hit: it produced no new work.
	Cached()

	// Done marks the vertex as finished, with err non-nil on failure.
	Done(err error)
}
