// Package progrock implements ports.VertexRecorder using
// github.com/vito/progrock: one vertex per Action (CORE A) or pipeline
// Node (CORE B), content-addressed by name via go-digest.
package progrock

import (
	"context"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.forgebuild.dev/forge/internal/core/ports"
)

// Recorder implements ports.VertexRecorder using a progrock tape.
type Recorder struct {
	w   progrock.Writer
	rec *progrock.Recorder
}

// New creates a Recorder writing to a fresh in-memory progrock tape.
func New() ports.VertexRecorder {
	return NewWithWriter(progrock.NewTape())
}

// NewWithWriter creates a Recorder writing to w (e.g. a progrock client
// connected to a terminal UI).
func NewWithWriter(w progrock.Writer) *Recorder {
	return &Recorder{w: w, rec: progrock.NewRecorder(w)}
}

// Record starts a new vertex named name, content-addressed by name so
// repeated runs of the same action/node reuse the same vertex digest.
func (r *Recorder) Record(ctx context.Context, name string) ports.Vertex {
	d := digest.FromString(name)
	return &Vertex{vertex: r.rec.Vertex(d, name)}
}

// Close flushes and closes the recording session.
func (r *Recorder) Close() error {
	if c, ok := r.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
