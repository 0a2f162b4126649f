package progrock

import (
	"fmt"

	"github.com/vito/progrock"
)

// Vertex implements ports.Vertex wrapping a *progrock.VertexRecorder.
type Vertex struct {
	vertex *progrock.VertexRecorder
}

// Log appends a log line to the vertex's stdout stream.
func (v *Vertex) Log(line string) {
	fmt.Fprintln(v.vertex.Stdout(), line)
}

// Cached marks the vertex as a cache hit.
func (v *Vertex) Cached() {
	v.vertex.Cached()
}

// Done marks the vertex as finished, with err non-nil on failure.
func (v *Vertex) Done(err error) {
	v.vertex.Done(err)
}
