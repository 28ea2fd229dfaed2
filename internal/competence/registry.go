package competence

import (
	"errors"
	"sync/atomic"
)

// ErrNoGraph is returned by Registry.Current before any graph is installed.
var ErrNoGraph = errors.New("no competence graph installed")

// Registry holds the process-wide graph. Curriculum updates build a new
// graph off to the side and Swap it in; readers never observe a partially
// built graph.
type Registry struct {
	current atomic.Pointer[Graph]
	version atomic.Int64
}

// NewRegistry creates a registry holding g.
func NewRegistry(g *Graph) *Registry {
	r := &Registry{}
	if g != nil {
		r.Swap(g)
	}
	return r
}

// Current returns the installed graph.
func (r *Registry) Current() (*Graph, error) {
	g := r.current.Load()
	if g == nil {
		return nil, ErrNoGraph
	}
	return g, nil
}

// Swap installs g under the next version number and returns that version.
// The registry stores a versioned copy, so g itself is left untouched and
// may be installed in several registries.
func (r *Registry) Swap(g *Graph) int64 {
	v := r.version.Add(1)
	installed := *g
	installed.version = v
	r.current.Store(&installed)
	return v
}
