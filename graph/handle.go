// Package graph models the Pipeline Definition: a DAG of Nodes (leaves and
// subgraphs), their input/output definitions, and the dependency structure
// connecting them. It is read-only input to schema synthesis and plan
// building and never mutated after construction.
package graph

import "strings"

// Handle is an ordered path of node names from the pipeline root, uniquely
// naming a node instance within the expanded tree. Two handles are equal iff
// their paths are (spec.md §3).
type Handle struct {
	Path []string
}

// NewHandle builds a root-level handle for name.
func NewHandle(name string) Handle {
	return Handle{Path: []string{name}}
}

// Child returns the handle for a node named name nested under h.
func (h Handle) Child(name string) Handle {
	path := make([]string, len(h.Path)+1)
	copy(path, h.Path)
	path[len(h.Path)] = name
	return Handle{Path: path}
}

// String renders the handle as its step-key form: path segments joined with
// ".", e.g. "outer.inner.leaf" (spec.md §6).
func (h Handle) String() string {
	return strings.Join(h.Path, ".")
}

// Equal reports whether h and o name the same node instance.
func (h Handle) Equal(o Handle) bool {
	if len(h.Path) != len(o.Path) {
		return false
	}
	for i := range h.Path {
		if h.Path[i] != o.Path[i] {
			return false
		}
	}
	return true
}

// Name returns the last path segment (this node's own name).
func (h Handle) Name() string {
	if len(h.Path) == 0 {
		return ""
	}
	return h.Path[len(h.Path)-1]
}
