package graph

// InputHandle identifies one child node's input slot within a dependency
// structure (the child is named relative to the structure's own scope, not
// by a full pipeline Handle, matching dagster's SolidInputHandle being
// scoped to a single DependencyStructure).
type InputHandle struct {
	NodeName string
	Input    string
}

// OutputHandle identifies one sibling node's output slot within a
// dependency structure.
type OutputHandle struct {
	NodeName string
	Output   string
}

// DependencyStructure records, for each input handle of a child node, either
// no dependency, exactly one upstream output handle (singular), or an
// ordered list of upstream output handles (fan-in). Invariant: every
// referenced output handle names a sibling node's declared output — enforced
// by the graph builder, not by DependencyStructure itself.
type DependencyStructure struct {
	singular map[InputHandle]OutputHandle
	fanIn    map[InputHandle][]OutputHandle
}

// NewDependencyStructure builds an empty dependency structure.
func NewDependencyStructure() *DependencyStructure {
	return &DependencyStructure{
		singular: make(map[InputHandle]OutputHandle),
		fanIn:    make(map[InputHandle][]OutputHandle),
	}
}

// SetSingular records a single upstream dependency for in.
func (d *DependencyStructure) SetSingular(in InputHandle, out OutputHandle) {
	d.singular[in] = out
}

// SetFanIn records an ordered list of upstream dependencies for in.
func (d *DependencyStructure) SetFanIn(in InputHandle, outs []OutputHandle) {
	cp := make([]OutputHandle, len(outs))
	copy(cp, outs)
	d.fanIn[in] = cp
}

// HasSingularDep reports whether in has exactly one upstream dependency.
func (d *DependencyStructure) HasSingularDep(in InputHandle) bool {
	_, ok := d.singular[in]
	return ok
}

// GetSingularDep returns in's single upstream output handle.
func (d *DependencyStructure) GetSingularDep(in InputHandle) (OutputHandle, bool) {
	out, ok := d.singular[in]
	return out, ok
}

// HasFanInDeps reports whether in is a fan-in input.
func (d *DependencyStructure) HasFanInDeps(in InputHandle) bool {
	_, ok := d.fanIn[in]
	return ok
}

// GetFanInDeps returns in's ordered list of upstream output handles.
func (d *DependencyStructure) GetFanInDeps(in InputHandle) []OutputHandle {
	return d.fanIn[in]
}

// HasDeps reports whether in has any recorded dependency at all (singular or
// fan-in).
func (d *DependencyStructure) HasDeps(in InputHandle) bool {
	return d.HasSingularDep(in) || d.HasFanInDeps(in)
}
