package graph

import "github.com/GoCodeAlone/workflow/configschema"

// Node is the shared capability set of a pipeline graph node: either a
// LeafNode (a unit of computation) or a GraphNode (a named subgraph). This
// tagged-sum-via-interface mirrors spec.md §9's "Polymorphism over node
// variants" design note; callers type-switch on the concrete type rather
// than dispatching through virtual methods for variant-specific behavior.
type Node interface {
	Name() string
	Inputs() []InputDef
	Outputs() []OutputDef

	// ConfigField returns the node's own declared config field, or nil if it
	// has no configurable surface of its own (a GraphNode without a config
	// mapping reports nil here; its children carry their own fields).
	ConfigField() *configschema.Field

	// HasConfigurableSurface reports whether this node contributes anything
	// to the synthesized "solids" shape at all: a config field, configurable
	// inputs, or configurable outputs.
	HasConfigurableSurface() bool

	// ResolveOutputToOrigin punches through composition layers to find the
	// leaf node and leaf-local output name that actually produces
	// outputName, starting resolution at this node reached via handle
	// (spec.md §4.4).
	ResolveOutputToOrigin(outputName string, handle Handle) (OutputDef, Handle)
}

// LeafNode is a unit of computation: a config schema, an ordered input set,
// and an ordered output set.
type LeafNode struct {
	NodeName     string
	InputDefs    []InputDef
	OutputDefs   []OutputDef
	Config       *configschema.Field // nil if this leaf takes no config
}

func NewLeafNode(name string, inputs []InputDef, outputs []OutputDef, config *configschema.Field) *LeafNode {
	return &LeafNode{NodeName: name, InputDefs: inputs, OutputDefs: outputs, Config: config}
}

func (n *LeafNode) Name() string              { return n.NodeName }
func (n *LeafNode) Inputs() []InputDef        { return n.InputDefs }
func (n *LeafNode) Outputs() []OutputDef      { return n.OutputDefs }
func (n *LeafNode) ConfigField() *configschema.Field { return n.Config }

func (n *LeafNode) HasConfigurableSurface() bool {
	if n.Config != nil {
		return true
	}
	for _, in := range n.InputDefs {
		if in.Type.HasLoader() {
			return true
		}
	}
	for _, out := range n.OutputDefs {
		if out.Type.HasMaterializer() {
			return true
		}
	}
	return false
}

// ResolveOutputToOrigin on a leaf is the identity: the leaf itself produces
// its own declared outputs.
func (n *LeafNode) ResolveOutputToOrigin(outputName string, handle Handle) (OutputDef, Handle) {
	for _, out := range n.OutputDefs {
		if out.Name == outputName {
			return out, handle
		}
	}
	return OutputDef{}, handle
}

// ConfigMapping translates an outer, user-visible config value into the
// per-child config maps of a GraphNode's children. When present, the graph
// presents a single config schema (ConfigField) and hides its children from
// config (spec.md §3).
type ConfigMapping struct {
	// ConfigField is the schema exposed to the outer config in place of the
	// graph's children.
	ConfigField *configschema.Field

	// Map converts a parsed outer config value into the set of child config
	// values, keyed by child node name. Dagster's original is an arbitrary
	// Python callable; here it is a Go func so a GraphNode can be built
	// programmatically or backed by an expr-lang/expr expression compiled
	// at graph-construction time (see plan.CompileConfigMappingExpr).
	Map func(outer any) (map[string]map[string]any, error)
}

// GraphNode is a named subgraph containing child nodes and a dependency
// structure mapping child inputs to child outputs.
type GraphNode struct {
	NodeName   string
	Children   []Node
	Deps       *DependencyStructure
	InputDefs  []InputDef
	OutputDefs []OutputDef

	// Mapping is non-nil for a "configured" composite or a composite with an
	// explicit config mapping (spec.md §4.2 cases 2 & 4).
	Mapping *ConfigMapping

	// InputMappings remaps this graph's own inputs to a child's input, so
	// FromConfig/FromDefaultValue resolution reused at the parent level can
	// flow down into the child (spec.md §4.3 rule 4). Keyed by this node's
	// input name, valued by the child node name + child input name.
	InputMappings map[string]ChildInputRef

	// OutputMappings records which child/output pair produces each of this
	// graph's own declared outputs, so ResolveOutputToOrigin can punch
	// through this composition layer (spec.md §4.4).
	OutputMappings map[string]ChildOutputRef
}

// ChildInputRef names a child node's input slot, used by a GraphNode's
// InputMappings.
type ChildInputRef struct {
	ChildName string
	InputName string
}

// ChildOutputRef names a child node's output slot, used by a GraphNode's
// OutputMappings.
type ChildOutputRef struct {
	ChildName  string
	OutputName string
}

func (n *GraphNode) Name() string         { return n.NodeName }
func (n *GraphNode) Inputs() []InputDef   { return n.InputDefs }
func (n *GraphNode) Outputs() []OutputDef { return n.OutputDefs }

func (n *GraphNode) ConfigField() *configschema.Field {
	if n.Mapping != nil {
		return n.Mapping.ConfigField
	}
	return nil
}

func (n *GraphNode) HasConfigMapping() bool { return n.Mapping != nil }

func (n *GraphNode) HasConfigurableSurface() bool {
	if n.Mapping != nil {
		return true
	}
	for _, in := range n.InputDefs {
		if in.Type.HasLoader() {
			return true
		}
	}
	for _, out := range n.OutputDefs {
		if out.Type.HasMaterializer() {
			return true
		}
	}
	for _, child := range n.Children {
		if child.HasConfigurableSurface() {
			return true
		}
	}
	return false
}

// ResolveOutputToOrigin finds which child node ultimately produces
// outputName. Graph output names are expected to be wired 1:1 to exactly one
// child's output; the graph's own OutputDefs name records which child/output
// pair that is, discovered via Deps at construction time and stored on the
// GraphNode itself through OutputMappings.
func (n *GraphNode) ResolveOutputToOrigin(outputName string, handle Handle) (OutputDef, Handle) {
	mapped, ok := n.OutputMappings[outputName]
	if !ok {
		return OutputDef{}, handle
	}
	childHandle := handle.Child(mapped.ChildName)
	for _, child := range n.Children {
		if child.Name() == mapped.ChildName {
			return child.ResolveOutputToOrigin(mapped.OutputName, childHandle)
		}
	}
	return OutputDef{}, handle
}
