package schema

import (
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/workflow/configschema"
	"github.com/GoCodeAlone/workflow/graph"
)

// EnvironmentCreationData bundles everything the synthesizer needs for one
// (pipeline, mode) build: the pipeline's name, its top-level nodes, the
// dependency structure wiring them, the chosen mode, and the nodes present
// in the definition but excluded from the current selection. Mirrors
// dagster's EnvironmentClassCreationData.
type EnvironmentCreationData struct {
	PipelineName string
	Nodes        []graph.Node
	Deps         *graph.DependencyStructure
	Mode         graph.ModeDefinition
	IgnoredNodes []graph.Node
}

// SynthesizeEnvironmentSchema produces the root Environment Shape and a
// frozen TypeRegistry for one (pipeline, mode) pair, per spec.md §4.2.
// The schema tree and type registry are built once and are immutable
// thereafter; this function holds no state across calls, so it is safe to
// call concurrently for different pipelines.
func SynthesizeEnvironmentSchema(data EnvironmentCreationData, logger *slog.Logger) (*configschema.Shape, *configschema.TypeRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	solidsField := defineSolidDictionaryField(data.Nodes, data.IgnoredNodes, data.Deps, nil)

	intermediateStorageField, err := defineIntermediateStorageField(data.Mode)
	if err != nil {
		return nil, nil, err
	}

	// Legacy alias: "storage" mirrors the same selector, always optional,
	// never defaulted. Preserved per spec.md §4.2 and the Open Question
	// decision in DESIGN.md ([[design-storage-alias]]).
	storageField := configschema.NewField(selectorForStorages(data.Mode.IntermediateStorages)).Required(false)

	executionField := configschema.NewField(selectorForExecutors(data.Mode.Executors)).Required(false)
	loggersField := defineLoggerDictionaryField(data.Mode)
	resourcesField := defineResourceDictionaryField(data.Mode)

	order := []string{"solids", "storage", "intermediate_storage", "execution", "loggers", "resources"}
	fields := map[string]*configschema.Field{
		"solids":               solidsField,
		"storage":              storageField,
		"intermediate_storage": intermediateStorageField,
		"execution":            executionField,
		"loggers":              loggersField,
		"resources":            resourcesField,
	}

	root := configschema.NewShape(order, configschema.RemoveNoneEntries(fields))

	registry := configschema.NewTypeRegistry(nil)
	if err := gatherConfigTypes(registry, root, data.Nodes); err != nil {
		return nil, nil, err
	}
	registry.Freeze()

	logger.Debug("synthesized environment schema",
		"pipeline", data.PipelineName,
		"mode", data.Mode.Name,
		"config_types", registry.Len(),
	)

	return root, registry, nil
}

// defineResourceDictionaryField builds the "resources" field: a Shape whose
// fields are {resource_name: Field(Shape({config?: resource_config_field}))}
// over every resource declared by the mode. A resource with no declared
// config still contributes a Shape with an empty field set.
func defineResourceDictionaryField(mode graph.ModeDefinition) *configschema.Field {
	order := make([]string, 0, len(mode.Resources))
	fields := make(map[string]*configschema.Field, len(mode.Resources))
	for _, r := range mode.Resources {
		order = append(order, r.Name)
		fields[r.Name] = resourceConfigField(r.ConfigField)
	}
	return configschema.NewField(configschema.NewShape(order, fields))
}

func resourceConfigField(configField *configschema.Field) *configschema.Field {
	inner := map[string]*configschema.Field{}
	if configField != nil {
		inner["config"] = configField
	}
	return configschema.NewField(configschema.NewShape([]string{"config"}, inner))
}

// defineLoggerDictionaryField builds the "loggers" field: a Shape over mode
// logger definitions, every field individually optional regardless of the
// logger's own config requirements (spec.md §4.2: "user may override none,
// some, or all").
func defineLoggerDictionaryField(mode graph.ModeDefinition) *configschema.Field {
	order := make([]string, 0, len(mode.Loggers))
	fields := make(map[string]*configschema.Field, len(mode.Loggers))
	for _, l := range mode.Loggers {
		order = append(order, l.Name)
		fields[l.Name] = resourceConfigField(l.ConfigField).Required(false)
	}
	return configschema.NewField(configschema.NewShape(order, fields))
}

func selectorForExecutors(executors []graph.ExecutorDef) *configschema.Selector {
	order := make([]string, len(executors))
	fields := make(map[string]*configschema.Field, len(executors))
	for i, e := range executors {
		order[i] = e.Name
		fields[e.Name] = resourceConfigField(e.ConfigField)
	}
	return configschema.NewSelector(order, fields)
}

func selectorForStorages(storages []graph.StorageDef) *configschema.Selector {
	order := make([]string, len(storages))
	fields := make(map[string]*configschema.Field, len(storages))
	for i, s := range storages {
		order[i] = s.Name
		fields[s.Name] = resourceConfigField(s.ConfigField)
	}
	return configschema.NewSelector(order, fields)
}

// defineIntermediateStorageField implements spec.md §4.2's defaulting rule
// for "intermediate_storage": optional with no default if the mode's
// storage set equals the sentinel default set; otherwise required, with a
// default chosen as the first declared storage whose own config is
// transitively optional, or no default if none qualifies.
func defineIntermediateStorageField(mode graph.ModeDefinition) (*configschema.Field, error) {
	selector := selectorForStorages(mode.IntermediateStorages)

	if mode.UsesDefaultStorageSet() {
		return configschema.NewField(selector).Required(false), nil
	}

	names := mode.StorageNames()
	if len(names) == 0 {
		return configschema.NewField(selector), nil
	}

	defName := names[0]
	field := selector.Field(defName)
	if field != nil && configschema.AllOptional(field.Type) {
		return configschema.NewField(selector).WithDefault(map[string]any{defName: map[string]any{}}), nil
	}
	return configschema.NewField(selector), nil
}

// defineSolidDictionaryField builds the recursive "solids" Shape: one field
// per child node that declares any configurable surface (spec.md §4.2).
// remapped maps a node's own name to the set of its input names that an
// *enclosing* GraphNode has remapped to its own inputs (via InputMappings),
// and so must be excluded from that node's own "inputs" field here — the
// same input is configurable one level up instead (spec.md §4.3 rule 4).
func defineSolidDictionaryField(nodes []graph.Node, ignored []graph.Node, deps *graph.DependencyStructure, remapped map[string]map[string]bool) *configschema.Field {
	order := []string{}
	fields := map[string]*configschema.Field{}

	for _, n := range nodes {
		f := defineIsolidField(n, deps, false, remapped[n.Name()])
		if isEmptySolidField(f) {
			continue
		}
		order = append(order, n.Name())
		fields[n.Name()] = f
	}
	for _, n := range ignored {
		// An ignored node always keeps its entry, even an empty one, since
		// the entry itself (optional, description-tagged) is the signal that
		// config values for it are tolerated but inert.
		order = append(order, n.Name())
		fields[n.Name()] = defineIsolidField(n, deps, true, remapped[n.Name()])
	}

	return configschema.NewField(configschema.NewShape(order, fields))
}

// childInputMappingExclusions turns a GraphNode's own InputMappings (keyed
// by the graph's input name) into the shape defineSolidDictionaryField needs
// for its children: child node name -> set of that child's own input names
// remapped up to the graph, per spec.md §4.3 rule 4.
func childInputMappingExclusions(v *graph.GraphNode) map[string]map[string]bool {
	if len(v.InputMappings) == 0 {
		return nil
	}
	out := map[string]map[string]bool{}
	for _, ref := range v.InputMappings {
		set, ok := out[ref.ChildName]
		if !ok {
			set = map[string]bool{}
			out[ref.ChildName] = set
		}
		set[ref.InputName] = true
	}
	return out
}

// isEmptySolidField reports whether f wraps a Shape with no fields at all,
// meaning the node it describes has nothing left to configure once
// dependency-satisfied inputs and unmaterialized outputs are filtered out.
func isEmptySolidField(f *configschema.Field) bool {
	if f == nil {
		return true
	}
	shape, ok := f.Type.(*configschema.Shape)
	if !ok {
		return false
	}
	return shape.Len() == 0
}

// defineIsolidField dispatches on node variant per spec.md §4.2:
//   - Leaf node: {config?, inputs?, outputs?}
//   - Graph node with config mapping (or `configured`): same leaf treatment
//     using the graph's exposed config schema
//   - Graph node without config mapping: {inputs?, outputs?, solids}
//   - Ignored node: same shape, but the enclosing Field is optional and
//     description-tagged.
// excluded is the set of n's own input names that an enclosing GraphNode has
// already remapped up to its own inputs (nil if n has no enclosing graph, or
// the enclosing graph remaps none of n's inputs).
func defineIsolidField(n graph.Node, deps *graph.DependencyStructure, ignored bool, excluded map[string]bool) *configschema.Field {
	switch v := n.(type) {
	case *graph.LeafNode:
		return leafSolidConfigField(v, deps, ignored, excluded)
	case *graph.GraphNode:
		if v.HasConfigMapping() {
			return leafSolidConfigField(v, deps, ignored, excluded)
		}
		childSolids := defineSolidDictionaryField(v.Children, nil, v.Deps, childInputMappingExclusions(v))
		if isEmptySolidField(childSolids) {
			childSolids = nil
		}
		innerOrder := []string{"inputs", "outputs", "solids"}
		innerFields := map[string]*configschema.Field{
			"inputs":  getInputsField(v, deps, excluded),
			"outputs": getOutputsField(v),
			"solids":  childSolids,
		}
		shape := configschema.NewShape(innerOrder, configschema.RemoveNoneEntries(innerFields))
		return solidConfigField(shape, ignored)
	default:
		// Unexpected node variant: treat conservatively as a bare leaf with
		// no configurable surface rather than panicking at schema-build
		// time; plan building will raise InvariantViolation if it matters.
		return configschema.NewField(configschema.NewShape(nil, nil)).Required(false)
	}
}

func leafSolidConfigField(n graph.Node, deps *graph.DependencyStructure, ignored bool, excluded map[string]bool) *configschema.Field {
	order := []string{"config", "inputs", "outputs"}
	fields := map[string]*configschema.Field{
		"config":  n.ConfigField(),
		"inputs":  getInputsField(n, deps, excluded),
		"outputs": getOutputsField(n),
	}
	shape := configschema.NewShape(order, configschema.RemoveNoneEntries(fields))
	return solidConfigField(shape, ignored)
}

func solidConfigField(shape *configschema.Shape, ignored bool) *configschema.Field {
	f := configschema.NewField(shape)
	if ignored {
		f = f.Required(false)
		f.Description = "This node is not present in the current node selection, the config values are allowed but ignored."
	}
	return f
}

// getInputsField builds the "inputs" field: one field per input whose type
// has a loader AND is not satisfied by the dependency structure AND is not
// remapped into an *enclosing* graph (spec.md §4.2). excluded names n's own
// inputs an enclosing GraphNode has claimed via its own InputMappings; it is
// nil when n has no enclosing graph or none of its inputs are remapped.
func getInputsField(n graph.Node, deps *graph.DependencyStructure, excluded map[string]bool) *configschema.Field {
	fields := map[string]*configschema.Field{}
	order := []string{}

	for _, in := range n.Inputs() {
		if !in.Type.HasLoader() {
			continue
		}
		ih := graph.InputHandle{NodeName: n.Name(), Input: in.Name}
		if deps.HasDeps(ih) {
			continue
		}
		if excluded[in.Name] {
			continue
		}
		order = append(order, in.Name)
		fields[in.Name] = configschema.NewField(in.Type.Loader.SchemaType).Required(!in.HasDefault)
	}

	if len(order) == 0 {
		return nil
	}
	return configschema.NewField(configschema.NewShape(order, fields))
}

// getOutputsField builds the "outputs" field: an Array of Shapes, one
// optional entry per output whose type has a materializer (spec.md §4.2).
func getOutputsField(n graph.Node) *configschema.Field {
	order := []string{}
	fields := map[string]*configschema.Field{}
	for _, out := range n.Outputs() {
		if !out.Type.HasMaterializer() {
			continue
		}
		order = append(order, out.Name)
		fields[out.Name] = configschema.NewField(out.Type.Materializer.SchemaType).Required(false)
	}
	if len(order) == 0 {
		return nil
	}
	entry := configschema.NewShape(order, fields)
	return configschema.NewField(&configschema.Array{Of: entry}).Required(false)
}

// gatherConfigTypes collects every config type reachable from the
// environment shape and from every node's config field and every
// loader/materializer schema of every reachable value type, indexing them
// into registry (spec.md §4.2 "Type registry assembly").
func gatherConfigTypes(registry *configschema.TypeRegistry, root configschema.Type, nodes []graph.Node) error {
	for _, t := range configschema.IterateConfigTypes(root) {
		if err := addType(registry, t); err != nil {
			return fmt.Errorf("synthesizing environment schema: %w", err)
		}
	}

	var walkNode func(n graph.Node) error
	walkNode = func(n graph.Node) error {
		if n.ConfigField() != nil {
			for _, t := range configschema.IterateConfigTypes(n.ConfigField().Type) {
				if err := addType(registry, t); err != nil {
					return fmt.Errorf("synthesizing environment schema: %w", err)
				}
			}
		}
		for _, in := range n.Inputs() {
			if in.Type.HasLoader() {
				for _, t := range configschema.IterateConfigTypes(in.Type.Loader.SchemaType) {
					if err := addType(registry, t); err != nil {
						return err
					}
				}
			}
		}
		for _, out := range n.Outputs() {
			if out.Type.HasMaterializer() {
				for _, t := range configschema.IterateConfigTypes(out.Type.Materializer.SchemaType) {
					if err := addType(registry, t); err != nil {
						return err
					}
				}
			}
		}
		if g, ok := n.(*graph.GraphNode); ok {
			for _, child := range g.Children {
				if err := walkNode(child); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, n := range nodes {
		if err := walkNode(n); err != nil {
			return err
		}
	}
	return nil
}

func addType(registry *configschema.TypeRegistry, t configschema.Type) error {
	if t == nil {
		return nil
	}
	return registry.Add(t)
}
