package plan

import (
	"log/slog"
	"sort"

	"github.com/GoCodeAlone/workflow/graph"
)

// outputKey indexes the builder's logical-to-physical output map: a
// (producing node's full handle string, output name) pair.
type outputKey struct {
	handle string
	output string
}

// builder accumulates steps and the logical-output-to-physical-handle map
// during one recursive descent (spec.md §4.5). It is discarded once Build
// hands its accumulated state off to the immutable ExecutionPlan.
type builder struct {
	pipelineName string
	envConfig    EnvironmentConfig
	logger       *slog.Logger

	stepsByKey map[string]*ExecutionStep
	stepOrder  []string
	outputMap  map[outputKey]StepOutputHandle
}

// BuildExecutionPlan compiles pipelineDef under mode and envConfig into an
// ExecutionPlan. stepKeysToExecute selects the execution subset; a nil slice
// selects every step built. This is the package's sole entry point (spec.md
// §4.5); it is single-threaded, deterministic, and pure with respect to its
// inputs (spec.md §5) and safe to call concurrently for distinct pipelines.
func BuildExecutionPlan(pipelineDef graph.PipelineDefinition, mode graph.ModeDefinition, envConfig EnvironmentConfig, stepKeysToExecute []string, logger *slog.Logger) (*ExecutionPlan, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := checkStorageAssetStoreGuard(pipelineDef.Name, mode, envConfig); err != nil {
		return nil, err
	}

	b := &builder{
		pipelineName: pipelineDef.Name,
		envConfig:    envConfig,
		logger:       logger,
		stepsByKey:   make(map[string]*ExecutionStep),
		outputMap:    make(map[outputKey]StepOutputHandle),
	}

	if err := b.build(pipelineDef.Nodes, pipelineDef.Deps, nil, nil); err != nil {
		return nil, err
	}

	depsByKey := make(map[string][]string, len(b.stepsByKey))
	for key, step := range b.stepsByKey {
		seen := map[string]bool{}
		for _, in := range step.Inputs {
			if in.Source.Kind != FromStepOutputKind && in.Source.Kind != FromMultipleSourcesKind {
				continue
			}
			for _, up := range in.Source.Upstream {
				if seen[up.StepKey] {
					continue
				}
				seen[up.StepKey] = true
				depsByKey[key] = append(depsByKey[key], up.StepKey)
			}
		}
		sort.Strings(depsByKey[key])
	}

	execute := stepKeysToExecute
	if execute == nil {
		execute = make([]string, len(b.stepOrder))
		copy(execute, b.stepOrder)
	}
	var missing []string
	for _, k := range execute {
		if _, ok := b.stepsByKey[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, &StepNotFoundError{MissingKeys: missing}
	}

	storageDef, hasStorage := envConfig.IntermediateStorageDefForMode(mode)
	artifactsPersistent := hasStorage && storageDef.Persistent

	logger.Debug("built execution plan",
		"pipeline", pipelineDef.Name,
		"mode", mode.Name,
		"steps", len(b.stepsByKey),
		"selected", len(execute),
	)

	return &ExecutionPlan{
		pipelineName:        pipelineDef.Name,
		stepsByKey:          b.stepsByKey,
		depsByKey:           depsByKey,
		stepKeysToExecute:   execute,
		artifactsPersistent: artifactsPersistent,
		environmentConfig:   envConfig,
	}, nil
}

// build is the single recursive descent of spec.md §4.5, generalized from
// its pseudocode: remappedInputs carries, for each not-yet-visited child
// node name, the already-resolved StepInputs of the enclosing graph's own
// inputs that InputMappings remaps onto that child (resolver rule 4).
func (b *builder) build(nodes []graph.Node, deps *graph.DependencyStructure, levelHandle *graph.Handle, remappedInputs map[string]map[string]*StepInput) error {
	order := graph.TopologicalOrder(nodes, deps)

	for _, n := range order {
		var handle graph.Handle
		if levelHandle == nil {
			handle = graph.NewHandle(n.Name())
		} else {
			handle = levelHandle.Child(n.Name())
		}

		nodeRemap := remappedInputs[n.Name()]

		var stepInputs []StepInput
		resolvedByName := map[string]*StepInput{}
		for _, in := range n.Inputs() {
			si, err := resolveStepInput(b.pipelineName, n, in, handle, levelHandle, deps, nodeRemap, b.outputMap, b.envConfig)
			if err != nil {
				return err
			}
			resolvedByName[in.Name] = si
			if si != nil {
				stepInputs = append(stepInputs, *si)
			}
		}

		switch v := n.(type) {
		case *graph.LeafNode:
			step := &ExecutionStep{
				Key:      handle.String(),
				Handle:   handle,
				NodeName: n.Name(),
				Inputs:   stepInputs,
				Outputs:  leafOutputs(v),
			}
			if err := b.addStep(step); err != nil {
				return err
			}
		case *graph.GraphNode:
			childRemap := map[string]map[string]*StepInput{}
			for graphInputName, ref := range v.InputMappings {
				resolved := resolvedByName[graphInputName]
				if resolved == nil {
					continue
				}
				if childRemap[ref.ChildName] == nil {
					childRemap[ref.ChildName] = map[string]*StepInput{}
				}
				childRemap[ref.ChildName][ref.InputName] = resolved
			}
			if err := b.build(v.Children, v.Deps, &handle, childRemap); err != nil {
				return err
			}
		default:
			return &InvariantViolation{Pipeline: b.pipelineName, Node: n.Name(), Msg: "unexpected node variant: neither LeafNode nor GraphNode"}
		}

		for _, out := range n.Outputs() {
			originDef, originHandle := n.ResolveOutputToOrigin(out.Name, handle)
			b.outputMap[outputKey{handle: handle.String(), output: out.Name}] = StepOutputHandle{
				StepKey: originHandle.String(),
				Output:  originDef.Name,
			}
		}
	}
	return nil
}

func leafOutputs(n *graph.LeafNode) []StepOutput {
	outs := make([]StepOutput, len(n.OutputDefs))
	for i, o := range n.OutputDefs {
		outs[i] = StepOutput{Name: o.Name, Type: o.Type}
	}
	return outs
}

// addStep records step, failing fast on a duplicate key (spec.md §4.5
// "Duplicate-key defense").
func (b *builder) addStep(step *ExecutionStep) error {
	if _, exists := b.stepsByKey[step.Key]; exists {
		keys := make([]string, 0, len(b.stepsByKey))
		for k := range b.stepsByKey {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return &DefinitionError{Pipeline: b.pipelineName, Node: step.NodeName, Msg: "duplicate step key " + step.Key + "; observed keys: " + sortedJoin(stringSet(keys))}
	}
	b.stepsByKey[step.Key] = step
	b.stepOrder = append(b.stepOrder, step.Key)
	return nil
}

func stringSet(keys []string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}

// checkStorageAssetStoreGuard implements spec.md §4.6: at most one of
// intermediate_storage or the mode's asset_store resource may be customized
// away from its sentinel default.
func checkStorageAssetStoreGuard(pipelineName string, mode graph.ModeDefinition, envConfig EnvironmentConfig) error {
	storageCustomized := !envConfig.UsesDefaultIntermediateStorage()
	assetStoreCustomized := !mode.UsesDefaultAssetStore()
	if storageCustomized && assetStoreCustomized {
		return &InvariantViolation{
			Pipeline: pipelineName,
			Msg:      "both intermediate_storage and the asset_store resource were customized away from their defaults; omit one",
		}
	}
	return nil
}
