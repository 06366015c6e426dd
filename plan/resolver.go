package plan

import "github.com/GoCodeAlone/workflow/graph"

// resolveStepInput implements the Input-Source Resolver of spec.md §4.3: the
// seven rules, applied in order, first match wins. A nil, nil result means
// rule 6 matched (NOTHING-kind input with nothing else resolving it) and no
// StepInput should be emitted at all.
func resolveStepInput(
	pipelineName string,
	node graph.Node,
	in graph.InputDef,
	handle graph.Handle,
	levelHandle *graph.Handle,
	deps *graph.DependencyStructure,
	remap map[string]*StepInput,
	outputMap map[outputKey]StepOutputHandle,
	envConfig EnvironmentConfig,
) (*StepInput, error) {
	ih := graph.InputHandle{NodeName: node.Name(), Input: in.Name}

	// Rule 1: environment config's solids.<handle>.inputs.<input_name>.
	if sc, ok := envConfig.SolidConfigAt(handle.String()); ok {
		if v, ok2 := sc.Inputs[in.Name]; ok2 {
			return &StepInput{
				Name: in.Name,
				Type: in.Type,
				Source: StepInputSource{
					Kind:        FromConfigKind,
					ConfigValue: v,
				},
			}, nil
		}
	}

	// Rule 2: singular upstream dependency.
	if up, ok := deps.GetSingularDep(ih); ok {
		return &StepInput{
			Name: in.Name,
			Type: in.Type,
			Source: StepInputSource{
				Kind:            FromStepOutputKind,
				Upstream:        []StepOutputHandle{resolveOutputHandle(levelHandle, up, outputMap)},
				CheckForMissing: false,
			},
		}, nil
	}

	// Rule 3: fan-in dependency.
	if deps.HasFanInDeps(ih) {
		ups := deps.GetFanInDeps(ih)
		legs := make([]StepOutputHandle, len(ups))
		for i, up := range ups {
			legs[i] = resolveOutputHandle(levelHandle, up, outputMap)
		}
		return &StepInput{
			Name: in.Name,
			Type: in.Type,
			Source: StepInputSource{
				Kind:            FromMultipleSourcesKind,
				Upstream:        legs,
				CheckForMissing: true,
			},
		}, nil
	}

	// Rule 4: remapped from the enclosing graph's own already-resolved input.
	if remap != nil {
		if resolved, ok := remap[in.Name]; ok && resolved != nil {
			return &StepInput{
				Name:   in.Name,
				Type:   in.Type,
				Source: resolved.Source,
			}, nil
		}
	}

	// Rule 5: input definition's own default.
	if in.HasDefault {
		return &StepInput{
			Name: in.Name,
			Type: in.Type,
			Source: StepInputSource{
				Kind:         FromDefaultValueKind,
				DefaultValue: in.DefaultValue,
			},
		}, nil
	}

	// Rule 6: NOTHING-kind type needs no value.
	if in.Type.Kind == graph.ValueKindNothing {
		return nil, nil
	}

	// Rule 7: unsatisfiable.
	return nil, &DefinitionError{
		Pipeline: pipelineName,
		Node:     node.Name(),
		Input:    in.Name,
		Msg:      "no config value, upstream dependency, remapped source, default, or NOTHING-kind type satisfies this input",
	}
}

// resolveOutputHandle turns a sibling-scoped OutputHandle into the physical
// StepOutputHandle of the leaf that actually produces it, using the
// builder's logical-to-physical map (populated as each sibling finishes
// processing, ahead of any consumer by topological order). If the producer
// hasn't been resolved yet — which would indicate a topological-order bug
// upstream — falls back to the producer's own logical handle so the plan
// still builds with a best-effort (if wrong) reference rather than panicking
// mid-traversal.
func resolveOutputHandle(levelHandle *graph.Handle, up graph.OutputHandle, outputMap map[outputKey]StepOutputHandle) StepOutputHandle {
	var producerHandle graph.Handle
	if levelHandle == nil {
		producerHandle = graph.NewHandle(up.NodeName)
	} else {
		producerHandle = levelHandle.Child(up.NodeName)
	}
	key := outputKey{handle: producerHandle.String(), output: up.Output}
	if resolved, ok := outputMap[key]; ok {
		return resolved
	}
	return StepOutputHandle{StepKey: producerHandle.String(), Output: up.Output}
}
