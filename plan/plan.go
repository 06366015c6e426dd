package plan

import "sort"

// ExecutionPlan is the immutable, compiled output of the Plan Builder: a
// shared step dictionary, the dependency edges among them, which subset is
// selected for execution, and whether intermediate artifacts persist beyond
// process lifetime (spec.md §3). Subsetting (BuildSubsetPlan) produces a new
// plan sharing the same step dictionary, never copying or mutating steps.
type ExecutionPlan struct {
	pipelineName      string
	stepsByKey        map[string]*ExecutionStep
	depsByKey         map[string][]string // step key -> upstream step keys it reads from, full graph
	stepKeysToExecute []string
	artifactsPersistent bool
	environmentConfig EnvironmentConfig
}

// PipelineName returns the name of the pipeline this plan was built for.
func (p *ExecutionPlan) PipelineName() string { return p.pipelineName }

// ArtifactsPersistent reports whether the plan's chosen intermediate storage
// persists artifacts beyond process lifetime.
func (p *ExecutionPlan) ArtifactsPersistent() bool { return p.artifactsPersistent }

// EnvironmentConfig returns the parsed config this plan was built from.
func (p *ExecutionPlan) EnvironmentConfig() EnvironmentConfig { return p.environmentConfig }

// StepKeysToExecute returns the selected execution subset, in no particular
// order (callers needing determinism should use TopologicalStepLevels).
func (p *ExecutionPlan) StepKeysToExecute() []string {
	out := make([]string, len(p.stepKeysToExecute))
	copy(out, p.stepKeysToExecute)
	return out
}

// HasStep reports whether key names a step in the full step dictionary.
func (p *ExecutionPlan) HasStep(key string) bool {
	_, ok := p.stepsByKey[key]
	return ok
}

// GetStepByKey returns the step named by key.
func (p *ExecutionPlan) GetStepByKey(key string) (*ExecutionStep, bool) {
	s, ok := p.stepsByKey[key]
	return s, ok
}

// GetStepOutput returns the named output of the step named by handle.
func (p *ExecutionPlan) GetStepOutput(handle StepOutputHandle) (StepOutput, bool) {
	step, ok := p.stepsByKey[handle.StepKey]
	if !ok {
		return StepOutput{}, false
	}
	return step.Output(handle.Output)
}

// GetAssetStoreHandle and GetAssetStoreKey are lookups used by consumers
// that resolve a step output against a pluggable asset-store resource
// rather than the plan's own intermediate storage. This core never chooses
// between the two (that is the storage/asset-store consistency guard's
// job, §4.6); it only exposes the step output identity for the caller to
// key an external asset store by.
func (p *ExecutionPlan) GetAssetStoreHandle(handle StepOutputHandle) (StepOutputHandle, bool) {
	if _, ok := p.GetStepOutput(handle); !ok {
		return StepOutputHandle{}, false
	}
	return handle, true
}

// GetAssetStoreKey renders the handle into the flat key an external asset
// store would use, step key and output name joined by "/".
func (p *ExecutionPlan) GetAssetStoreKey(handle StepOutputHandle) string {
	return handle.StepKey + "/" + handle.Output
}

// ExecutionDeps returns depsByKey restricted to StepKeysToExecute (spec.md
// §4.4): an edge whose either endpoint falls outside the execution subset is
// dropped, since it refers to a step this plan run will not itself execute.
func (p *ExecutionPlan) ExecutionDeps() map[string][]string {
	selected := make(map[string]bool, len(p.stepKeysToExecute))
	for _, k := range p.stepKeysToExecute {
		selected[k] = true
	}
	out := make(map[string][]string, len(p.stepKeysToExecute))
	for _, k := range p.stepKeysToExecute {
		for _, dep := range p.depsByKey[k] {
			if selected[dep] {
				out[k] = append(out[k], dep)
			}
		}
	}
	return out
}

// TopologicalStepLevels groups the execution subset's step keys into layers
// ready to run together: standard layered toposort over ExecutionDeps, with
// keys in each level sorted lexicographically for determinism (spec.md
// §4.4, §5).
func (p *ExecutionPlan) TopologicalStepLevels() [][]string {
	deps := p.ExecutionDeps()
	remaining := make(map[string]bool, len(p.stepKeysToExecute))
	for _, k := range p.stepKeysToExecute {
		remaining[k] = true
	}

	var levels [][]string
	for len(remaining) > 0 {
		var level []string
		for k := range remaining {
			ready := true
			for _, dep := range deps[k] {
				if remaining[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, k)
			}
		}
		if len(level) == 0 {
			// Every remaining key depends on another remaining key: deps
			// forms a cycle, which should have been caught earlier by the
			// pipeline's own topological ordering. Fail loudly rather than
			// spin forever.
			panic("plan: cycle detected in execution deps; step keys stuck: " + sortedJoin(remaining))
		}
		sort.Strings(level)
		levels = append(levels, level)
		for _, k := range level {
			delete(remaining, k)
		}
	}
	return levels
}

func sortedJoin(set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += k
	}
	return out
}

// TopologicalSteps flattens TopologicalStepLevels back into a single
// execution-ready order, levels concatenated in order.
func (p *ExecutionPlan) TopologicalSteps() []*ExecutionStep {
	var out []*ExecutionStep
	for _, level := range p.TopologicalStepLevels() {
		for _, key := range level {
			out = append(out, p.stepsByKey[key])
		}
	}
	return out
}

// BuildSubsetPlan returns a new plan sharing this plan's step dictionary and
// dependency graph, with keys as its selected execution subset. Idempotent:
// calling it twice with the same keys yields equal plans (spec.md §8
// invariant 9). Error if any key is absent from the full step dictionary.
func (p *ExecutionPlan) BuildSubsetPlan(keys []string) (*ExecutionPlan, error) {
	var missing []string
	for _, k := range keys {
		if !p.HasStep(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, &StepNotFoundError{MissingKeys: missing}
	}

	cp := make([]string, len(keys))
	copy(cp, keys)
	return &ExecutionPlan{
		pipelineName:        p.pipelineName,
		stepsByKey:          p.stepsByKey,
		depsByKey:           p.depsByKey,
		stepKeysToExecute:   cp,
		artifactsPersistent: p.artifactsPersistent,
		environmentConfig:   p.environmentConfig,
	}, nil
}

// ResolveStepVersions delegates memoization-key computation for every step
// to an external versioning helper, keyed by step key (spec.md §4.4: "an
// external collaborator", out of scope for this core). versionOf must be
// deterministic and pure in the step's own definition.
func (p *ExecutionPlan) ResolveStepVersions(versionOf func(*ExecutionStep) string) map[string]string {
	out := make(map[string]string, len(p.stepsByKey))
	for key, step := range p.stepsByKey {
		out[key] = versionOf(step)
	}
	return out
}

// ResolveStepOutputVersions delegates per-output memoization-key computation
// the same way, keyed by StepOutputHandle rendered via GetAssetStoreKey.
func (p *ExecutionPlan) ResolveStepOutputVersions(versionOf func(*ExecutionStep, StepOutput) string) map[string]string {
	out := make(map[string]string)
	for _, step := range p.stepsByKey {
		for _, o := range step.Outputs {
			handle := StepOutputHandle{StepKey: step.Key, Output: o.Name}
			out[p.GetAssetStoreKey(handle)] = versionOf(step, o)
		}
	}
	return out
}
