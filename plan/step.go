package plan

import "github.com/GoCodeAlone/workflow/graph"

// StepOutputHandle names one step's named output (spec.md §3).
type StepOutputHandle struct {
	StepKey string
	Output  string
}

// StepInputSourceKind tags the four StepInput provenance variants (spec.md
// §3). Go has no tagged union; this mirrors the graph package's polymorphism
// design note by using an explicit kind discriminant instead, since unlike
// Node's {Leaf, Graph} split there is no natural method-set per variant to
// dispatch through.
type StepInputSourceKind int

const (
	// FromConfigKind: value literal parsed via the input's loader schema.
	FromConfigKind StepInputSourceKind = iota
	// FromStepOutputKind: resolved from exactly one upstream produced value.
	FromStepOutputKind
	// FromMultipleSourcesKind: fan-in from an ordered list of upstream
	// outputs, each checked for missing at execution time.
	FromMultipleSourcesKind
	// FromDefaultValueKind: the input definition's own declared default.
	FromDefaultValueKind
)

// StepInputSource is the resolved provenance of one StepInput. Exactly one
// set of fields is meaningful, selected by Kind:
//   - FromConfigKind:          ConfigValue
//   - FromStepOutputKind:      Upstream[0], CheckForMissing
//   - FromMultipleSourcesKind: Upstream (all legs), CheckForMissing (true for each)
//   - FromDefaultValueKind:    DefaultValue
type StepInputSource struct {
	Kind            StepInputSourceKind
	ConfigValue     any
	DefaultValue    any
	Upstream        []StepOutputHandle
	CheckForMissing bool
}

// StepInput is one resolved input slot of an ExecutionStep (spec.md §3).
type StepInput struct {
	Name   string
	Type   graph.ValueType
	Source StepInputSource
}

// StepOutput is one declared output slot of an ExecutionStep.
type StepOutput struct {
	Name string
	Type graph.ValueType
}

// ExecutionStep is one unit of the compiled Execution Plan: a step key
// (the originating node handle rendered as a string), the leaf node name it
// compiles, its resolved inputs, and its declared outputs (spec.md §3, §4.4).
type ExecutionStep struct {
	Key      string
	Handle   graph.Handle
	NodeName string
	Inputs   []StepInput
	Outputs  []StepOutput
}

// Input returns the named step input, if present.
func (s *ExecutionStep) Input(name string) (StepInput, bool) {
	for _, in := range s.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return StepInput{}, false
}

// Output returns the named step output, if declared.
func (s *ExecutionStep) Output(name string) (StepOutput, bool) {
	for _, out := range s.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return StepOutput{}, false
}
