package plan

import "fmt"

// DefinitionError is raised at schema- or plan-build time for problems
// inherent to the pipeline definition itself: a duplicate type name under
// two different variants, an input with no config value, no dependency, no
// default, and a non-NOTHING type, or a duplicate step key (spec.md §7).
type DefinitionError struct {
	Pipeline string
	Node     string
	Input    string
	Msg      string
}

func (e *DefinitionError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("definition error in pipeline %q: %s", e.Pipeline, e.Msg)
	}
	if e.Input == "" {
		return fmt.Sprintf("definition error in pipeline %q, node %q: %s", e.Pipeline, e.Node, e.Msg)
	}
	return fmt.Sprintf("definition error in pipeline %q, node %q, input %q: %s", e.Pipeline, e.Node, e.Input, e.Msg)
}

// InvariantViolation is raised for plan-time problems that indicate a
// violated structural invariant: an unsatisfiable input reached the
// resolver, mutually exclusive storage/asset-store customization, or an
// unexpected node variant (spec.md §7).
type InvariantViolation struct {
	Pipeline string
	Node     string
	Msg      string
}

func (e *InvariantViolation) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("invariant violation in pipeline %q: %s", e.Pipeline, e.Msg)
	}
	return fmt.Sprintf("invariant violation in pipeline %q, node %q: %s", e.Pipeline, e.Node, e.Msg)
}

// StepNotFoundError is raised when step_keys_to_execute names a key absent
// from the step dictionary (spec.md §7).
type StepNotFoundError struct {
	MissingKeys []string
}

func (e *StepNotFoundError) Error() string {
	return fmt.Sprintf("execution plan: step keys not found: %v", e.MissingKeys)
}
