package plan

import "github.com/GoCodeAlone/workflow/graph"

// SolidConfig is the per-node slice of a parsed Environment Config: the
// node's own config value (if any), the literal values supplied for its
// configurable inputs, and the materialization config for its outputs, all
// already validated against the synthesized schema (spec.md §6). Plan
// building never validates; it only reads.
type SolidConfig struct {
	Config  any
	Inputs  map[string]any
	Outputs []map[string]any
}

// StorageSelection is a parsed Selector value: the chosen variant's name,
// its config, and whether the field was actually set by the user at all
// (Set distinguishes "user picked the default variant explicitly" cases
// from "field entirely absent", relevant to the storage/asset-store guard).
type StorageSelection struct {
	Set    bool
	Name   string
	Config any
}

// EnvironmentConfig is the post-parse representation of a run's config,
// shaped exactly like the schema synthesizer's Environment Shape (spec.md
// §6). It is the plan builder's only access to user-supplied values.
type EnvironmentConfig struct {
	Solids              map[string]SolidConfig
	IntermediateStorage StorageSelection
	Storage             StorageSelection // legacy alias, see spec.md §4.2
	Resources           map[string]any
}

// SolidConfigAt returns the parsed config for the node at handle, if any was
// supplied.
func (e EnvironmentConfig) SolidConfigAt(handle string) (SolidConfig, bool) {
	sc, ok := e.Solids[handle]
	return sc, ok
}

// EffectiveIntermediateStorage resolves the intermediate_storage/storage
// alias pair into a single selection: intermediate_storage wins when both
// are set (the mutual-exclusion guard in the plan builder rejects that
// combination outright, so in practice at most one is ever set).
func (e EnvironmentConfig) EffectiveIntermediateStorage() StorageSelection {
	if e.IntermediateStorage.Set {
		return e.IntermediateStorage
	}
	return e.Storage
}

// IntermediateStorageDefForMode returns the StorageDef named by the
// effective intermediate_storage selection within mode, or false if either
// nothing was selected or the named storage isn't declared by mode.
func (e EnvironmentConfig) IntermediateStorageDefForMode(mode graph.ModeDefinition) (graph.StorageDef, bool) {
	sel := e.EffectiveIntermediateStorage()
	if !sel.Set {
		return graph.StorageDef{}, false
	}
	return mode.StorageByName(sel.Name)
}

// UsesDefaultIntermediateStorage reports whether the effective selection is
// unset or names the sentinel default storage ("in_memory"), per the
// storage/asset-store consistency guard in spec.md §4.6. This is distinct
// from ModeDefinition.UsesDefaultStorageSet, which compares the mode's
// *declared set* of storage names against the default pair.
func (e EnvironmentConfig) UsesDefaultIntermediateStorage() bool {
	sel := e.EffectiveIntermediateStorage()
	return !sel.Set || sel.Name == graph.DefaultAssetStoreName
}
