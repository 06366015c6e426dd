package graph

import "github.com/GoCodeAlone/workflow/configschema"

// ResourceDef declares a named resource and its optional config schema.
// A resource with no declared config still contributes an (empty) entry to
// the synthesized resources shape (spec.md §4.2).
type ResourceDef struct {
	Name        string
	ConfigField *configschema.Field // nil if the resource takes no config
}

// HasConfig reports whether this resource declares a config field.
func (r ResourceDef) HasConfig() bool { return r.ConfigField != nil }

// LoggerDef declares a named logger and its optional config schema.
type LoggerDef struct {
	Name        string
	ConfigField *configschema.Field
}

func (l LoggerDef) HasConfig() bool { return l.ConfigField != nil }

// ExecutorDef declares a named executor and its optional config schema.
type ExecutorDef struct {
	Name        string
	ConfigField *configschema.Field
}

func (e ExecutorDef) HasConfig() bool { return e.ConfigField != nil }

// StorageDef declares a named intermediate storage backend, its optional
// config schema, and whether it persists artifacts beyond process lifetime
// (used by the storage/asset-store consistency guard and
// ExecutionPlan.ArtifactsPersistent).
type StorageDef struct {
	Name        string
	ConfigField *configschema.Field
	Persistent  bool
}

func (s StorageDef) HasConfig() bool { return s.ConfigField != nil }

// DefaultIntermediateStorageNames is the sentinel default storage set: when
// a mode's declared storage names equal this set exactly, the
// intermediate_storage field is optional with no default (spec.md §4.2).
var DefaultIntermediateStorageNames = []string{"in_memory", "filesystem"}

// DefaultAssetStoreName is the sentinel default asset-store resource name
// used by the storage/asset-store mutual exclusion guard (spec.md §4.6).
const DefaultAssetStoreName = "in_memory"

// ModeDefinition names the resources, loggers, executors, and intermediate
// storage backends available in one execution mode of a pipeline. The
// schema synthesizer and plan builder both take a (PipelineDefinition,
// ModeDefinition) pair as their root input.
type ModeDefinition struct {
	Name                 string
	Resources            []ResourceDef
	Loggers              []LoggerDef
	Executors            []ExecutorDef
	IntermediateStorages []StorageDef

	// AssetStoreResourceName names which declared resource plays the
	// asset-store role for this mode. Empty means the mode has not rebound
	// it away from DefaultAssetStoreName (spec.md §4.6).
	AssetStoreResourceName string
}

// UsesDefaultAssetStore reports whether the mode's asset-store binding is
// unset or still the sentinel default (spec.md §4.6's storage/asset-store
// mutual exclusion guard).
func (m ModeDefinition) UsesDefaultAssetStore() bool {
	return m.AssetStoreResourceName == "" || m.AssetStoreResourceName == DefaultAssetStoreName
}

// ResourceByName returns the named resource definition, if declared.
func (m ModeDefinition) ResourceByName(name string) (ResourceDef, bool) {
	for _, r := range m.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return ResourceDef{}, false
}

// StorageByName returns the named intermediate storage definition, if
// declared.
func (m ModeDefinition) StorageByName(name string) (StorageDef, bool) {
	for _, s := range m.IntermediateStorages {
		if s.Name == name {
			return s, true
		}
	}
	return StorageDef{}, false
}

// StorageNames returns the declared intermediate storage names in order.
func (m ModeDefinition) StorageNames() []string {
	names := make([]string, len(m.IntermediateStorages))
	for i, s := range m.IntermediateStorages {
		names[i] = s.Name
	}
	return names
}

// UsesDefaultStorageSet reports whether this mode's storage names are
// exactly the sentinel default set (spec.md §4.2's `defaults` comparison).
func (m ModeDefinition) UsesDefaultStorageSet() bool {
	names := m.StorageNames()
	if len(names) != len(DefaultIntermediateStorageNames) {
		return false
	}
	want := make(map[string]bool, len(DefaultIntermediateStorageNames))
	for _, n := range DefaultIntermediateStorageNames {
		want[n] = true
	}
	for _, n := range names {
		if !want[n] {
			return false
		}
	}
	return true
}
