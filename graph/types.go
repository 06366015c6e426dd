package graph

import "github.com/GoCodeAlone/workflow/configschema"

// ValueKind distinguishes the one kind of value that carries no payload
// (NOTHING, a control-only edge) from every other kind.
type ValueKind int

const (
	// ValueKindAny is any value-carrying type.
	ValueKindAny ValueKind = iota
	// ValueKindNothing marks control-only edges: no value flows, no config
	// or default is required to satisfy them (spec.md §3, §4.3 rule 6).
	ValueKindNothing
)

// LoaderSchema supplies the config schema-type used to deserialize a value
// for an input directly from run config (FromConfig sources).
type LoaderSchema struct {
	SchemaType configschema.Type
}

// MaterializerSchema supplies the config schema-type used to persist an
// output (the "outputs" array entries in the synthesized schema).
type MaterializerSchema struct {
	SchemaType configschema.Type
}

// ValueType is the Dagster-Type analogue: a named value type exposing two
// optional capabilities (Loader, Materializer) and a Kind.
type ValueType struct {
	Name         string
	Kind         ValueKind
	Loader       *LoaderSchema
	Materializer *MaterializerSchema
}

// HasLoader reports whether this type can be deserialized from config.
func (t ValueType) HasLoader() bool { return t.Loader != nil }

// HasMaterializer reports whether this type's outputs can be persisted via
// config-specified materialization.
func (t ValueType) HasMaterializer() bool { return t.Materializer != nil }

// InputDef is a named input slot on a node: a name plus a ValueType, with an
// optional default value used when no dependency or config supplies one.
type InputDef struct {
	Name         string
	Type         ValueType
	HasDefault   bool
	DefaultValue any
}

// OutputDef is a named output slot on a node.
type OutputDef struct {
	Name string
	Type ValueType
}
