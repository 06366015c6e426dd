package configschema

// TypeRegistry indexes every config type reachable from a synthesized
// environment schema, by both stable structural key and human given name.
// It is built once per schema-synthesis pass, then frozen; readers after
// Freeze see an immutable view (spec.md §5).
type TypeRegistry struct {
	byKey    map[string]Type
	byName   map[string]Type
	nameOf   func(Type) (string, bool)
	frozen   bool
}

// NewTypeRegistry builds an empty registry. nameOf extracts the optional
// human given name for a type (only Scalar carries one in this model);
// types without a given name are indexed by key only.
func NewTypeRegistry(nameOf func(Type) (string, bool)) *TypeRegistry {
	if nameOf == nil {
		nameOf = func(t Type) (string, bool) {
			switch s := t.(type) {
			case Scalar:
				return s.registryName(), true
			case *Scalar:
				return s.registryName(), true
			default:
				return "", false
			}
		}
	}
	return &TypeRegistry{
		byKey:  make(map[string]Type),
		byName: make(map[string]Type),
		nameOf: nameOf,
	}
}

// Add indexes t by key (last writer wins on key collisions, since a key
// collision can only arise from structurally identical types) and by given
// name, if any. A name collision between two structurally different type
// variants is a DefinitionError-class condition and returns
// ErrDuplicateTypeName; the caller (schema synthesizer) is responsible for
// wrapping it as a definition error naming the offending pipeline.
func (r *TypeRegistry) Add(t Type) error {
	if r.frozen {
		panic("configschema: Add called on a frozen TypeRegistry")
	}
	name, hasName := r.nameOf(t)
	if hasName && name != "" {
		if existing, ok := r.byName[name]; ok {
			if existing.Key() != t.Key() {
				return &ErrDuplicateTypeName{Name: name}
			}
		} else {
			r.byName[name] = t
		}
	}
	r.byKey[t.Key()] = t
	return nil
}

// Freeze marks the registry immutable. Subsequent Add calls panic.
func (r *TypeRegistry) Freeze() { r.frozen = true }

// ByKey looks up a type by its structural key.
func (r *TypeRegistry) ByKey(key string) (Type, bool) {
	t, ok := r.byKey[key]
	return t, ok
}

// ByName looks up a type by its human given name.
func (r *TypeRegistry) ByName(name string) (Type, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Len returns the number of distinct structural keys indexed.
func (r *TypeRegistry) Len() int { return len(r.byKey) }

// IterateConfigTypes produces every Type reachable from root, including root
// itself, depth first. Dagster's iterate_config_types is a lazy generator
// used once at registry construction (spec.md §9 "Lazy sequences"); here it
// is eagerly materialized into a slice, which is semantically equivalent
// since nothing restarts or interleaves the iteration.
func IterateConfigTypes(root Type) []Type {
	var out []Type
	var visit func(Type)
	visit = func(t Type) {
		if t == nil {
			return
		}
		out = append(out, t)
		switch v := t.(type) {
		case *Selector:
			for _, name := range v.Fields() {
				visit(v.Field(name).Type)
			}
		case *Shape:
			for _, name := range v.Fields() {
				visit(v.Field(name).Type)
			}
		case *Array:
			visit(v.Of)
		}
	}
	visit(root)
	return out
}
