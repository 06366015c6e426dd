// Package configschema provides the four config primitives used to build a
// pipeline's configuration schema tree: Shape, Selector, Array, and Field.
package configschema

import "fmt"

// Type is any node in the config schema tree: a Shape, a Selector, an Array,
// or a Scalar.
type Type interface {
	// Key is a stable structural identity for this type, used for type
	// registry deduplication. Two types with identical shape produce the
	// same key.
	Key() string
}

// Scalar is a leaf config value type (string, int, bool, ...), optionally
// carrying a human-given name (e.g. "IntSource") for the type registry.
type Scalar struct {
	Name string // e.g. "String", "Int", "Bool"; structural identity, used in Key()

	// GivenName overrides the name this type registers under, when it
	// differs from Name. Two Scalars with different Name (and therefore
	// different Key) can still collide in the type registry if they share
	// GivenName, mirroring dagster's "two distinct type classes given the
	// same config type name" collision. Left empty, Name is used as given
	// name, matching the common case where structural identity and given
	// name coincide.
	GivenName string
}

func (s Scalar) Key() string { return "Scalar." + s.Name }

// registryName returns the name this Scalar registers under in a
// TypeRegistry: GivenName if set, otherwise Name.
func (s Scalar) registryName() string {
	if s.GivenName != "" {
		return s.GivenName
	}
	return s.Name
}

// Field wraps a schema Type with an optional default value and an explicit
// required override. A Field is "required" unless it carries a default or
// every field reachable underneath it is itself optional (transitive
// optionality, see AllOptional).
type Field struct {
	Type        Type
	HasDefault  bool
	Default     any
	Description string

	// isRequiredOverride, when non-nil, forces IsRequired() regardless of
	// default/transitive-optionality. Mirrors dagster's Field(is_required=...).
	isRequiredOverride *bool
}

// NewField builds a Field with no default and no explicit required override;
// requiredness is derived from the wrapped type.
func NewField(t Type) *Field {
	return &Field{Type: t}
}

// WithDefault returns a copy of f carrying the given default value.
func (f *Field) WithDefault(v any) *Field {
	cp := *f
	cp.HasDefault = true
	cp.Default = v
	return &cp
}

// Required forces f to be required or optional regardless of default or
// transitive optionality.
func (f *Field) Required(required bool) *Field {
	cp := *f
	cp.isRequiredOverride = &required
	return &cp
}

// IsRequired implements the rule in spec.md §3: "A Field is required unless
// it carries a default or all of its nested fields are themselves optional
// (transitive optionality)."
func (f *Field) IsRequired() bool {
	if f == nil {
		return false
	}
	if f.isRequiredOverride != nil {
		return *f.isRequiredOverride
	}
	if f.HasDefault {
		return false
	}
	return !AllOptional(f.Type)
}

// Shape is a mapping from field name to Field. Keys are unique; insertion
// order is preserved for diagnostics.
type Shape struct {
	order  []string
	fields map[string]*Field
}

// NewShape builds a Shape from fields, in the given key order. Absent (nil)
// field values are elided per spec.md's remove_none_entries rule, so that
// "never declared" and "declared but absent" are indistinguishable.
func NewShape(order []string, fields map[string]*Field) *Shape {
	s := &Shape{fields: make(map[string]*Field, len(fields))}
	for _, name := range order {
		f, ok := fields[name]
		if !ok || f == nil {
			continue
		}
		s.order = append(s.order, name)
		s.fields[name] = f
	}
	return s
}

// RemoveNoneEntries filters out nil field values from a field map, exactly
// as dagster's remove_none_entries helper does for Shape construction.
func RemoveNoneEntries(fields map[string]*Field) map[string]*Field {
	out := make(map[string]*Field, len(fields))
	for k, v := range fields {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

func (s *Shape) Key() string {
	k := "Shape{"
	for i, name := range s.order {
		if i > 0 {
			k += ","
		}
		k += name + ":" + s.fields[name].Type.Key()
	}
	return k + "}"
}

// Fields returns the field names in declaration order.
func (s *Shape) Fields() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Field returns the named field, or nil if not declared.
func (s *Shape) Field(name string) *Field {
	return s.fields[name]
}

// Len returns the number of declared fields.
func (s *Shape) Len() int { return len(s.order) }

// Selector is a Shape interpreted as "exactly one field must be set."
type Selector struct {
	*Shape
}

// NewSelector builds a Selector over the given fields.
func NewSelector(order []string, fields map[string]*Field) *Selector {
	return &Selector{Shape: NewShape(order, fields)}
}

func (s *Selector) Key() string { return "Selector" + s.Shape.Key() }

// IsOptional implements spec.md §8 invariant 7: "A Selector field is
// optional iff it has exactly one sub-field and that sub-field is optional."
func (s *Selector) IsOptional() bool {
	if s.Shape.Len() != 1 {
		return false
	}
	name := s.Shape.order[0]
	return !s.Shape.fields[name].IsRequired()
}

// Array is an ordered homogeneous sequence of some element Type.
type Array struct {
	Of Type
}

func (a *Array) Key() string { return "Array[" + a.Of.Key() + "]" }

// AllOptional implements dagster's all_optional_type: true when t is a Shape
// all of whose fields are individually optional, or a Selector whose single
// field is optional. Any other type is considered not transitively optional
// (a bare Scalar or Array always requires an explicit value unless wrapped
// in a Field with a default).
func AllOptional(t Type) bool {
	switch v := t.(type) {
	case *Selector:
		return v.IsOptional()
	case *Shape:
		for _, name := range v.order {
			if v.fields[name].IsRequired() {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ErrDuplicateTypeName is returned by TypeRegistry.add when two distinct
// type variants share a given name.
type ErrDuplicateTypeName struct {
	Name string
}

func (e *ErrDuplicateTypeName) Error() string {
	return fmt.Sprintf("config type names must be unique: two different type variants were constructed with the same name %q", e.Name)
}
