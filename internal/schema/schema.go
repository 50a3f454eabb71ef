package schema

import (
	"errors"
	"fmt"
	"slices"
)

// Type identifies an entity type. The string is the tag stored in the
// items table.
type Type string

const (
	Network Type = "net"
	User    Type = "user"
	Profile Type = "prof"
	Post    Type = "post"
	Topic   Type = "topic"
	Opinion Type = "opin"

	// Any is the target of reference fields that may point at an item of
	// any declared type.
	Any Type = "item"
)

// Kind is the storage kind of a Detail field.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindTime
	KindEnum
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	case KindEnum:
		return "enum"
	case KindRef:
		return "ref"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field describes one column of a Detail table.
type Field struct {
	Name     string
	Kind     Kind
	Optional bool

	// Target is the referenced type for KindRef fields.
	Target Type

	// Values lists the allowed values for KindEnum fields.
	Values []string
}

// IsRef reports whether the field references another item.
func (f Field) IsRef() bool {
	return f.Kind == KindRef
}

// Allows reports whether v is one of the declared enum values.
func (f Field) Allows(v string) bool {
	return slices.Contains(f.Values, v)
}

// Entity is the declared shape of one type.
type Entity struct {
	Type   Type
	Table  string
	Fields []Field
}

// Field returns the named field.
func (e *Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Refs returns the reference fields in declaration order.
func (e *Entity) Refs() []Field {
	refs := make([]Field, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.IsRef() {
			refs = append(refs, f)
		}
	}
	return refs
}

// Columns returns the Detail column names in declaration order, not
// including the id column.
func (e *Entity) Columns() []string {
	cols := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		cols[i] = f.Name
	}
	return cols
}

// ErrUndeclaredType is returned for a type tag that has no entity.
var ErrUndeclaredType = errors.New("undeclared type")

// Lookup returns the entity declared for t.
func Lookup(t Type) (*Entity, error) {
	e, ok := byType[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUndeclaredType, t)
	}
	return e, nil
}

// MustLookup is Lookup for types known at compile time.
func MustLookup(t Type) *Entity {
	e, err := Lookup(t)
	if err != nil {
		panic(err)
	}
	return e
}

// Types returns every declared type in registry order.
func Types() []Type {
	types := make([]Type, len(entities))
	for i, e := range entities {
		types[i] = e.Type
	}
	return types
}

// Entities returns every declared entity in registry order.
func Entities() []*Entity {
	return slices.Clone(entities)
}

// Validate checks the registry for internal consistency: unique types and
// tables, unique field names, reference targets that exist, and enums
// with at least one value.
func Validate() error {
	return validate(entities)
}

func validate(list []*Entity) error {
	types := make(map[Type]bool, len(list))
	tables := make(map[string]bool, len(list))
	for _, e := range list {
		if e.Type == "" || e.Type == Any {
			return fmt.Errorf("entity %q: invalid type tag", e.Type)
		}
		if types[e.Type] {
			return fmt.Errorf("entity %q: declared twice", e.Type)
		}
		types[e.Type] = true
		if e.Table == "" || tables[e.Table] {
			return fmt.Errorf("entity %q: missing or duplicate table %q", e.Type, e.Table)
		}
		tables[e.Table] = true
	}

	for _, e := range list {
		names := make(map[string]bool, len(e.Fields))
		for _, f := range e.Fields {
			if f.Name == "" || reserved[f.Name] {
				return fmt.Errorf("entity %q: invalid field name %q", e.Type, f.Name)
			}
			if names[f.Name] {
				return fmt.Errorf("entity %q: field %q declared twice", e.Type, f.Name)
			}
			names[f.Name] = true

			switch f.Kind {
			case KindRef:
				if f.Target != Any && !types[f.Target] {
					return fmt.Errorf("entity %q: field %q references undeclared type %q", e.Type, f.Name, f.Target)
				}
			case KindEnum:
				if len(f.Values) == 0 {
					return fmt.Errorf("entity %q: enum field %q has no values", e.Type, f.Name)
				}
			case KindString, KindInt, KindFloat, KindTime:
			default:
				return fmt.Errorf("entity %q: field %q has unknown kind %v", e.Type, f.Name, f.Kind)
			}
		}
	}
	return nil
}

// reserved names belong to the Item envelope.
var reserved = map[string]bool{"id": true, "cust": true}
