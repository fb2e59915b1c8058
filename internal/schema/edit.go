package schema

import "fmt"

// Clone returns a copy of s whose type and directive maps can be edited
// without affecting s. Types themselves are shared until edited through
// RemoveFields or AppendFields, which replace them.
func Clone(s *Schema) *Schema {
	c := *s
	c.Types = make(map[string]*Type, len(s.Types))
	for name, t := range s.Types {
		c.Types[name] = t
	}
	c.Directives = make(map[string]*Directive, len(s.Directives))
	for name, d := range s.Directives {
		c.Directives[name] = d
	}
	return &c
}

// CopyType returns a shallow copy of t with its own slices.
func CopyType(t *Type) *Type {
	c := *t
	c.Fields = append([]*Field(nil), t.Fields...)
	c.Interfaces = append([]string(nil), t.Interfaces...)
	c.PossibleTypes = append([]string(nil), t.PossibleTypes...)
	c.EnumValues = append([]*EnumValue(nil), t.EnumValues...)
	c.InputFields = append([]*InputValue(nil), t.InputFields...)
	return &c
}

// RemoveFields returns a new schema in which the fields of typeName matching
// pred are gone, together with the removed field definitions in declaration
// order. s is not modified.
func RemoveFields(s *Schema, typeName string, pred func(name string, f *Field) bool) (*Schema, []*Field, error) {
	t, err := composite(s, typeName)
	if err != nil {
		return nil, nil, err
	}
	edited := CopyType(t)
	edited.Fields = edited.Fields[:0]
	var removed []*Field
	for _, f := range t.Fields {
		if pred(f.Name, f) {
			removed = append(removed, f)
			continue
		}
		edited.Fields = append(edited.Fields, f)
	}
	out := Clone(s)
	out.Types[typeName] = edited
	return out, removed, nil
}

// AppendFields returns a new schema with fields added to typeName. Adding a
// field whose name already exists on the type is an error.
func AppendFields(s *Schema, typeName string, fields ...*Field) (*Schema, error) {
	t, err := composite(s, typeName)
	if err != nil {
		return nil, err
	}
	edited := CopyType(t)
	for _, f := range fields {
		if edited.FieldByName(f.Name) != nil {
			return nil, fmt.Errorf("field %s.%s already exists", typeName, f.Name)
		}
		edited.Fields = append(edited.Fields, f)
	}
	out := Clone(s)
	out.Types[typeName] = edited
	return out, nil
}

// MapFields returns a new schema where every object and interface field has
// been passed through fn. Types whose fields are all returned unchanged are
// shared with s.
func MapFields(s *Schema, fn func(t *Type, f *Field) *Field) *Schema {
	out := Clone(s)
	for name, t := range s.Types {
		if t.Kind != TypeKindObject && t.Kind != TypeKindInterface {
			continue
		}
		var edited *Type
		for i, f := range t.Fields {
			nf := fn(t, f)
			if nf == f {
				continue
			}
			if edited == nil {
				edited = CopyType(t)
			}
			edited.Fields[i] = nf
		}
		if edited != nil {
			out.Types[name] = edited
		}
	}
	return out
}

func composite(s *Schema, typeName string) (*Type, error) {
	t := s.Types[typeName]
	if t == nil {
		return nil, fmt.Errorf("type %s not found", typeName)
	}
	if t.Kind != TypeKindObject && t.Kind != TypeKindInterface {
		return nil, fmt.Errorf("type %s is %s, not an object or interface", typeName, t.Kind)
	}
	return t, nil
}

// OutputShape is how a field type wraps its named type.
type OutputShape int

const (
	// ShapePlain is T or T!.
	ShapePlain OutputShape = iota
	// ShapeList is [T] with any item nullability.
	ShapeList
	// ShapeNonNullList is [T]! with any item nullability.
	ShapeNonNullList
	// ShapeOther covers nested lists.
	ShapeOther
)

func (s OutputShape) String() string {
	switch s {
	case ShapePlain:
		return "plain"
	case ShapeList:
		return "list"
	case ShapeNonNullList:
		return "non-null list"
	}
	return "other"
}

// ClassifyOutput reports the shape of t and the name of its named type.
func ClassifyOutput(t *TypeRef) (OutputShape, string) {
	nullable := Nullable(t)
	if !nullable.IsList() {
		return ShapePlain, nullable.GetNamedType()
	}
	if Nullable(nullable.Unwrap()).IsList() {
		return ShapeOther, nullable.GetNamedType()
	}
	if t.IsNonNull() {
		return ShapeNonNullList, nullable.GetNamedType()
	}
	return ShapeList, nullable.GetNamedType()
}
