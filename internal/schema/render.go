package schema

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/gqlwrap/internal/language"
)

// Render produces SDL from the Schema.
// Deterministic ordering: type/directive names sorted lexicographically.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	return language.PrintSchema(ToDocument(s))
}

// ToDocument converts s into a gqlparser schema document, leaving out builtin
// scalars and directives.
func ToDocument(s *Schema) *ast.SchemaDocument {
	doc := &ast.SchemaDocument{}

	if s.QueryType != "Query" || s.MutationType != "" && s.MutationType != "Mutation" ||
		s.SubscriptionType != "" && s.SubscriptionType != "Subscription" {
		def := &ast.SchemaDefinition{Description: s.Description}
		if s.QueryType != "" {
			def.OperationTypes = append(def.OperationTypes, &ast.OperationTypeDefinition{Operation: ast.Query, Type: s.QueryType})
		}
		if s.MutationType != "" {
			def.OperationTypes = append(def.OperationTypes, &ast.OperationTypeDefinition{Operation: ast.Mutation, Type: s.MutationType})
		}
		if s.SubscriptionType != "" {
			def.OperationTypes = append(def.OperationTypes, &ast.OperationTypeDefinition{Operation: ast.Subscription, Type: s.SubscriptionType})
		}
		doc.Schema = append(doc.Schema, def)
	}

	typeNames := make([]string, 0, len(s.Types))
	for name, typ := range s.Types {
		if isBuiltin(typ) {
			continue
		}
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)
	for _, name := range typeNames {
		doc.Definitions = append(doc.Definitions, renderType(s.Types[name]))
	}

	directiveNames := make([]string, 0, len(s.Directives))
	for name, d := range s.Directives {
		if isBuiltinDirective(d) {
			continue
		}
		directiveNames = append(directiveNames, name)
	}
	sort.Strings(directiveNames)
	for _, name := range directiveNames {
		doc.Directives = append(doc.Directives, renderDirective(s.Directives[name]))
	}
	return doc
}

// SameDefinition reports whether a and b render to the same SDL.
func SameDefinition(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return language.PrintSchema(&ast.SchemaDocument{Definitions: ast.DefinitionList{renderType(a)}}) ==
		language.PrintSchema(&ast.SchemaDocument{Definitions: ast.DefinitionList{renderType(b)}})
}

func renderType(t *Type) *ast.Definition {
	def := &ast.Definition{
		Name:        t.Name,
		Description: t.Description,
		Interfaces:  append([]string(nil), t.Interfaces...),
		Types:       append([]string(nil), t.PossibleTypes...),
	}
	switch t.Kind {
	case TypeKindObject:
		def.Kind = ast.Object
	case TypeKindInterface:
		def.Kind = ast.Interface
	case TypeKindUnion:
		def.Kind = ast.Union
	case TypeKindEnum:
		def.Kind = ast.Enum
	case TypeKindInputObject:
		def.Kind = ast.InputObject
		if t.OneOf {
			def.Directives = append(def.Directives, &ast.Directive{Name: "oneOf"})
		}
	default:
		def.Kind = ast.Scalar
		if t.SpecifiedByURL != nil {
			def.Directives = append(def.Directives, &ast.Directive{
				Name:      "specifiedBy",
				Arguments: ast.ArgumentList{{Name: "url", Value: &ast.Value{Kind: ast.StringValue, Raw: *t.SpecifiedByURL}}},
			})
		}
	}

	for _, f := range t.Fields {
		fd := &ast.FieldDefinition{
			Name:        f.Name,
			Description: f.Description,
			Type:        TypeRefToAST(f.Type),
			Directives:  deprecatedDirective(f.IsDeprecated, f.DeprecationReason),
		}
		for _, a := range f.Arguments {
			fd.Arguments = append(fd.Arguments, renderArgument(a))
		}
		def.Fields = append(def.Fields, fd)
	}
	for _, in := range t.InputFields {
		a := renderArgument(in)
		def.Fields = append(def.Fields, &ast.FieldDefinition{
			Name:         a.Name,
			Description:  a.Description,
			Type:         a.Type,
			DefaultValue: a.DefaultValue,
			Directives:   a.Directives,
		})
	}
	for _, v := range t.EnumValues {
		def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{
			Name:        v.Name,
			Description: v.Description,
			Directives:  deprecatedDirective(v.IsDeprecated, v.DeprecationReason),
		})
	}
	return def
}

func renderArgument(in *InputValue) *ast.ArgumentDefinition {
	a := &ast.ArgumentDefinition{
		Name:        in.Name,
		Description: in.Description,
		Type:        TypeRefToAST(in.Type),
		Directives:  deprecatedDirective(in.IsDeprecated, in.DeprecationReason),
	}
	if in.DefaultValue != nil {
		a.DefaultValue = ValueToAST(in.DefaultValue)
	}
	return a
}

func renderDirective(d *Directive) *ast.DirectiveDefinition {
	def := &ast.DirectiveDefinition{
		Name:         d.Name,
		Description:  d.Description,
		IsRepeatable: d.IsRepeatable,
	}
	for _, loc := range d.Locations {
		def.Locations = append(def.Locations, ast.DirectiveLocation(loc))
	}
	for _, a := range d.Arguments {
		def.Arguments = append(def.Arguments, renderArgument(a))
	}
	return def
}

func deprecatedDirective(deprecated bool, reason string) ast.DirectiveList {
	if !deprecated {
		return nil
	}
	d := &ast.Directive{Name: "deprecated"}
	if reason != "" {
		d.Arguments = ast.ArgumentList{{Name: "reason", Value: &ast.Value{Kind: ast.StringValue, Raw: reason}}}
	}
	return ast.DirectiveList{d}
}

// ValueToAST converts a coerced Go value into an AST literal. Enum values
// come back as strings, which is how they are stored after coercion.
func ValueToAST(v any) *ast.Value {
	switch x := v.(type) {
	case nil:
		return &ast.Value{Kind: ast.NullValue, Raw: "null"}
	case bool:
		return &ast.Value{Kind: ast.BooleanValue, Raw: strconv.FormatBool(x)}
	case int:
		return &ast.Value{Kind: ast.IntValue, Raw: strconv.Itoa(x)}
	case int32:
		return &ast.Value{Kind: ast.IntValue, Raw: strconv.FormatInt(int64(x), 10)}
	case int64:
		return &ast.Value{Kind: ast.IntValue, Raw: strconv.FormatInt(x, 10)}
	case float64:
		return &ast.Value{Kind: ast.FloatValue, Raw: strconv.FormatFloat(x, 'g', -1, 64)}
	case string:
		return &ast.Value{Kind: ast.StringValue, Raw: x}
	case []any:
		out := &ast.Value{Kind: ast.ListValue}
		for _, item := range x {
			out.Children = append(out.Children, &ast.ChildValue{Value: ValueToAST(item)})
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := &ast.Value{Kind: ast.ObjectValue}
		for _, k := range keys {
			out.Children = append(out.Children, &ast.ChildValue{Name: k, Value: ValueToAST(x[k])})
		}
		return out
	default:
		return &ast.Value{Kind: ast.StringValue, Raw: fmt.Sprint(x)}
	}
}
