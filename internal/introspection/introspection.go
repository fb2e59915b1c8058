// Package introspection adds the __schema and __type root fields to a
// schema. Every introspection field carries its own resolver, so any runtime
// that honors schema.Field.Resolve can answer introspection queries.
package introspection

import (
	"context"
	"slices"
	"strings"

	schema "github.com/hanpama/gqlwrap/internal/schema"
)

// Extend returns a copy of s whose query type also answers __schema and
// __type. Introspection types describe s itself, not the copy.
func Extend(s *schema.Schema) *schema.Schema {
	out := schema.Clone(s)
	r := &resolver{schema: s}
	for _, t := range r.types() {
		out.AddType(t)
	}
	q := out.GetQueryType()
	if q == nil {
		return out
	}
	q = schema.CopyType(q)
	q.AddField(schema.NewField("__schema", "Access the current type schema of this server.",
		schema.NonNullType(schema.NamedType("__Schema"))).SetResolve(r.rootSchema))
	q.AddField(schema.NewField("__type", "Request the type information of a single type.",
		schema.NamedType("__Type")).
		AddArgument(schema.NewInputValue("name", "", schema.NonNullType(schema.NamedType("String")))).
		SetResolve(r.rootType))
	out.AddType(q)
	return out
}

// __Type values are carried as *schema.TypeRef. Named references are looked
// up in the described schema when their definition is needed.
type resolver struct {
	schema *schema.Schema
}

func (r *resolver) rootSchema(context.Context, any, map[string]any, *schema.ResolveInfo) (any, error) {
	return r.schema, nil
}

func (r *resolver) rootType(_ context.Context, _ any, args map[string]any, _ *schema.ResolveInfo) (any, error) {
	name, _ := args["name"].(string)
	if r.schema.Types[name] == nil {
		return nil, nil
	}
	return schema.NamedType(name), nil
}

func (r *resolver) def(source any) (*schema.TypeRef, *schema.Type) {
	ref, _ := source.(*schema.TypeRef)
	if ref == nil || ref.Kind != schema.TypeRefKindNamed {
		return ref, nil
	}
	return ref, r.schema.Types[ref.Named]
}

func (r *resolver) refs(names []string) []*schema.TypeRef {
	out := make([]*schema.TypeRef, 0, len(names))
	for _, name := range names {
		if r.schema.Types[name] != nil {
			out = append(out, schema.NamedType(name))
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func rootRef(name string) any {
	if name == "" {
		return nil
	}
	return schema.NamedType(name)
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func includeDeprecated(args map[string]any) bool {
	b, _ := args["includeDeprecated"].(bool)
	return b
}

// visible drops deprecated entries unless the query asked for them.
func visible[T any](items []T, args map[string]any, deprecated func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if deprecated(it) && !includeDeprecated(args) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (r *resolver) types() []*schema.Type {
	return []*schema.Type{
		r.schemaType(),
		r.typeType(),
		r.fieldType(),
		inputValueType(),
		enumValueType(),
		directiveType(),
		typeKindEnum(),
		directiveLocationEnum(),
	}
}

func (r *resolver) schemaType() *schema.Type {
	src := func(source any) *schema.Schema {
		s, _ := source.(*schema.Schema)
		return s
	}
	return schema.NewType("__Schema", schema.TypeKindObject,
		"A GraphQL Schema defines the capabilities of a GraphQL server.").
		AddField(schema.NewField("description", "", schema.NamedType("String")).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				return optional(src(source).Description), nil
			})).
		AddField(schema.NewField("types", "A list of all types supported by this server.",
			nonNullList("__Type")).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				return r.refs(sortedKeys(src(source).Types)), nil
			})).
		AddField(schema.NewField("queryType", "The type that query operations will be rooted at.",
			schema.NonNullType(schema.NamedType("__Type"))).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				return rootRef(src(source).QueryType), nil
			})).
		AddField(schema.NewField("mutationType", "", schema.NamedType("__Type")).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				return rootRef(src(source).MutationType), nil
			})).
		AddField(schema.NewField("subscriptionType", "", schema.NamedType("__Type")).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				return rootRef(src(source).SubscriptionType), nil
			})).
		AddField(schema.NewField("directives", "A list of all directives supported by this server.",
			nonNullList("__Directive")).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				s := src(source)
				out := make([]*schema.Directive, 0, len(s.Directives))
				for _, name := range sortedKeys(s.Directives) {
					out = append(out, s.Directives[name])
				}
				return out, nil
			}))
}

func (r *resolver) typeType() *schema.Type {
	// onDef resolves a field that only exists on named types.
	onDef := func(fn func(t *schema.Type, args map[string]any) any) schema.FieldResolveFunc {
		return func(_ context.Context, source any, args map[string]any, _ *schema.ResolveInfo) (any, error) {
			if _, t := r.def(source); t != nil {
				return fn(t, args), nil
			}
			return nil, nil
		}
	}
	return schema.NewType("__Type", schema.TypeKindObject,
		"The fundamental unit of any GraphQL Schema is the type.").
		AddField(schema.NewField("kind", "", schema.NonNullType(schema.NamedType("__TypeKind"))).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				ref, t := r.def(source)
				if t != nil {
					return string(t.Kind), nil
				}
				if ref == nil {
					return nil, nil
				}
				return string(ref.Kind), nil
			})).
		AddField(schema.NewField("name", "", schema.NamedType("String")).
			SetResolve(onDef(func(t *schema.Type, _ map[string]any) any { return t.Name }))).
		AddField(schema.NewField("description", "", schema.NamedType("String")).
			SetResolve(onDef(func(t *schema.Type, _ map[string]any) any { return optional(t.Description) }))).
		AddField(schema.NewField("specifiedByURL", "", schema.NamedType("String")).
			SetResolve(onDef(func(t *schema.Type, _ map[string]any) any {
				if t.SpecifiedByURL == nil {
					return nil
				}
				return *t.SpecifiedByURL
			}))).
		AddField(withDeprecatedArg(schema.NewField("fields", "", schema.ListType(schema.NonNullType(schema.NamedType("__Field"))))).
			SetResolve(onDef(func(t *schema.Type, args map[string]any) any {
				if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
					return nil
				}
				fields := slices.DeleteFunc(slices.Clone(t.Fields), func(f *schema.Field) bool {
					return strings.HasPrefix(f.Name, "__")
				})
				return visible(fields, args, func(f *schema.Field) bool { return f.IsDeprecated })
			}))).
		AddField(schema.NewField("interfaces", "", schema.ListType(schema.NonNullType(schema.NamedType("__Type")))).
			SetResolve(onDef(func(t *schema.Type, _ map[string]any) any {
				if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
					return nil
				}
				return r.refs(t.Interfaces)
			}))).
		AddField(schema.NewField("possibleTypes", "", schema.ListType(schema.NonNullType(schema.NamedType("__Type")))).
			SetResolve(onDef(func(t *schema.Type, _ map[string]any) any {
				if !t.IsAbstract() {
					return nil
				}
				return r.refs(t.PossibleTypes)
			}))).
		AddField(withDeprecatedArg(schema.NewField("enumValues", "", schema.ListType(schema.NonNullType(schema.NamedType("__EnumValue"))))).
			SetResolve(onDef(func(t *schema.Type, args map[string]any) any {
				if t.Kind != schema.TypeKindEnum {
					return nil
				}
				return visible(t.EnumValues, args, func(v *schema.EnumValue) bool { return v.IsDeprecated })
			}))).
		AddField(withDeprecatedArg(schema.NewField("inputFields", "", schema.ListType(schema.NonNullType(schema.NamedType("__InputValue"))))).
			SetResolve(onDef(func(t *schema.Type, args map[string]any) any {
				if t.Kind != schema.TypeKindInputObject {
					return nil
				}
				return visible(t.InputFields, args, func(v *schema.InputValue) bool { return v.IsDeprecated })
			}))).
		AddField(schema.NewField("ofType", "", schema.NamedType("__Type")).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				ref, _ := source.(*schema.TypeRef)
				if ref == nil || ref.Kind == schema.TypeRefKindNamed {
					return nil, nil
				}
				return ref.OfType, nil
			})).
		AddField(schema.NewField("isOneOf", "", schema.NamedType("Boolean")).
			SetResolve(onDef(func(t *schema.Type, _ map[string]any) any {
				if t.Kind != schema.TypeKindInputObject {
					return nil
				}
				return t.OneOf
			})))
}

func (r *resolver) fieldType() *schema.Type {
	return schema.NewType("__Field", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", schema.NonNullType(schema.NamedType("String")))).
		AddField(schema.NewField("description", "", schema.NamedType("String")).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				return optional(source.(*schema.Field).Description), nil
			})).
		AddField(withDeprecatedArg(schema.NewField("args", "", nonNullList("__InputValue"))).
			SetResolve(func(_ context.Context, source any, args map[string]any, _ *schema.ResolveInfo) (any, error) {
				return visible(source.(*schema.Field).Arguments, args, func(v *schema.InputValue) bool { return v.IsDeprecated }), nil
			})).
		AddField(schema.NewField("type", "", schema.NonNullType(schema.NamedType("__Type")))).
		AddField(schema.NewField("isDeprecated", "", schema.NonNullType(schema.NamedType("Boolean")))).
		AddField(schema.NewField("deprecationReason", "", schema.NamedType("String")).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				f := source.(*schema.Field)
				return deprecationReason(f.IsDeprecated, f.DeprecationReason), nil
			}))
}

func inputValueType() *schema.Type {
	return schema.NewType("__InputValue", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", schema.NonNullType(schema.NamedType("String")))).
		AddField(schema.NewField("description", "", schema.NamedType("String")).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				return optional(source.(*schema.InputValue).Description), nil
			})).
		AddField(schema.NewField("type", "", schema.NonNullType(schema.NamedType("__Type")))).
		AddField(schema.NewField("defaultValue", "", schema.NamedType("String")).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				v := source.(*schema.InputValue)
				if v.DefaultValue == nil {
					return nil, nil
				}
				return schema.ValueToAST(v.DefaultValue).String(), nil
			})).
		AddField(schema.NewField("isDeprecated", "", schema.NonNullType(schema.NamedType("Boolean")))).
		AddField(schema.NewField("deprecationReason", "", schema.NamedType("String")).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				v := source.(*schema.InputValue)
				return deprecationReason(v.IsDeprecated, v.DeprecationReason), nil
			}))
}

func enumValueType() *schema.Type {
	return schema.NewType("__EnumValue", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", schema.NonNullType(schema.NamedType("String")))).
		AddField(schema.NewField("description", "", schema.NamedType("String")).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				return optional(source.(*schema.EnumValue).Description), nil
			})).
		AddField(schema.NewField("isDeprecated", "", schema.NonNullType(schema.NamedType("Boolean")))).
		AddField(schema.NewField("deprecationReason", "", schema.NamedType("String")).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				v := source.(*schema.EnumValue)
				return deprecationReason(v.IsDeprecated, v.DeprecationReason), nil
			}))
}

func directiveType() *schema.Type {
	return schema.NewType("__Directive", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", schema.NonNullType(schema.NamedType("String")))).
		AddField(schema.NewField("description", "", schema.NamedType("String")).
			SetResolve(func(_ context.Context, source any, _ map[string]any, _ *schema.ResolveInfo) (any, error) {
				return optional(source.(*schema.Directive).Description), nil
			})).
		AddField(schema.NewField("isRepeatable", "", schema.NonNullType(schema.NamedType("Boolean")))).
		AddField(schema.NewField("locations", "", nonNullList("__DirectiveLocation"))).
		AddField(withDeprecatedArg(schema.NewField("args", "", nonNullList("__InputValue"))).
			SetResolve(func(_ context.Context, source any, args map[string]any, _ *schema.ResolveInfo) (any, error) {
				return visible(source.(*schema.Directive).Arguments, args, func(v *schema.InputValue) bool { return v.IsDeprecated }), nil
			}))
}

func typeKindEnum() *schema.Type {
	t := schema.NewType("__TypeKind", schema.TypeKindEnum, "")
	for _, k := range []string{"SCALAR", "OBJECT", "INTERFACE", "UNION", "ENUM", "INPUT_OBJECT", "LIST", "NON_NULL"} {
		t.AddEnumValue(schema.NewEnumValue(k, ""))
	}
	return t
}

func directiveLocationEnum() *schema.Type {
	t := schema.NewType("__DirectiveLocation", schema.TypeKindEnum, "")
	for _, l := range []string{
		"QUERY", "MUTATION", "SUBSCRIPTION", "FIELD", "FRAGMENT_DEFINITION", "FRAGMENT_SPREAD",
		"INLINE_FRAGMENT", "VARIABLE_DEFINITION", "SCHEMA", "SCALAR", "OBJECT", "FIELD_DEFINITION",
		"ARGUMENT_DEFINITION", "INTERFACE", "UNION", "ENUM", "ENUM_VALUE", "INPUT_OBJECT",
		"INPUT_FIELD_DEFINITION",
	} {
		t.AddEnumValue(schema.NewEnumValue(l, ""))
	}
	return t
}

func nonNullList(name string) *schema.TypeRef {
	return schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType(name))))
}

func withDeprecatedArg(f *schema.Field) *schema.Field {
	return f.AddArgument(schema.NewInputValue("includeDeprecated", "", schema.NamedType("Boolean")).SetDefault(false))
}

func deprecationReason(deprecated bool, reason string) any {
	if !deprecated {
		return nil
	}
	return reason
}
