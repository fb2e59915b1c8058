// Package wrap builds gateway schemas whose fields delegate to subschemas.
package wrap

import (
	"fmt"
	"log/slog"

	delegate "github.com/hanpama/gqlwrap/internal/delegate"
	language "github.com/hanpama/gqlwrap/internal/language"
	schema "github.com/hanpama/gqlwrap/internal/schema"
)

// Schema returns the schema sub is exposed as. Root fields delegate to sub;
// all other fields read from delegated results. Transforms run twice: once to
// learn the final shape and once more with it, so that fields they add can
// attach resolvers.
func Schema(sub *delegate.SubschemaConfig) (*schema.Schema, error) {
	if sub == nil || sub.Schema == nil {
		return nil, fmt.Errorf("wrap: subschema has no schema")
	}
	wrapping := wrappingSchema(sub)

	transformed, err := delegate.ApplySchemaTransforms(wrapping, sub, nil)
	if err != nil {
		return nil, err
	}
	out, err := delegate.ApplySchemaTransforms(wrapping, sub, transformed)
	if err != nil {
		return nil, err
	}
	slog.Info("Wrapped subschema", "subschema", sub.Name, "transforms", len(sub.Transforms), "types", len(out.Types))
	return out, nil
}

func wrappingSchema(sub *delegate.SubschemaConfig) *schema.Schema {
	s := sub.Schema
	proxy := sub.ProxyingResolver()
	roots := map[string]language.Operation{}
	if s.QueryType != "" {
		roots[s.QueryType] = language.Query
	}
	if s.MutationType != "" {
		roots[s.MutationType] = language.Mutation
	}
	if s.SubscriptionType != "" {
		roots[s.SubscriptionType] = language.Subscription
	}

	return schema.MapFields(s, func(t *schema.Type, f *schema.Field) *schema.Field {
		c := f.Copy()
		if op, ok := roots[t.Name]; ok {
			c.Async = true
			c.Resolve = proxy(delegate.ProxyingResolverOptions{
				Subschema: sub,
				Operation: op,
				FieldName: f.Name,
			})
			return c
		}
		c.Async = false
		c.Resolve = delegate.DefaultMergedResolver
		return c
	})
}

// Merge combines schemas into one. Root types are merged field by field
// into Query, Mutation and Subscription. Other types may appear in several
// schemas only with identical definitions; the first one is kept.
func Merge(schemas ...*schema.Schema) (*schema.Schema, error) {
	if len(schemas) == 0 {
		return nil, fmt.Errorf("wrap: nothing to merge")
	}
	out := schema.NewSchema(schemas[0].Description)
	roots := map[string]*schema.Type{}
	for _, s := range schemas {
		rootOf := map[string]string{
			s.QueryType:        "Query",
			s.MutationType:     "Mutation",
			s.SubscriptionType: "Subscription",
		}
		delete(rootOf, "")

		for name, t := range s.Types {
			if merged, isRoot := rootOf[name]; isRoot {
				root := roots[merged]
				if root == nil {
					root = schema.NewType(merged, schema.TypeKindObject, t.Description)
					roots[merged] = root
				}
				for _, f := range t.Fields {
					if root.FieldByName(f.Name) != nil {
						return nil, fmt.Errorf("wrap: field %s.%s is defined by more than one subschema", merged, f.Name)
					}
					root.AddField(f)
				}
				continue
			}
			prev, ok := out.Types[name]
			if ok && !schema.SameDefinition(prev, t) {
				return nil, fmt.Errorf("wrap: type %s is defined by more than one subschema", name)
			}
			if !ok {
				out.AddType(t)
			}
		}
		for _, d := range s.Directives {
			out.AddDirective(d)
		}
	}
	for name, root := range roots {
		if _, ok := out.Types[name]; ok {
			return nil, fmt.Errorf("wrap: type %s clashes with a root type", name)
		}
		out.AddType(root)
	}
	if roots["Query"] != nil {
		out.SetQueryType("Query")
	}
	if roots["Mutation"] != nil {
		out.SetMutationType("Mutation")
	}
	if roots["Subscription"] != nil {
		out.SetSubscriptionType("Subscription")
	}
	return out, nil
}
