package executor

import (
	"fmt"
	"reflect"

	language "github.com/hanpama/gqlwrap/internal/language"
	schema "github.com/hanpama/gqlwrap/internal/schema"
)

// complete shapes a resolved value to typ. bubble is the path of the nearest
// nullable ancestor, the place a null of a Non-Null descendant ends up. A
// nullable value is that place for everything it contains.
func (ex *execution) complete(typ *schema.TypeRef, nodes []*language.Field, value any, path, bubble Path) any {
	if schema.IsNonNull(typ) {
		if isNullish(value) {
			if !ex.hasError(path) {
				ex.addError(fmt.Sprintf("Cannot return null for non-nullable field %s", path), path)
			}
			return nil
		}
		return ex.completeValue(schema.Unwrap(typ), nodes, value, path, bubble)
	}
	if isNullish(value) {
		return nil
	}
	return ex.completeValue(typ, nodes, value, path, path)
}

func (ex *execution) completeValue(typ *schema.TypeRef, nodes []*language.Field, value any, path, bubble Path) any {
	if schema.IsList(typ) {
		return ex.completeList(schema.Unwrap(typ), nodes, value, path, bubble)
	}

	name := schema.GetNamedType(typ)
	def := ex.schema.Types[name]
	if def == nil {
		ex.addError(fmt.Sprintf("Unknown type: %s", name), path)
		return nil
	}
	switch def.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		out, err := ex.runtime.SerializeLeafValue(ex.ctx, name, value)
		if err != nil {
			ex.addLocated(err, path)
			return nil
		}
		return out
	case schema.TypeKindObject:
		return ex.completeObject(def, nodes, value, path, bubble)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		typeName, err := ex.runtime.ResolveType(ex.ctx, name, value)
		if err != nil {
			ex.addError(err.Error(), path)
			return nil
		}
		concrete := ex.schema.Types[typeName]
		if concrete == nil || concrete.Kind != schema.TypeKindObject {
			ex.addError(fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", name, typeName), path)
			return nil
		}
		return ex.completeObject(concrete, nodes, value, path, bubble)
	}
	ex.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", def.Kind), path)
	return nil
}

func (ex *execution) completeList(item *schema.TypeRef, nodes []*language.Field, value any, path, bubble Path) any {
	items, ok := value.([]any)
	if !ok {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			ex.addError(fmt.Sprintf("Expected list value, got %T", value), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	out := make([]any, len(items))
	for i, v := range items {
		c := ex.complete(item, nodes, v, path.With(i), bubble)
		if isNullish(c) {
			if schema.IsNonNull(item) {
				ex.nulled.add(path)
				return nil
			}
			c = nil
		}
		out[i] = c
	}
	return out
}

// completeObject runs the merged sub-selections of nodes on value.
func (ex *execution) completeObject(objectType *schema.Type, nodes []*language.Field, value any, path, bubble Path) any {
	var set language.SelectionSet
	for _, n := range nodes {
		set = append(set, n.SelectionSet...)
	}
	if out := ex.selectionSet(objectType, set, value, path, bubble); out != nil {
		return out
	}
	return nil
}

// isNullish reports nil and typed nil pointers, maps, slices and the like.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
