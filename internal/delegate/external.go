package delegate

import (
	"context"
	"errors"

	executor "github.com/hanpama/gqlwrap/internal/executor"
	schema "github.com/hanpama/gqlwrap/internal/schema"
)

// ExternalObject is an object value that was fetched from a subschema.
// Errors holds the subschema errors located below the object, with paths
// relative to it.
type ExternalObject struct {
	Data      map[string]any
	Errors    []executor.GraphQLError
	Subschema *SubschemaConfig
}

// Typename returns the concrete type reported by the subschema.
func (o *ExternalObject) Typename() string {
	name, _ := o.Data["__typename"].(string)
	return name
}

// RelocatedError returns a copy of err reported at path. Message, locations,
// extensions and the wrapped cause are kept.
func RelocatedError(err executor.GraphQLError, path executor.Path) executor.GraphQLError {
	err.Path = append(executor.Path(nil), path...)
	return err
}

// DefaultMergedResolver resolves a field of an object fetched from a
// subschema by reading the value under the field's response key.
func DefaultMergedResolver(ctx context.Context, source any, args map[string]any, info *schema.ResolveInfo) (any, error) {
	key := info.ResponseKey()
	switch parent := source.(type) {
	case *ExternalObject:
		return externalValue(parent.Data[key], childErrors(parent.Errors, key), parent.Subschema)
	case map[string]any:
		if v, ok := parent[key]; ok {
			return v, nil
		}
		return parent[info.FieldName], nil
	}
	return nil, nil
}

// externalValue wraps a value read from a subschema response so that nested
// fields keep resolving against it. errs are relative to value. Errors
// without a path are returned alongside the value.
func externalValue(value any, errs []executor.GraphQLError, sub *SubschemaConfig) (any, error) {
	var own, nested []executor.GraphQLError
	for _, e := range errs {
		if len(e.Path) == 0 {
			own = append(own, e)
		} else {
			nested = append(nested, e)
		}
	}

	switch v := value.(type) {
	case nil:
		return nil, joinErrors(errs)
	case map[string]any:
		return &ExternalObject{Data: v, Errors: nested, Subschema: sub}, joinErrors(own)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			resolved, err := externalValue(item, childErrors(nested, i), sub)
			items[i] = resolved
			// the executor only sees the list, so item errors are reported
			// relative to it
			for _, e := range splitErrors(err) {
				own = append(own, RelocatedError(e, append(executor.Path{i}, e.Path...)))
			}
		}
		return items, joinErrors(own)
	}
	return value, joinErrors(own)
}

// childErrors returns the errors located under seg, with seg trimmed from
// their paths.
func childErrors(errs []executor.GraphQLError, seg any) []executor.GraphQLError {
	var out []executor.GraphQLError
	for _, e := range errs {
		if len(e.Path) > 0 && e.Path[0] == seg {
			out = append(out, RelocatedError(e, e.Path[1:]))
		}
	}
	return out
}

func joinErrors(errs []executor.GraphQLError) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}

func splitErrors(err error) []executor.GraphQLError {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []executor.GraphQLError
		for _, e := range joined.Unwrap() {
			out = append(out, splitErrors(e)...)
		}
		return out
	}
	var ge executor.GraphQLError
	if errors.As(err, &ge) {
		return []executor.GraphQLError{ge}
	}
	return []executor.GraphQLError{{Message: err.Error(), Err: err}}
}
