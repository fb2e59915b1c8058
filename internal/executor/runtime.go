package executor

import (
	"context"

	schema "github.com/hanpama/gqlwrap/internal/schema"
)

// Runtime is what the Executor calls to produce values.
//
// At every depth the Executor first resolves the sync fields it reaches one by
// one through ResolveSync, then hands all async fields of that depth to a single
// BatchResolveAsync call. Fields marked async never go through ResolveSync.
//
// Errors from any method become located GraphQL errors; see the package
// documentation for how joined errors and GraphQLError paths are reported. A
// value returned next to an error is still completed.
//
// One Runtime serves concurrent operations and must not modify source, args or
// info.
type Runtime interface {
	// ResolveSync resolves a synchronous field value immediately.
	// Return (nil, nil) to produce a GraphQL null for nullable fields.
	ResolveSync(ctx context.Context, info *schema.ResolveInfo, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves the async fields of one depth. results[i]
	// belongs to tasks[i]; a result count that differs from the task count
	// fails the whole batch.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// ResolveType names the object type of a value of an interface or union.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue turns a scalar or enum value into its response form.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

type AsyncResolveTask struct {
	// Info describes the field instance; Info.ParentType.Name and
	// Info.FieldName identify the resolver.
	Info *schema.ResolveInfo
	// Source is the parent object value (nil for root fields).
	Source any
	// Args are the field arguments, coerced to Go values per the schema.
	Args map[string]any
}

type AsyncResolveResult struct {
	// Value is the resolved raw value prior to completion, or nil on error.
	Value any
	// Error contains a failure specific to this element; other elements in the
	// same batch are unaffected.
	Error error
}
