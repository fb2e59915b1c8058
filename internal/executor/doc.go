// Package executor runs GraphQL operations breadth first against a
// schema.Schema, handing field resolution to a Runtime.
//
// # Execution
//
// The operation is chosen by name (or by being the only one), variables are
// coerced against its definitions, and the root selection set is collected.
// Execution then proceeds depth by depth:
//
//   - Fields whose definition has Async=false are resolved right away through
//     Runtime.ResolveSync and completed in place. Descending through them does
//     not start a new depth.
//   - Fields with Async=true are queued. Once the sync frontier of a depth is
//     exhausted, every queued task of that depth goes to a single
//     Runtime.BatchResolveAsync call, and the results are completed.
//
// For an operation whose async fields nest d levels deep, BatchResolveAsync is
// called exactly d times.
//
// In the gateway, root fields that delegate to a subschema are async and all
// fields below them read from the delegated result synchronously, so a query
// costs one batch per level of delegation.
//
// # Completion
//
// Values complete per the GraphQL rules. Lists complete item by item with the
// index in the path. Leaves go through Runtime.SerializeLeafValue. Abstract
// values are mapped to an object type with Runtime.ResolveType, which must name
// a possible type. A null or an error on a Non-Null field nulls the nearest
// nullable ancestor, and queued tasks below that ancestor are dropped.
//
// # Errors
//
// Errors are collected as GraphQLError values located at the field path while
// the rest of the response is still produced. Resolvers may return a value and
// an error together; errors joined with errors.Join become one GraphQLError
// each, and a GraphQLError's own Path is appended to the field path. This is
// how delegated results report errors deep inside a returned subtree.
//
// Every resolver call receives a schema.ResolveInfo with the merged field
// nodes, the operation, its fragments and the coerced variables.
//
// ResolverRuntime is the stock Runtime: it calls schema.Field.Resolve, reads
// fields off map and struct sources otherwise, and runs async batches on a
// bounded errgroup.
package executor
