package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	schema "github.com/hanpama/gqlwrap/internal/schema"
)

const contractSDL = `
type Query { a: String  b: String  obj: Obj  node: Node }
type Obj { a(arg: String): String }
interface Node { a: String }
type Impl implements Node { a: String }
`

// contractSchema builds contractSDL with the named Query fields made async.
func contractSchema(t *testing.T, async ...string) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL(contractSDL)
	require.NoError(t, err)
	for _, name := range async {
		sch.GetQueryType().FieldByName(name).SetAsync(true)
	}
	return sch
}

func TestRuntimeContract_Calls(t *testing.T) {
	tests := []struct {
		name      string
		async     []string
		resolvers map[string]MockResolver
		query     string
		want      []Call
	}{
		{
			name:  "sync fields resolve before the batch",
			async: []string{"b"},
			resolvers: map[string]MockResolver{
				"Query.a": NewMockValueResolver("A"),
				"Query.b": NewMockValueResolver("B"),
			},
			query: "{ b a }",
			want: []Call{
				{Kind: CallKindSync, ObjectType: "Query", Field: "a", Path: Path{"a"}, Args: map[string]any{}},
				{Kind: CallKindAsync, ObjectType: "Query", Field: "b", Path: Path{"b"}, Args: map[string]any{}, BatchID: 1},
			},
		},
		{
			name:  "one batch per depth",
			async: []string{"a", "b"},
			resolvers: map[string]MockResolver{
				"Query.a": NewMockValueResolver("A"),
				"Query.b": NewMockValueResolver("B"),
			},
			query: "{ a b again: a }",
			want: []Call{
				{Kind: CallKindAsync, ObjectType: "Query", Field: "a", Path: Path{"a"}, Args: map[string]any{}, BatchID: 1},
				{Kind: CallKindAsync, ObjectType: "Query", Field: "b", Path: Path{"b"}, Args: map[string]any{}, BatchID: 1},
				{Kind: CallKindAsync, ObjectType: "Query", Field: "a", Path: Path{"again"}, Args: map[string]any{}, BatchID: 1},
			},
		},
		{
			name: "sources and arguments reach the runtime untouched",
			resolvers: map[string]MockResolver{
				"Query.obj": NewMockValueResolver(map[string]any{"token": "root"}),
				"Obj.a":     NewMockValueResolver("A"),
			},
			query: `{ obj { a(arg: "val") } }`,
			want: []Call{
				{Kind: CallKindSync, ObjectType: "Query", Field: "obj", Path: Path{"obj"}, Args: map[string]any{}},
				{Kind: CallKindSync, ObjectType: "Obj", Field: "a", Path: Path{"obj", "a"}, Source: map[string]any{"token": "root"}, Args: map[string]any{"arg": "val"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := NewMockRuntime(tt.resolvers)
			NewExecutor(rt, contractSchema(t, tt.async...)).ExecuteRequest(context.Background(), mustParseQuery(t, tt.query), "", nil, nil)
			if diff := cmp.Diff(tt.want, rt.GetCalls()); diff != "" {
				t.Fatalf("runtime calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRuntimeContract_TypeAndLeafHooks(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.node": NewMockValueResolver(map[string]any{}),
		"Impl.a":     NewMockValueResolver("A"),
	})
	var resolved, serialized int
	rt.SetTypeResolver(func(value any) (string, error) { resolved++; return "Impl", nil })
	rt.SetSerializer(func(val any, typeName string) (any, error) { serialized++; return val.(string) + "!", nil })

	got := NewExecutor(rt, contractSchema(t)).ExecuteRequest(context.Background(), mustParseQuery(t, "{ node { a } }"), "", nil, nil)
	assertResult(t, &ExecutionResult{Data: map[string]any{"node": map[string]any{"a": "A!"}}, Errors: []GraphQLError{}}, got)
	require.Equal(t, 1, resolved)
	require.Equal(t, 1, serialized)
}

func TestRuntimeContract_AbstractMustResolveToObject(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{"Query.node": NewMockValueResolver(map[string]any{})})
	rt.SetTypeResolver(func(value any) (string, error) { return "Node", nil })

	got := NewExecutor(rt, contractSchema(t)).ExecuteRequest(context.Background(), mustParseQuery(t, "{ node { a } }"), "", nil, nil)
	assertResult(t, &ExecutionResult{
		Data:   map[string]any{"node": nil},
		Errors: []GraphQLError{{Message: "Abstract type Node must resolve to an Object type at runtime. Got: Node", Path: Path{"node"}}},
	}, got)
}

func TestRuntimeContract_BatchPartialFailure(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockErrorResolver(errors.New("boom")),
		"Query.b": NewMockValueResolver("B"),
	})
	got := NewExecutor(rt, contractSchema(t, "a", "b")).ExecuteRequest(context.Background(), mustParseQuery(t, "{ a b }"), "", nil, nil)
	assertResult(t, &ExecutionResult{
		Data:   map[string]any{"a": nil, "b": "B"},
		Errors: []GraphQLError{{Message: "boom", Path: Path{"a"}}},
	}, got)
}

// shortRuntime drops the last result of every batch.
type shortRuntime struct{ *MockRuntime }

func (r shortRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	res := r.MockRuntime.BatchResolveAsync(ctx, tasks)
	return res[:len(res)-1]
}

func TestRuntimeContract_ResultCountMismatch(t *testing.T) {
	rt := shortRuntime{NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockValueResolver("A"),
		"Query.b": NewMockValueResolver("B"),
	})}
	got := NewExecutor(rt, contractSchema(t, "a", "b")).ExecuteRequest(context.Background(), mustParseQuery(t, "{ a b }"), "", nil, nil)
	assertResult(t, &ExecutionResult{
		Data: map[string]any{"a": nil, "b": nil},
		Errors: []GraphQLError{
			{Message: "runtime returned 1 results for 2 tasks", Path: Path{"a"}},
			{Message: "runtime returned 1 results for 2 tasks", Path: Path{"b"}},
		},
	}, got)
}
