package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	schema "github.com/hanpama/gqlwrap/internal/schema"
)

func TestExecute_OperationSelection(t *testing.T) {
	sch := newSchemaWithQueryType(newObjectType("Query",
		schema.NewField("a", "", schema.NamedType("String")),
		schema.NewField("b", "", schema.NamedType("String")),
	))
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockValueResolver("A"),
		"Query.b": NewMockValueResolver("B"),
	})
	exec := NewExecutor(rt, sch)

	t.Run("Named operation", func(t *testing.T) {
		got := exec.ExecuteRequest(context.Background(), mustParseQuery(t, "query Foo { a } query Bar { b }"), "Bar", nil, nil)
		assertResult(t, &ExecutionResult{Data: map[string]any{"b": "B"}, Errors: []GraphQLError{}}, got)
	})

	t.Run("Ambiguous operation", func(t *testing.T) {
		got := exec.ExecuteRequest(context.Background(), mustParseQuery(t, "query Foo { a } query Bar { b }"), "", nil, nil)
		assertResult(t, &ExecutionResult{Errors: []GraphQLError{{Message: "operation not found"}}}, got)
	})
}

func TestExecute_VariableCoercion(t *testing.T) {
	echo := schema.NewField("echo", "", schema.NamedType("Int")).
		AddArgument(schema.NewInputValue("v", "", schema.NamedType("Int")))
	sch := newSchemaWithQueryType(newObjectType("Query", echo))
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.echo": func(ctx context.Context, src any, args map[string]any) (any, error) { return args["v"], nil },
	})
	exec := NewExecutor(rt, sch)

	tests := []struct {
		name  string
		query string
		vars  map[string]any
		want  *ExecutionResult
	}{
		{
			name:  "Provided",
			query: "query($v: Int!){ echo(v: $v) }",
			vars:  map[string]any{"v": 3},
			want:  &ExecutionResult{Data: map[string]any{"echo": 3}, Errors: []GraphQLError{}},
		},
		{
			name:  "Default",
			query: "query($v: Int = 5){ echo(v: $v) }",
			want:  &ExecutionResult{Data: map[string]any{"echo": 5}, Errors: []GraphQLError{}},
		},
		{
			name:  "Missing required",
			query: "query($v: Int!){ echo(v: $v) }",
			want:  &ExecutionResult{Errors: []GraphQLError{{Message: "variable $v of required type Int! was not provided"}}},
		},
		{
			name:  "Null for non-null",
			query: "query($v: Int!){ echo(v: $v) }",
			vars:  map[string]any{"v": nil},
			want:  &ExecutionResult{Errors: []GraphQLError{{Message: "variable $v of type Int! cannot be null"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exec.ExecuteRequest(context.Background(), mustParseQuery(t, tt.query), "", tt.vars, nil)
			assertResult(t, tt.want, got)
		})
	}
}

func TestExecute_NonNullPropagation(t *testing.T) {
	sch := newSchemaWithQueryType(
		newObjectType("Query", schema.NewField("obj", "", schema.NamedType("Obj"))),
		newObjectType("Obj",
			schema.NewField("a", "", schema.NonNullType(schema.NamedType("String"))),
			schema.NewField("b", "", schema.NamedType("String")),
		),
	)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.obj": NewMockValueResolver(map[string]any{"b": "B"}),
		"Obj.a":     NewMockValueResolver(nil),
	})

	got := NewExecutor(rt, sch).ExecuteRequest(context.Background(), mustParseQuery(t, "{ obj { a b } }"), "", nil, nil)
	assertResult(t, &ExecutionResult{
		Data:   map[string]any{"obj": nil},
		Errors: []GraphQLError{{Message: "Cannot return null for non-nullable field obj.a", Path: Path{"obj", "a"}}},
	}, got)
}

func TestExecute_ResolverErrors(t *testing.T) {
	sch := newSchemaWithQueryType(newObjectType("Query",
		schema.NewField("objs", "", schema.ListType(schema.NamedType("String"))),
		schema.NewField("multi", "", schema.NamedType("String")),
	))

	remote := GraphQLError{
		Message:    "denied",
		Path:       Path{"nested"},
		Extensions: map[string]any{"code": "FORBIDDEN"},
	}
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.objs":  NewMockErrorResolver(fmt.Errorf("boom")),
		"Query.multi": NewMockErrorResolver(errors.Join(remote, errors.New("second"))),
	})

	got := NewExecutor(rt, sch).ExecuteRequest(context.Background(), mustParseQuery(t, "{ objs m: multi }"), "", nil, nil)
	assertResult(t, &ExecutionResult{
		Data: map[string]any{"objs": nil, "m": nil},
		Errors: []GraphQLError{
			{Message: "boom", Path: Path{"objs"}},
			{Message: "denied", Path: Path{"m", "nested"}, Extensions: map[string]any{"code": "FORBIDDEN"}},
			{Message: "second", Path: Path{"m"}},
		},
	}, got)
	require.EqualError(t, got.Errors[0].Err, "boom")
}

func TestExecute_PartialListResult(t *testing.T) {
	sch := newSchemaWithQueryType(newObjectType("Query",
		schema.NewField("items", "", schema.ListType(schema.NamedType("String"))).SetAsync(true),
	))
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.items": func(ctx context.Context, src any, args map[string]any) (any, error) {
			return []any{"a", nil}, GraphQLError{Message: "missing", Path: Path{1}}
		},
	})

	got := NewExecutor(rt, sch).ExecuteRequest(context.Background(), mustParseQuery(t, "{ items }"), "", nil, nil)
	assertResult(t, &ExecutionResult{
		Data:   map[string]any{"items": []any{"a", nil}},
		Errors: []GraphQLError{{Message: "missing", Path: Path{"items", 1}}},
	}, got)
}

func TestExecute_AsyncDepths(t *testing.T) {
	sch := newSchemaWithQueryType(
		newObjectType("Query", schema.NewField("users", "", schema.ListType(schema.NamedType("User"))).SetAsync(true)),
		newObjectType("User",
			schema.NewField("name", "", schema.NamedType("String")),
			schema.NewField("friend", "", schema.NamedType("User")).SetAsync(true),
		),
	)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.users": NewMockValueResolver([]any{map[string]any{"name": "a"}, map[string]any{"name": "b"}}),
		"User.friend": func(ctx context.Context, src any, args map[string]any) (any, error) {
			return map[string]any{"name": src.(map[string]any)["name"].(string) + "'"}, nil
		},
	})

	got := NewExecutor(rt, sch).ExecuteRequest(context.Background(), mustParseQuery(t, "{ users { name friend { name } } }"), "", nil, nil)
	assertResult(t, &ExecutionResult{
		Data: map[string]any{"users": []any{
			map[string]any{"name": "a", "friend": map[string]any{"name": "a'"}},
			map[string]any{"name": "b", "friend": map[string]any{"name": "b'"}},
		}},
		Errors: []GraphQLError{},
	}, got)

	batches := map[int]int{}
	for _, c := range rt.GetCalls() {
		if c.Kind == CallKindAsync {
			batches[c.BatchID]++
		}
	}
	if diff := cmp.Diff(map[int]int{1: 1, 2: 2}, batches); diff != "" {
		t.Fatalf("batch sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_ResolveInfo(t *testing.T) {
	var captured *schema.ResolveInfo
	field := schema.NewField("greet", "", schema.NamedType("String")).
		AddArgument(schema.NewInputValue("name", "", schema.NamedType("String"))).
		SetResolve(func(ctx context.Context, source any, args map[string]any, info *schema.ResolveInfo) (any, error) {
			captured = info
			return "hi " + args["name"].(string), nil
		})
	sch := newSchemaWithQueryType(newObjectType("Query", field))

	doc := mustParseQuery(t, `query Greeting($n: String) { ...F } fragment F on Query { hello: greet(name: $n) }`)
	got := NewExecutor(NewResolverRuntime(), sch).ExecuteRequest(context.Background(), doc, "", map[string]any{"n": "bob"}, nil)
	assertResult(t, &ExecutionResult{Data: map[string]any{"hello": "hi bob"}, Errors: []GraphQLError{}}, got)

	require.NotNil(t, captured)
	require.Equal(t, "greet", captured.FieldName)
	require.Equal(t, "hello", captured.ResponseKey())
	require.Equal(t, "Query", captured.ParentType.Name)
	require.Equal(t, []any{"hello"}, captured.Path)
	require.Equal(t, "Greeting", captured.Operation.Name)
	require.Len(t, captured.Fragments, 1)
	require.Equal(t, map[string]any{"n": "bob"}, captured.VariableValues)
	require.Same(t, sch, captured.Schema)
}

type namedThing struct {
	Name string
	kind string
}

func (n namedThing) Typename() string { return n.kind }

func TestResolverRuntime(t *testing.T) {
	sch := newSchemaWithQueryType(
		newObjectType("Query",
			schema.NewField("things", "", schema.ListType(schema.NamedType("Thing"))),
			schema.NewField("slow", "", schema.NamedType("String")).SetAsync(true).
				AddArgument(schema.NewInputValue("i", "", schema.NamedType("Int"))).
				SetResolve(func(ctx context.Context, source any, args map[string]any, info *schema.ResolveInfo) (any, error) {
					if args["i"] == 2 {
						return nil, errors.New("two")
					}
					return fmt.Sprint(args["i"]), nil
				}),
		),
		newObjectType("Dog", schema.NewField("name", "", schema.NamedType("String"))),
		newObjectType("Cat", schema.NewField("name", "", schema.NamedType("String"))),
		schema.NewType("Thing", schema.TypeKindUnion, "").AddPossibleType("Dog").AddPossibleType("Cat"),
	)
	sch.GetQueryType().FieldByName("things").SetResolve(func(ctx context.Context, source any, args map[string]any, info *schema.ResolveInfo) (any, error) {
		return []any{
			map[string]any{"__typename": "Dog", "name": "rex"},
			namedThing{Name: "tom", kind: "Cat"},
		}, nil
	})

	doc := mustParseQuery(t, `{
		things { __typename ... on Dog { name } ... on Cat { name } }
		a: slow(i: 1) b: slow(i: 2) c: slow(i: 3)
	}`)
	got := NewExecutor(NewResolverRuntime(WithConcurrency(2)), sch).ExecuteRequest(context.Background(), doc, "", nil, nil)
	assertResult(t, &ExecutionResult{
		Data: map[string]any{
			"things": []any{
				map[string]any{"__typename": "Dog", "name": "rex"},
				map[string]any{"__typename": "Cat", "name": "tom"},
			},
			"a": "1",
			"b": nil,
			"c": "3",
		},
		Errors: []GraphQLError{{Message: "two", Path: Path{"b"}}},
	}, got)
}

func TestExecute_InputCoercion(t *testing.T) {
	filter := schema.NewType("Filter", schema.TypeKindInputObject, "").
		AddInputField(schema.NewInputValue("kind", "", schema.NonNullType(schema.NamedType("Kind")))).
		AddInputField(schema.NewInputValue("limit", "", schema.NamedType("Int")).SetDefault(10))
	kind := schema.NewType("Kind", schema.TypeKindEnum, "").
		AddEnumValue(schema.NewEnumValue("HOME", "")).
		AddEnumValue(schema.NewEnumValue("WORK", ""))
	find := schema.NewField("find", "", schema.NamedType("String")).
		AddArgument(schema.NewInputValue("filter", "", schema.NamedType("Filter")))

	var got map[string]any
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.find": func(ctx context.Context, src any, args map[string]any) (any, error) {
			got, _ = args["filter"].(map[string]any)
			return "ok", nil
		},
	})
	exec := NewExecutor(rt, newSchemaWithQueryType(newObjectType("Query", find), filter, kind))

	res := exec.ExecuteRequest(context.Background(), mustParseQuery(t, `{ find(filter: {kind: WORK}) }`), "", nil, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"kind": "WORK", "limit": 10}, got)

	res = exec.ExecuteRequest(context.Background(),
		mustParseQuery(t, `query($k: Kind!) { find(filter: {kind: $k, limit: 2}) }`), "",
		map[string]any{"k": "HOME"}, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"kind": "HOME", "limit": 2}, got)

	res = exec.ExecuteRequest(context.Background(), mustParseQuery(t, `{ find(filter: {kind: PARTY}) }`), "", nil, nil)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0].Message, "PARTY is not a value of enum Kind")

	res = exec.ExecuteRequest(context.Background(),
		mustParseQuery(t, `query($f: Filter) { find(filter: $f) }`), "",
		map[string]any{"f": map[string]any{"limit": 1.0}}, nil)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0].Message, "Filter.kind of required type Kind! was not provided")
}

func TestExecute_AsyncNullBubblesToNearestNullable(t *testing.T) {
	sch := newSchemaWithQueryType(
		newObjectType("Query", schema.NewField("users", "", schema.ListType(schema.NamedType("User"))).SetAsync(true)),
		newObjectType("User",
			schema.NewField("name", "", schema.NamedType("String")),
			schema.NewField("friend", "", schema.NonNullType(schema.NamedType("User"))).SetAsync(true),
		),
	)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.users": NewMockValueResolver([]any{map[string]any{"name": "a"}, map[string]any{"name": "b"}}),
		"User.friend": func(ctx context.Context, src any, args map[string]any) (any, error) {
			if src.(map[string]any)["name"] == "b" {
				return nil, nil
			}
			return map[string]any{"name": "a'"}, nil
		},
	})

	got := NewExecutor(rt, sch).ExecuteRequest(context.Background(), mustParseQuery(t, "{ users { name friend { name } } }"), "", nil, nil)
	assertResult(t, &ExecutionResult{
		Data: map[string]any{"users": []any{
			map[string]any{"name": "a", "friend": map[string]any{"name": "a'"}},
			nil,
		}},
		Errors: []GraphQLError{{Message: "Cannot return null for non-nullable field users[1].friend", Path: Path{"users", 1, "friend"}}},
	}, got)
}

func TestExecute_PendingFieldsBelowNullAreDropped(t *testing.T) {
	sch := newSchemaWithQueryType(
		newObjectType("Query", schema.NewField("obj", "", schema.NamedType("Obj"))),
		newObjectType("Obj",
			schema.NewField("later", "", schema.NamedType("String")).SetAsync(true),
			schema.NewField("req", "", schema.NonNullType(schema.NamedType("String"))),
		),
	)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.obj": NewMockValueResolver(map[string]any{}),
		"Obj.later": NewMockValueResolver("L"),
		"Obj.req":   NewMockValueResolver(nil),
	})

	got := NewExecutor(rt, sch).ExecuteRequest(context.Background(), mustParseQuery(t, "{ obj { later req } }"), "", nil, nil)
	assertResult(t, &ExecutionResult{
		Data:   map[string]any{"obj": nil},
		Errors: []GraphQLError{{Message: "Cannot return null for non-nullable field obj.req", Path: Path{"obj", "req"}}},
	}, got)
	for _, c := range rt.GetCalls() {
		require.NotEqual(t, CallKindAsync, c.Kind)
	}
}
