package wrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	delegate "github.com/hanpama/gqlwrap/internal/delegate"
	executor "github.com/hanpama/gqlwrap/internal/executor"
	language "github.com/hanpama/gqlwrap/internal/language"
	schema "github.com/hanpama/gqlwrap/internal/schema"
	transforms "github.com/hanpama/gqlwrap/internal/transforms"
)

const accountsSDL = `
type Query { me: User }
type User { id: ID!  profile: Profile }
type Profile { handle: String  bio: String }
`

func accounts(t *testing.T, ts ...delegate.Transform) *delegate.SubschemaConfig {
	t.Helper()
	s, err := schema.BuildFromSDL(accountsSDL)
	require.NoError(t, err)
	root := map[string]any{
		"me": map[string]any{"id": "u1", "profile": map[string]any{"handle": "@gopher"}},
	}
	return &delegate.SubschemaConfig{
		Name:       "accounts",
		Schema:     s,
		Executor:   delegate.NewLocalExecutor(executor.NewResolverRuntime(), s).WithRootValue(root),
		Transforms: ts,
	}
}

func run(t *testing.T, s *schema.Schema, query string) *executor.ExecutionResult {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return executor.NewExecutor(executor.NewResolverRuntime(), s).
		ExecuteRequest(context.Background(), doc, "", nil, nil)
}

func TestSchemaRootFieldsDelegate(t *testing.T) {
	s, err := Schema(accounts(t))
	require.NoError(t, err)

	me := s.GetQueryType().FieldByName("me")
	require.True(t, me.Async)
	require.False(t, s.Types["User"].FieldByName("profile").Async)

	res := run(t, s, `{ me { id profile { handle } } }`)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"me": map[string]any{"id": "u1", "profile": map[string]any{"handle": "@gopher"}},
	}, res.Data)
}

func TestSchemaWithHoistField(t *testing.T) {
	hoist, err := transforms.NewHoistField("User", transforms.Segments("profile", "handle"), "handle")
	require.NoError(t, err)
	s, err := Schema(accounts(t, hoist))
	require.NoError(t, err)

	require.NotNil(t, s.Types["User"].FieldByName("handle"))
	require.Nil(t, s.Types["Profile"].FieldByName("handle"))

	res := run(t, s, `{ me { id h: handle } }`)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"me": map[string]any{"id": "u1", "h": "@gopher"},
	}, res.Data)
}

const directorySDL = `
type Query { user(id: ID!): User  team: Team }
type User { id: ID!  address: Address }
type Address { city: City }
type City { name(lang: String): String  code: String }
type Team { members: [Member] }
type Member { profile: Profile }
type Profile { handle: String  bad: String }
`

// directory is a subschema whose resolvers read arguments and fail on
// Profile.bad, so that delegated arguments and errors can be observed.
func directory(t *testing.T, ts ...delegate.Transform) *delegate.SubschemaConfig {
	t.Helper()
	s, err := schema.BuildFromSDL(directorySDL)
	require.NoError(t, err)
	users := map[string]any{
		"1": map[string]any{"id": "1", "address": map[string]any{"city": map[string]any{"name": "Seoul", "code": "SEL"}}},
	}
	s = schema.MapFields(s, func(ty *schema.Type, f *schema.Field) *schema.Field {
		var resolve schema.FieldResolveFunc
		switch ty.Name + "." + f.Name {
		case "Query.user":
			resolve = func(_ context.Context, _ any, args map[string]any, _ *schema.ResolveInfo) (any, error) {
				return users[args["id"].(string)], nil
			}
		case "City.name":
			resolve = func(_ context.Context, src any, args map[string]any, _ *schema.ResolveInfo) (any, error) {
				if args["lang"] == "ko" {
					return "서울", nil
				}
				return src.(map[string]any)["name"], nil
			}
		case "Profile.bad":
			resolve = func(context.Context, any, map[string]any, *schema.ResolveInfo) (any, error) {
				return nil, errors.New("boom")
			}
		default:
			return f
		}
		return f.Copy().SetResolve(resolve)
	})
	root := map[string]any{
		"team": map[string]any{"members": []any{
			map[string]any{"profile": map[string]any{"handle": "@a"}},
			nil,
			map[string]any{"profile": map[string]any{"handle": "@c"}},
		}},
	}
	return &delegate.SubschemaConfig{
		Name:       "directory",
		Schema:     s,
		Executor:   delegate.NewLocalExecutor(executor.NewResolverRuntime(), s).WithRootValue(root),
		Transforms: ts,
	}
}

func allArgs(*schema.InputValue) bool { return true }

func TestSchemaWithRootHoist(t *testing.T) {
	hoist, err := transforms.NewHoistField("Query", []transforms.PathSegment{
		{FieldName: "user", ArgFilter: allArgs},
		{FieldName: "address"},
		{FieldName: "city"},
		{FieldName: "name"},
	}, "cityName")
	require.NoError(t, err)
	s, err := Schema(directory(t, hoist))
	require.NoError(t, err)

	f := s.GetQueryType().FieldByName("cityName")
	require.NotNil(t, f)
	require.True(t, f.Async)
	var args []string
	for _, a := range f.Arguments {
		args = append(args, a.Name)
	}
	require.Equal(t, []string{"id", "lang"}, args)

	res := run(t, s, `{ ko: cityName(id: "1", lang: "ko") en: cityName(id: "1") nobody: cityName(id: "2") }`)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"ko": "서울", "en": "Seoul", "nobody": nil}, res.Data)
}

func TestSchemaWithListHoist(t *testing.T) {
	handles, err := transforms.NewHoistField("Team", transforms.Segments("members", "profile", "handle"), "handles")
	require.NoError(t, err)
	bads, err := transforms.NewHoistField("Team", transforms.Segments("members", "profile", "bad"), "bads",
		transforms.WithAlias(transforms.DefaultAlias+"1"))
	require.NoError(t, err)
	s, err := Schema(directory(t, handles, bads))
	require.NoError(t, err)
	require.Equal(t, "[String]", s.Types["Team"].FieldByName("handles").Type.String())

	t.Run("null member stays null", func(t *testing.T) {
		res := run(t, s, `{ team { handles } }`)
		require.Empty(t, res.Errors)
		require.Equal(t, map[string]any{
			"team": map[string]any{"handles": []any{"@a", nil, "@c"}},
		}, res.Data)
	})

	t.Run("errors keep their index", func(t *testing.T) {
		res := run(t, s, `{ team { handles bads } }`)
		require.Equal(t, map[string]any{
			"team": map[string]any{"handles": []any{"@a", nil, "@c"}, "bads": []any{nil, nil, nil}},
		}, res.Data)
		var paths []executor.Path
		for _, e := range res.Errors {
			require.Equal(t, "boom", e.Message)
			paths = append(paths, e.Path)
		}
		require.ElementsMatch(t, []executor.Path{{"team", "bads", 0}, {"team", "bads", 2}}, paths)
	})
}

func TestSchemaWithoutSchema(t *testing.T) {
	_, err := Schema(&delegate.SubschemaConfig{Name: "empty"})
	require.ErrorContains(t, err, "has no schema")
}

func TestMerge(t *testing.T) {
	a, err := schema.BuildFromSDL(`
type Query { me: User }
type User { id: ID! }
scalar Time
`)
	require.NoError(t, err)
	b, err := schema.BuildFromSDL(`
type RootQuery { posts: [Post] }
type Mutation { publish(id: ID!): Post }
type Post { id: ID!  at: Time }
scalar Time
schema { query: RootQuery mutation: Mutation }
`)
	require.NoError(t, err)

	merged, err := Merge(a, b)
	require.NoError(t, err)
	require.Equal(t, "Query", merged.QueryType)
	require.Equal(t, "Mutation", merged.MutationType)
	require.Empty(t, merged.SubscriptionType)

	var fields []string
	for _, f := range merged.GetQueryType().Fields {
		fields = append(fields, f.Name)
	}
	require.ElementsMatch(t, []string{"me", "posts"}, fields)
	require.NotNil(t, merged.Types["Time"])
	require.Nil(t, merged.Types["RootQuery"])
}

func TestMergeConflicts(t *testing.T) {
	build := func(sdl string) *schema.Schema {
		s, err := schema.BuildFromSDL(sdl)
		require.NoError(t, err)
		return s
	}
	tests := []struct {
		name    string
		a, b    string
		wantErr string
	}{
		{
			name:    "root field twice",
			a:       `type Query { me: String }`,
			b:       `type Query { me: String }`,
			wantErr: "field Query.me is defined by more than one subschema",
		},
		{
			name:    "type differs",
			a:       `type Query { a: User } type User { id: ID }`,
			b:       `type Query { b: User } type User { id: ID  name: String }`,
			wantErr: "type User is defined by more than one subschema",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Merge(build(tt.a), build(tt.b))
			require.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := Merge()
	require.ErrorContains(t, err, "nothing to merge")
}
