package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testSDL = `
"""A person"""
type User {
  id: ID!
  name(upper: Boolean = false): String
  friends(first: Int): [User!]!
  old: String @deprecated(reason: "use name")
}

enum Role { ADMIN MEMBER }

input Filter { role: Role, limit: Int = 10 }

union Node = User

type Query {
  me: User
  users(filter: Filter): [User]
}
`

func TestBuildFromSDL(t *testing.T) {
	s, err := BuildFromSDL(testSDL)
	require.NoError(t, err)

	require.Equal(t, "Query", s.QueryType)
	require.Empty(t, s.MutationType)

	user := s.Types["User"]
	require.NotNil(t, user)
	require.Equal(t, TypeKindObject, user.Kind)
	require.Equal(t, "A person", user.Description)
	require.Nil(t, user.FieldByName("__typename"))

	friends := user.FieldByName("friends")
	require.Equal(t, "[User!]!", friends.Type.String())
	require.True(t, friends.Type.IsList())
	require.Equal(t, "User", GetNamedType(friends.Type))

	name := user.FieldByName("name")
	require.Equal(t, false, name.ArgumentByName("upper").DefaultValue)

	old := user.FieldByName("old")
	require.True(t, old.IsDeprecated)
	require.Equal(t, "use name", old.DeprecationReason)

	require.Equal(t, TypeKindUnion, s.Types["Node"].Kind)
	require.Equal(t, []string{"User"}, s.Types["Node"].PossibleTypes)
	require.Equal(t, TypeKindInputObject, s.Types["Filter"].Kind)
	require.Len(t, s.GetQueryType().Fields, 2)
}

func TestBuildFromSDL_Invalid(t *testing.T) {
	_, err := BuildFromSDL(`type Query { a: Missing }`)
	require.Error(t, err)
}

func TestRenderRoundTrip(t *testing.T) {
	s, err := BuildFromSDL(testSDL)
	require.NoError(t, err)

	sdl := Render(s)
	again, err := BuildFromSDL(sdl)
	require.NoError(t, err)

	if diff := cmp.Diff(Render(s), Render(again)); diff != "" {
		t.Fatalf("render not stable (-first +second):\n%s", diff)
	}
	require.Contains(t, sdl, "friends(first: Int): [User!]!")
}

func TestRenderCustomRoots(t *testing.T) {
	s, err := BuildFromSDL(`
schema { query: Root mutation: Change }
type Root { a: Int }
type Change { b: Int }
`)
	require.NoError(t, err)
	sdl := Render(s)
	require.Contains(t, sdl, "query: Root")
	require.Contains(t, sdl, "mutation: Change")
}

func TestRemoveFieldsDoesNotMutate(t *testing.T) {
	s, err := BuildFromSDL(testSDL)
	require.NoError(t, err)

	out, removed, err := RemoveFields(s, "User", func(name string, _ *Field) bool { return name == "name" })
	require.NoError(t, err)
	require.Len(t, removed, 1)
	require.Equal(t, "name", removed[0].Name)

	require.Nil(t, out.Types["User"].FieldByName("name"))
	require.NotNil(t, s.Types["User"].FieldByName("name"), "original schema must keep the field")
	require.Same(t, s.Types["Query"], out.Types["Query"], "untouched types are shared")
}

func TestRemoveFieldsUnknownType(t *testing.T) {
	s, err := BuildFromSDL(testSDL)
	require.NoError(t, err)

	_, _, err = RemoveFields(s, "Nope", func(string, *Field) bool { return true })
	require.Error(t, err)
	_, _, err = RemoveFields(s, "Role", func(string, *Field) bool { return true })
	require.Error(t, err)
}

func TestAppendFields(t *testing.T) {
	s, err := BuildFromSDL(testSDL)
	require.NoError(t, err)

	out, err := AppendFields(s, "Query", NewField("total", "", NamedType("Int")))
	require.NoError(t, err)
	require.NotNil(t, out.GetQueryType().FieldByName("total"))
	require.Nil(t, s.GetQueryType().FieldByName("total"))

	_, err = AppendFields(out, "Query", NewField("total", "", NamedType("Int")))
	require.Error(t, err)
}

func TestMapFieldsSharesUnchangedTypes(t *testing.T) {
	s, err := BuildFromSDL(testSDL)
	require.NoError(t, err)

	out := MapFields(s, func(typ *Type, f *Field) *Field {
		if typ.Name != "Query" {
			return f
		}
		c := f.Copy()
		c.Async = true
		return c
	})
	require.True(t, out.GetQueryType().FieldByName("me").Async)
	require.False(t, s.GetQueryType().FieldByName("me").Async)
	require.Same(t, s.Types["User"], out.Types["User"])
}

func TestNullable(t *testing.T) {
	ref := NonNullType(ListType(NamedType("User")))
	require.Equal(t, "[User]", Nullable(ref).String())
	require.Equal(t, "[User]", Nullable(Nullable(ref)).String())
}

func TestClassifyOutput(t *testing.T) {
	tests := []struct {
		ref   *TypeRef
		shape OutputShape
		named string
	}{
		{NamedType("User"), ShapePlain, "User"},
		{NonNullType(NamedType("User")), ShapePlain, "User"},
		{ListType(NamedType("User")), ShapeList, "User"},
		{ListType(NonNullType(NamedType("User"))), ShapeList, "User"},
		{NonNullType(ListType(NamedType("User"))), ShapeNonNullList, "User"},
		{ListType(ListType(NamedType("User"))), ShapeOther, "User"},
		{NonNullType(ListType(NonNullType(ListType(NamedType("User"))))), ShapeOther, "User"},
	}
	for _, tt := range tests {
		t.Run(tt.ref.String(), func(t *testing.T) {
			shape, named := ClassifyOutput(tt.ref)
			require.Equal(t, tt.shape, shape)
			require.Equal(t, tt.named, named)
		})
	}
}
