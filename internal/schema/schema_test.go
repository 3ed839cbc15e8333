package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	language "github.com/hanpama/graphedge/internal/language"
)

const testSDL = `
"Entry points"
type Query {
  hello(name: String = "world"): String
  node(id: ID!): Node
  pets: [Pet!]!
}

type Subscription {
  ticks(limit: Int): Int!
}

interface Node { id: ID! }

type Dog implements Node {
  id: ID!
  name: String @deprecated(reason: "use title")
  title: String
}

type Cat implements Node {
  id: ID!
  lives: Int @deprecated
}

union Pet = Dog | Cat

enum Color { RED GREEN @deprecated }

input Filter @oneOf { name: String, id: ID }

scalar Time @specifiedBy(url: "https://example.com/time")
`

func mustBuild(t *testing.T) *Schema {
	t.Helper()
	s, err := BuildFromSDL(&language.Source{Name: "test.graphql", Input: testSDL})
	require.NoError(t, err)
	return s
}

func TestBuildFromSDLRoots(t *testing.T) {
	s := mustBuild(t)
	require.Equal(t, "Query", s.QueryType)
	require.Equal(t, "", s.MutationType)
	require.Equal(t, "Subscription", s.SubscriptionType)
	require.NotNil(t, s.AST)
	require.True(t, s.IsRootType("Query"))
	require.False(t, s.IsRootType("Dog"))
}

func TestBuildFromSDLQueryType(t *testing.T) {
	s := mustBuild(t)
	want := &Type{
		Name: "Query",
		Kind: TypeKindObject,
		Fields: NewFieldMap(
			&Field{
				Name:  "hello",
				Type:  NamedType("String"),
				Async: true,
				Arguments: []*InputValue{
					{Name: "name", Type: NamedType("String"), DefaultValue: "world", DefaultLiteral: `"world"`},
				},
			},
			&Field{
				Name:      "node",
				Type:      NamedType("Node"),
				Async:     true,
				Arguments: []*InputValue{{Name: "id", Type: NonNullType(NamedType("ID"))}},
			},
			&Field{Name: "pets", Type: NonNullType(ListType(NonNullType(NamedType("Pet")))), Async: true},
		),
	}
	if diff := cmp.Diff(want, s.GetQueryType(), cmpopts.IgnoreFields(Type{}, "Description")); diff != "" {
		t.Fatalf("Query type mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFromSDLAbstractAndLeafTypes(t *testing.T) {
	s := mustBuild(t)

	dog := s.Types["Dog"]
	require.Equal(t, []string{"Node"}, dog.Interfaces)
	require.False(t, dog.FieldByName("id").Async, "non-root fields are sync")
	name := dog.FieldByName("name")
	require.True(t, name.IsDeprecated)
	require.Equal(t, "use title", name.DeprecationReason)
	require.Equal(t, defaultDeprecationReason, s.Types["Cat"].FieldByName("lives").DeprecationReason)

	require.ElementsMatch(t, []string{"Dog", "Cat"}, s.Types["Node"].PossibleTypes)
	require.Equal(t, []string{"Dog", "Cat"}, s.Types["Pet"].PossibleTypes)
	require.True(t, dog.Implements(s, "Pet"))
	require.True(t, dog.Implements(s, "Node"))
	require.False(t, dog.Implements(s, "Color"))

	color := s.Types["Color"]
	require.Equal(t, TypeKindEnum, color.Kind)
	require.Len(t, color.EnumValues, 2)
	require.True(t, color.EnumValues[1].IsDeprecated)

	filter := s.Types["Filter"]
	require.Equal(t, TypeKindInputObject, filter.Kind)
	require.True(t, filter.OneOf)
	require.Len(t, filter.InputFields, 2)

	tm := s.Types["Time"]
	require.NotNil(t, tm.SpecifiedByURL)
	require.Equal(t, "https://example.com/time", *tm.SpecifiedByURL)
}

func TestBuildFromSDLIncludesPrelude(t *testing.T) {
	s := mustBuild(t)
	for _, name := range []string{"String", "Int", "Boolean", "__Schema", "__Type"} {
		typ := s.Types[name]
		require.NotNil(t, typ, name)
		require.True(t, typ.BuiltIn, name)
	}
	require.NotNil(t, s.Directives["skip"])
	require.NotNil(t, s.Directives["include"])
}

func TestBuildFromSDLSkipsMetaFields(t *testing.T) {
	s := mustBuild(t)
	require.Nil(t, s.GetQueryType().FieldByName("__schema"))
	require.Nil(t, s.GetQueryType().FieldByName("__type"))
}

func TestBuildFromSDLRequiresQuery(t *testing.T) {
	_, err := BuildFromSDL(&language.Source{Name: "x.graphql", Input: `type Mutation { a: String }`})
	require.Error(t, err)
}

func TestTypeRefString(t *testing.T) {
	require.Equal(t, "[String!]!", NonNullType(ListType(NonNullType(NamedType("String")))).String())
}
