package executor_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"

	executor "github.com/hanpama/graphedge/internal/executor"
	schema "github.com/hanpama/graphedge/internal/schema"
)

// Pattern: Result comparison
func TestCompleteValue_NonNullPropagation(t *testing.T) {
	sch := &schema.Schema{
		QueryType: "Query",
		Types: map[string]*schema.Type{
			"Query": {Name: "Query", Kind: schema.TypeKindObject, Fields: schema.NewFieldMap(
				&schema.Field{Name: "obj", Type: schema.NonNullType(schema.NamedType("Obj"))},
				&schema.Field{Name: "other", Type: schema.NamedType("String")},
			)},
			"Obj": {Name: "Obj", Kind: schema.TypeKindObject, Fields: schema.NewFieldMap(
				&schema.Field{Name: "a", Type: schema.NonNullType(schema.NamedType("String"))},
				&schema.Field{Name: "b", Type: schema.NonNullType(schema.NamedType("String")), Async: true},
			)},
			"String": {Name: "String", Kind: schema.TypeKindScalar},
		},
	}

	t.Run("sync error drops queued siblings", func(t *testing.T) {
		rt := executor.NewMockRuntime(map[string]executor.MockResolver{
			"Query.obj":   executor.NewMockValueResolver(map[string]any{}),
			"Query.other": executor.NewMockValueResolver("O"),
			"Obj.a":       executor.NewMockErrorResolver(fmt.Errorf("boom")),
			"Obj.b":       executor.NewMockValueResolver("B"),
		})
		gotRes := executor.NewExecutor(rt).ExecuteRequest(context.Background(), sch, mustParseQuery(t, "{ obj { a b } other }"), "", nil, nil)

		wantRes := &executor.ExecutionResult{
			Data:   map[string]any{"obj": nil, "other": "O"},
			Errors: gqlerror.List{{Message: "boom", Path: path("obj", "a")}},
		}
		if diff := cmp.Diff(wantRes, gotRes); diff != "" {
			t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
		}
		for _, c := range rt.GetCalls() {
			require.NotEqual(t, executor.CallKindAsync, c.Kind, "no async task may run under a nulled field")
		}
	})

	t.Run("async null", func(t *testing.T) {
		rt := executor.NewMockRuntime(map[string]executor.MockResolver{
			"Query.obj": executor.NewMockValueResolver(map[string]any{}),
			"Obj.a":     executor.NewMockValueResolver("A"),
			"Obj.b":     executor.NewMockValueResolver(nil),
		})
		gotRes := executor.NewExecutor(rt).ExecuteRequest(context.Background(), sch, mustParseQuery(t, "{ obj { a b } }"), "", nil, nil)

		wantRes := &executor.ExecutionResult{
			Data:   map[string]any{"obj": nil},
			Errors: gqlerror.List{{Message: "Cannot return null for non-nullable field obj.b", Path: path("obj", "b")}},
		}
		if diff := cmp.Diff(wantRes, gotRes); diff != "" {
			t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("async error", func(t *testing.T) {
		rt := executor.NewMockRuntime(map[string]executor.MockResolver{
			"Query.obj": executor.NewMockValueResolver(map[string]any{}),
			"Obj.a":     executor.NewMockValueResolver("A"),
			"Obj.b":     executor.NewMockErrorResolver(errors.New("backend down")),
		})
		gotRes := executor.NewExecutor(rt).ExecuteRequest(context.Background(), sch, mustParseQuery(t, "{ obj { a b } }"), "", nil, nil)

		wantRes := &executor.ExecutionResult{
			Data:   map[string]any{"obj": nil},
			Errors: gqlerror.List{{Message: "backend down", Path: path("obj", "b")}},
		}
		if diff := cmp.Diff(wantRes, gotRes); diff != "" {
			t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestCompleteValue_Lists(t *testing.T) {
	sch := mustBuildSchema(t, `
type Query {
  names: [String]
  strict: [String!]
  items: [Item!]!
}
type Item { id: ID! }
`)
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.names":  executor.NewMockValueResolver([]string{"a", "b"}),
		"Query.strict": executor.NewMockValueResolver([]any{"a", nil}),
		"Query.items":  executor.NewMockValueResolver([]any{map[string]any{"id": "1"}, map[string]any{"id": "2"}}),
	})
	gotRes := executor.NewExecutor(rt).ExecuteRequest(context.Background(), sch, mustParseQuery(t, "{ names strict items { id } }"), "", nil, nil)

	wantRes := &executor.ExecutionResult{
		Data: map[string]any{
			"names":  []any{"a", "b"},
			"strict": nil,
			"items":  []any{map[string]any{"id": "1"}, map[string]any{"id": "2"}},
		},
		Errors: gqlerror.List{{Message: "Cannot return null for non-nullable field strict[1]", Path: path("strict", 1)}},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestCompleteValue_NotAList(t *testing.T) {
	sch := mustBuildSchema(t, `type Query { names: [String] }`)
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.names": executor.NewMockValueResolver("nope"),
	})
	gotRes := executor.NewExecutor(rt).ExecuteRequest(context.Background(), sch, mustParseQuery(t, "{ names }"), "", nil, nil)

	wantRes := &executor.ExecutionResult{
		Data:   map[string]any{"names": nil},
		Errors: gqlerror.List{{Message: "Expected list value, got string", Path: path("names")}},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

const petsSDL = `
type Query { pets: [Pet!]! node: Node }
interface Node { id: ID! }
type Dog implements Node { id: ID! name: String }
type Cat implements Node { id: ID! lives: Int }
union Pet = Dog | Cat
`

func TestCompleteValue_AbstractTypes(t *testing.T) {
	sch := mustBuildSchema(t, petsSDL)
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.pets": executor.NewMockValueResolver([]any{
			map[string]any{"__typename": "Dog", "id": "1", "name": "Rex"},
			map[string]any{"__typename": "Cat", "id": "2", "lives": 9},
		}),
		"Query.node": executor.NewMockValueResolver(map[string]any{"__typename": "Cat", "id": "2", "lives": 9}),
	})
	doc := mustParseQuery(t, `
{
  pets {
    __typename
    ... on Node { id }
    ... on Dog { name }
    ...CatFields
  }
  node { id ... on Dog { name } }
}
fragment CatFields on Cat { lives }
`)
	gotRes := executor.NewExecutor(rt).ExecuteRequest(context.Background(), sch, doc, "", nil, nil)

	wantRes := &executor.ExecutionResult{Data: map[string]any{
		"pets": []any{
			map[string]any{"__typename": "Dog", "id": "1", "name": "Rex"},
			map[string]any{"__typename": "Cat", "id": "2", "lives": 9},
		},
		"node": map[string]any{"id": "2"},
	}}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestCompleteValue_AbstractTypeResolutionFailures(t *testing.T) {
	sch := mustBuildSchema(t, petsSDL+"\ntype Fish { id: ID! }\n")

	t.Run("not a possible type", func(t *testing.T) {
		rt := executor.NewMockRuntime(map[string]executor.MockResolver{
			"Query.node": executor.NewMockValueResolver(map[string]any{"__typename": "Fish", "id": "3"}),
		})
		gotRes := executor.NewExecutor(rt).ExecuteRequest(context.Background(), sch, mustParseQuery(t, "{ node { id } }"), "", nil, nil)
		wantRes := &executor.ExecutionResult{
			Data:   map[string]any{"node": nil},
			Errors: gqlerror.List{{Message: "Runtime Object type Fish is not a possible type for Node", Path: path("node")}},
		}
		if diff := cmp.Diff(wantRes, gotRes); diff != "" {
			t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("type resolver error", func(t *testing.T) {
		rt := executor.NewMockRuntime(map[string]executor.MockResolver{
			"Query.node": executor.NewMockValueResolver(map[string]any{"id": "3"}),
		})
		rt.SetTypeResolver(func(any) (string, error) { return "", errors.New("unknown shape") })
		gotRes := executor.NewExecutor(rt).ExecuteRequest(context.Background(), sch, mustParseQuery(t, "{ node { id } }"), "", nil, nil)
		wantRes := &executor.ExecutionResult{
			Data:   map[string]any{"node": nil},
			Errors: gqlerror.List{{Message: "unknown shape", Path: path("node")}},
		}
		if diff := cmp.Diff(wantRes, gotRes); diff != "" {
			t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestCompleteValue_LeafSerialization(t *testing.T) {
	sch := mustBuildSchema(t, `
type Query { color: Color count: Int }
enum Color { RED GREEN }
`)
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.color": executor.NewMockValueResolver(0),
		"Query.count": executor.NewMockValueResolver("many"),
	})
	rt.SetSerializer(func(typeName string, val any) (any, error) {
		switch typeName {
		case "Color":
			return []string{"RED", "GREEN"}[val.(int)], nil
		case "Int":
			if _, ok := val.(int); !ok {
				return nil, fmt.Errorf("Int cannot represent %v", val)
			}
		}
		return val, nil
	})
	gotRes := executor.NewExecutor(rt).ExecuteRequest(context.Background(), sch, mustParseQuery(t, "{ color count }"), "", nil, nil)

	wantRes := &executor.ExecutionResult{
		Data:   map[string]any{"color": "RED", "count": nil},
		Errors: gqlerror.List{{Message: "Int cannot represent many", Path: path("count")}},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestCompleteValue_UnknownField(t *testing.T) {
	sch := mustBuildSchema(t, `type Query { a: String }`)
	rt := executor.NewMockRuntime(nil)
	gotRes := executor.NewExecutor(rt).ExecuteRequest(context.Background(), sch, mustParseQuery(t, "{ a missing }"), "", nil, nil)

	wantRes := &executor.ExecutionResult{
		Data:   map[string]any{"a": nil},
		Errors: gqlerror.List{{Message: "Cannot query field 'missing' on type 'Query'", Path: path("missing")}},
	}
	if diff := cmp.Diff(wantRes, gotRes); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}
