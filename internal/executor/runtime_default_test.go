package executor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"

	executor "github.com/hanpama/graphedge/internal/executor"
)

type author struct {
	Name    string `json:"name"`
	Born    int
	private string
}

type book struct {
	Title  string
	Author *author
}

func (book) GraphQLTypeName() string { return "Book" }

type weekday int

func (d weekday) String() string { return [...]string{"MON", "TUE"}[d] }

func TestDefaultRuntime_PropertyLookup(t *testing.T) {
	sch := mustBuildSchema(t, `
type Query {
  book: Book
  items: [Item]
  greet(name: String!): String
  day: Day
  broken: String
}
type Book { title: String author: Author }
type Author { name: String born: Int private: String }
type Magazine { title: String }
union Item = Book | Magazine
enum Day { MON TUE }
`)
	root := map[string]any{
		"book": &book{Title: "Dune", Author: &author{Name: "Herbert", Born: 1920, private: "x"}},
		"items": []any{
			book{Title: "Emma"},
			map[string]any{"__typename": "Magazine", "title": "Wired"},
		},
		"greet": executor.ResolverFunc(func(ctx context.Context, args map[string]any) (any, error) {
			return "hello " + args["name"].(string), nil
		}),
		"day": weekday(1),
		"broken": func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("broken resolver")
		},
	}
	doc := mustParseQuery(t, `{
  book { title author { name born private } }
  items { ... on Book { title } ... on Magazine { title } }
  greet(name: "kim")
  day
  broken
}`)

	res := executor.NewExecutor(executor.NewDefaultRuntime()).ExecuteRequest(context.Background(), sch, doc, "", nil, root)

	want := &executor.ExecutionResult{
		Data: map[string]any{
			"book":   map[string]any{"title": "Dune", "author": map[string]any{"name": "Herbert", "born": 1920, "private": nil}},
			"items":  []any{map[string]any{"title": "Emma"}, map[string]any{"title": "Wired"}},
			"greet":  "hello kim",
			"day":    "TUE",
			"broken": nil,
		},
		Errors: gqlerror.List{{Message: "broken resolver", Path: path("broken")}},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultRuntime_SerializeLeafValue(t *testing.T) {
	rt := executor.NewDefaultRuntime()
	ctx := context.Background()

	cases := []struct {
		typ     string
		in      any
		want    any
		wantErr bool
	}{
		{typ: "Int", in: int64(7), want: 7},
		{typ: "Int", in: float64(2), want: 2},
		{typ: "Int", in: int64(1 << 40), wantErr: true},
		{typ: "Int", in: 1.5, wantErr: true},
		{typ: "Float", in: 3, want: float64(3)},
		{typ: "String", in: 12, want: "12"},
		{typ: "String", in: []int{1}, wantErr: true},
		{typ: "Boolean", in: "true", wantErr: true},
		{typ: "ID", in: 42, want: "42"},
		{typ: "Day", in: weekday(0), want: "MON"},
		{typ: "JSON", in: map[string]any{"k": 1}, want: map[string]any{"k": 1}},
	}
	for _, tc := range cases {
		got, err := rt.SerializeLeafValue(ctx, tc.typ, tc.in)
		if tc.wantErr {
			assert.Error(t, err, "%s(%v)", tc.typ, tc.in)
			continue
		}
		if assert.NoError(t, err, "%s(%v)", tc.typ, tc.in) {
			assert.Equal(t, tc.want, got, "%s(%v)", tc.typ, tc.in)
		}
	}
}

func TestDefaultRuntime_BatchKeepsTaskOrder(t *testing.T) {
	rt := &executor.DefaultRuntime{MaxConcurrency: 2}
	tasks := make([]executor.AsyncResolveTask, 10)
	for i := range tasks {
		tasks[i] = executor.AsyncResolveTask{ObjectType: "Query", Field: "v", Source: map[string]any{"v": i}}
	}
	results := rt.BatchResolveAsync(context.Background(), tasks)
	require.Len(t, results, len(tasks))
	for i, r := range results {
		require.NoError(t, r.Error)
		require.Equal(t, i, r.Value)
	}
}

func TestDefaultRuntime_SubscribeFromSlice(t *testing.T) {
	rt := executor.NewDefaultRuntime()
	src, err := rt.Subscribe(context.Background(), "Subscription", "ticks", map[string]any{"ticks": []any{1, 2}}, nil)
	require.NoError(t, err)

	var got []any
	for ev := range src {
		got = append(got, ev)
	}
	want := []any{map[string]any{"ticks": 1}, map[string]any{"ticks": 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}

	_, err = rt.Subscribe(context.Background(), "Subscription", "ticks", map[string]any{"ticks": "nope"}, nil)
	require.Error(t, err)
	_, err = rt.Subscribe(context.Background(), "Subscription", "ticks", nil, nil)
	require.Error(t, err)
}
