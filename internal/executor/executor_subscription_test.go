package executor_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"

	executor "github.com/hanpama/graphedge/internal/executor"
)

const ticksSDL = `
type Query { ok: Boolean }
type Subscription { ticks(limit: Int): Tick! }
type Tick { n: Int! }
`

func drain(t *testing.T, s executor.Stream) []*executor.ExecutionResult {
	t.Helper()
	var out []*executor.ExecutionResult
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-s:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func TestSubscription_StreamsOneResultPerEvent(t *testing.T) {
	sch := mustBuildSchema(t, ticksSDL)
	rt := executor.NewMockRuntime(nil)
	rt.SetSubscription("Subscription", "ticks", map[string]any{"n": 1}, map[string]any{"n": 2})

	res, err := executor.NewExecutor(rt).Execute(context.Background(), executor.Params{
		Schema:   sch,
		Document: mustParseQuery(t, `subscription { ticks(limit: 2) { n } }`),
	})
	require.NoError(t, err)
	stream, ok := res.(executor.Stream)
	require.True(t, ok, "expected a stream, got %T", res)

	want := []*executor.ExecutionResult{
		{Data: map[string]any{"ticks": map[string]any{"n": 1}}},
		{Data: map[string]any{"ticks": map[string]any{"n": 2}}},
	}
	if diff := cmp.Diff(want, drain(t, stream)); diff != "" {
		t.Fatalf("stream payloads mismatch (-want +got):\n%s", diff)
	}

	calls := rt.GetCalls()
	require.Equal(t, executor.Call{
		Kind: executor.CallKindSubscribe, ObjectType: "Subscription", Field: "ticks", Args: map[string]any{"limit": 2},
	}, calls[0])
}

func TestSubscription_ClosesWhenContextIsDone(t *testing.T) {
	sch := mustBuildSchema(t, ticksSDL)
	rt := executor.NewDefaultRuntime()
	source := make(chan any)
	root := map[string]any{"ticks": (<-chan any)(source)}

	ctx, cancel := context.WithCancel(context.Background())
	res, err := executor.NewExecutor(rt).Execute(ctx, executor.Params{
		Schema:    sch,
		Document:  mustParseQuery(t, `subscription { ticks { n } }`),
		RootValue: root,
	})
	require.NoError(t, err)
	stream := res.(executor.Stream)

	source <- map[string]any{"n": 1}
	first := <-stream
	require.Equal(t, map[string]any{"ticks": map[string]any{"n": 1}}, first.Data)

	cancel()
	require.Empty(t, drain(t, stream))
}

func TestSubscription_SourceErrors(t *testing.T) {
	sch := mustBuildSchema(t, ticksSDL)

	t.Run("unknown source", func(t *testing.T) {
		rt := executor.NewMockRuntime(nil)
		res, err := executor.NewExecutor(rt).Execute(context.Background(), executor.Params{
			Schema:   sch,
			Document: mustParseQuery(t, `subscription { ticks { n } }`),
		})
		require.NoError(t, err)
		want := &executor.ExecutionResult{Errors: gqlerror.List{{
			Message: "no subscription registered for Subscription.ticks",
			Path:    path("ticks"),
		}}}
		if diff := cmp.Diff(want, res); diff != "" {
			t.Fatalf("result mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("runtime without subscriber", func(t *testing.T) {
		res, err := executor.NewExecutor(plainRuntime{executor.NewMockRuntime(nil)}).Execute(context.Background(), executor.Params{
			Schema:   sch,
			Document: mustParseQuery(t, `subscription { ticks { n } }`),
		})
		require.NoError(t, err)
		require.Equal(t, "subscriptions are not supported by this runtime", res.(*executor.ExecutionResult).Errors[0].Message)
	})

	t.Run("schema without subscription type", func(t *testing.T) {
		res, err := executor.NewExecutor(executor.NewMockRuntime(nil)).Execute(context.Background(), executor.Params{
			Schema:   mustBuildSchema(t, `type Query { ok: Boolean }`),
			Document: mustParseQuery(t, `subscription { ticks { n } }`),
		})
		require.NoError(t, err)
		require.Equal(t, "root type not found for subscription operation", res.(*executor.ExecutionResult).Errors[0].Message)
	})
}

// plainRuntime hides the Subscriber implementation of the wrapped runtime.
type plainRuntime struct{ executor.Runtime }

func TestExecuteRequest_RejectsSubscriptions(t *testing.T) {
	sch := mustBuildSchema(t, ticksSDL)
	rt := executor.NewMockRuntime(nil)
	rt.SetSubscription("Subscription", "ticks", map[string]any{"n": 1}, map[string]any{"n": 2}, map[string]any{"n": 3})

	res := executor.NewExecutor(rt).ExecuteRequest(context.Background(), sch, mustParseQuery(t, `subscription { ticks { n } }`), "", nil, nil)
	want := &executor.ExecutionResult{Errors: gqlerror.List{{Message: "subscriptions must be executed with Execute"}}}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_RequiresSchemaAndDocument(t *testing.T) {
	e := executor.NewExecutor(executor.NewMockRuntime(nil))
	_, err := e.Execute(context.Background(), executor.Params{Document: mustParseQuery(t, "{ a }")})
	require.Error(t, err)
	_, err = e.Execute(context.Background(), executor.Params{Schema: mustBuildSchema(t, `type Query { a: String }`)})
	require.Error(t, err)
}

func TestExecute_OperationSelection(t *testing.T) {
	sch := mustBuildSchema(t, `type Query { a: String b: String }`)
	root := map[string]any{"a": "A", "b": "B"}
	cases := []struct {
		name   string
		query  string
		opName string
		want   *executor.ExecutionResult
	}{
		{"anonymous", "{ a }", "", &executor.ExecutionResult{Data: map[string]any{"a": "A"}}},
		{"single named without name", "query Foo { a }", "", &executor.ExecutionResult{Data: map[string]any{"a": "A"}}},
		{"named", "query Foo { a } query Bar { b }", "Bar", &executor.ExecutionResult{Data: map[string]any{"b": "B"}}},
		{"ambiguous", "query Foo { a } query Bar { b }", "", &executor.ExecutionResult{Errors: gqlerror.List{{Message: "operation not found"}}}},
		{"unknown", "query Foo { a }", "Baz", &executor.ExecutionResult{Errors: gqlerror.List{{Message: "operation not found"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := executor.NewExecutor(executor.NewMockRuntime(nil)).ExecuteRequest(context.Background(), sch, mustParseQuery(t, tc.query), tc.opName, nil, root)
			if diff := cmp.Diff(tc.want, res); diff != "" {
				t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecute_ContextValueReachesResolvers(t *testing.T) {
	type viewer struct{ ID string }
	sch := mustBuildSchema(t, `type Query { me: String }`)
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.me": func(ctx context.Context, src any, args map[string]any) (any, error) {
			return executor.ContextValue(ctx).(*viewer).ID, nil
		},
	})
	res, err := executor.NewExecutor(rt).Execute(context.Background(), executor.Params{
		Schema:       sch,
		Document:     mustParseQuery(t, "{ me }"),
		ContextValue: &viewer{ID: "u1"},
	})
	require.NoError(t, err)
	if diff := cmp.Diff(&executor.ExecutionResult{Data: map[string]any{"me": "u1"}}, res); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}
