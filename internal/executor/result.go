package executor

import (
	"context"

	"github.com/vektah/gqlparser/v2/gqlerror"

	language "github.com/hanpama/graphedge/internal/language"
	schema "github.com/hanpama/graphedge/internal/schema"
)

// ExecutionResult represents the result of executing a GraphQL query
type ExecutionResult struct {
	Data   any           `json:"data"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// Result is what an execution produces: either a single *ExecutionResult or a
// Stream of them. The set of implementations is closed.
type Result interface {
	isResult()
}

// Stream delivers one ExecutionResult per source event. It is closed when the
// source is exhausted or the execution context is done. A Stream can be drained once.
type Stream <-chan *ExecutionResult

func (*ExecutionResult) isResult() {}
func (Stream) isResult()           {}

// Params are the inputs of a single execution.
type Params struct {
	Schema         *schema.Schema
	Document       *language.QueryDocument
	OperationName  string
	VariableValues map[string]any
	// ContextValue is passed through untouched; resolvers read it with ContextValue(ctx).
	ContextValue any
	RootValue    any
}

// ExecuteFunc executes one operation. A returned error means the engine
// itself failed; field errors are reported inside the result.
type ExecuteFunc func(ctx context.Context, p Params) (Result, error)

type contextValueKey struct{}

// WithContextValue returns a copy of ctx carrying v.
func WithContextValue(ctx context.Context, v any) context.Context {
	return context.WithValue(ctx, contextValueKey{}, v)
}

// ContextValue returns the Params.ContextValue of the execution ctx belongs to.
func ContextValue(ctx context.Context) any {
	return ctx.Value(contextValueKey{})
}
