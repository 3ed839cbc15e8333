// Package responder answers one GraphQL operation with an HTTP response.
//
// A Responder resolves the query document (through the parse cache for text
// queries), validates it, executes it, and shapes the result: a single result
// becomes a JSON response, a stream becomes a streamed response whose body is
// filled by a task registered on the ExecutionContext.
//
// Validation annotates the document it walks, so documents taken from the
// cache are validated under their entry's lock. Two concurrent misses on the
// same text both parse and both insert into the cache; the last insert wins
// and either copy is correct.
package responder

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/gqlerror"

	eventbus "github.com/hanpama/graphedge/internal/eventbus"
	events "github.com/hanpama/graphedge/internal/events"
	executor "github.com/hanpama/graphedge/internal/executor"
	language "github.com/hanpama/graphedge/internal/language"
	querycache "github.com/hanpama/graphedge/internal/querycache"
	response "github.com/hanpama/graphedge/internal/response"
	schema "github.com/hanpama/graphedge/internal/schema"
	stream "github.com/hanpama/graphedge/internal/stream"
)

// ContentTypeGraphQLJSON is the content type of single results.
const ContentTypeGraphQLJSON = "application/graphql+json"

// maxValidationErrors bounds the errors reported for an invalid document.
const maxValidationErrors = 1

// ExecutionContext keeps background work alive past the return of Reply.
type ExecutionContext interface {
	WaitUntil(task func(context.Context) error)
}

// Query is the query of a Reply call: raw text or a parsed document.
type Query interface {
	isQuery()
}

// Text is query source text. Text queries go through the parse cache, keyed
// by the exact string.
type Text string

type document struct {
	doc *language.QueryDocument
}

// Document wraps an already parsed document. Such queries bypass the cache
// and are validated in place, so the caller must not share doc with
// concurrent Reply calls.
func Document(doc *language.QueryDocument) Query { return document{doc: doc} }

func (Text) isQuery()     {}
func (document) isQuery() {}

// ParseError reports query text that is not syntactically valid.
type ParseError struct {
	Err *gqlerror.Error
}

func (e *ParseError) Error() string { return e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// Responder replies to operations against one schema.
type Responder struct {
	ec     ExecutionContext
	schema *schema.Schema
	opt    Options
}

// New returns a Responder that validates and executes against sch and
// registers streamed deliveries on ec.
func New(ec ExecutionContext, sch *schema.Schema, opts ...Option) *Responder {
	var op Options
	for _, f := range opts {
		f(&op)
	}
	if op.Cache == nil && !op.NoCache {
		op.Cache = querycache.Default()
	}
	if op.Parse == nil {
		op.Parse = language.ParseQuery
	}
	if op.Execute == nil {
		rt := op.Runtime
		if rt == nil {
			rt = executor.NewDefaultRuntime()
		}
		op.Execute = executor.NewExecutor(rt).Execute
	}
	if op.StreamMode == "" {
		op.StreamMode = stream.Multipart
	}
	return &Responder{ec: ec, schema: sch, opt: op}
}

// Reply runs one operation. Validation failures become a 406 response. A
// *ParseError is returned for unparsable text, and executor failures are
// returned as errors; both are left to the caller to map.
func (r *Responder) Reply(ctx context.Context, q Query, variables map[string]any, operationName string) (*response.Response, error) {
	rq, err := r.document(ctx, q)
	if err != nil {
		return nil, err
	}
	doc, text := rq.doc, rq.text

	var errs gqlerror.List
	if rq.entry != nil {
		errs = rq.entry.Validate(r.schema.AST, r.opt.ValidationRules, maxValidationErrors)
	} else {
		errs = language.Validate(r.schema.AST, doc, r.opt.ValidationRules, maxValidationErrors)
	}
	if len(errs) > 0 {
		eventbus.Publish(ctx, events.ValidationFailed{Query: text, Errors: errs})
		return response.Reply(http.StatusNotAcceptable, map[string]any{"errors": errs}, nil, r.opt.Reply...)
	}

	if rq.miss {
		r.opt.Cache.Add(text, doc)
	}

	opType := operationType(doc, operationName)
	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: text, OperationName: operationName, OperationType: opType})
	finish := events.GraphQLFinish{Query: text, OperationName: operationName, OperationType: opType}

	result, err := r.opt.Execute(ctx, executor.Params{
		OperationName:  operationName,
		Schema:         r.schema,
		Document:       doc,
		ContextValue:   r.opt.ContextValue,
		VariableValues: variables,
		RootValue:      r.opt.RootValue,
	})
	if err == nil && result == nil {
		err = errors.New("executor returned no result")
	}
	if err != nil {
		finish.Err, finish.Duration = err, time.Since(start)
		eventbus.Publish(ctx, finish)
		return nil, errors.Wrap(err, "responder: execute")
	}

	switch res := result.(type) {
	case *executor.ExecutionResult:
		finish.Errors, finish.Duration = res.Errors, time.Since(start)
		eventbus.Publish(ctx, finish)
		return response.Reply(http.StatusOK, res, response.Header("Content-Type", ContentTypeGraphQLJSON), r.opt.Reply...)
	case executor.Stream:
		resp, pipe := stream.New(res, r.opt.StreamMode)
		r.ec.WaitUntil(pipe)
		finish.Streamed, finish.Duration = true, time.Since(start)
		eventbus.Publish(ctx, finish)
		return resp, nil
	default:
		return nil, errors.Errorf("responder: unexpected result %T", result)
	}
}

// resolved is a query ready for validation.
type resolved struct {
	doc  *language.QueryDocument
	text string
	// entry is set for cache hits; the document is shared.
	entry *querycache.Entry
	// miss marks freshly parsed text to insert once it validates.
	miss bool
}

func (r *Responder) document(ctx context.Context, q Query) (resolved, error) {
	switch q := q.(type) {
	case Text:
		rq := resolved{text: string(q)}
		if !r.opt.NoCache {
			if e, ok := querycache.Lookup(ctx, r.opt.Cache, rq.text); ok {
				rq.doc, rq.entry = e.Document(), e
				return rq, nil
			}
		}
		doc, err := r.opt.Parse(rq.text)
		if err != nil {
			return rq, &ParseError{Err: asGraphQLError(err)}
		}
		rq.doc, rq.miss = doc, !r.opt.NoCache
		return rq, nil
	case document:
		if q.doc == nil {
			return resolved{}, errors.New("responder: nil document")
		}
		return resolved{doc: q.doc}, nil
	case nil:
		return resolved{}, errors.New("responder: nil query")
	default:
		return resolved{}, errors.Errorf("responder: unsupported query %T", q)
	}
}

func asGraphQLError(err error) *gqlerror.Error {
	var ge *gqlerror.Error
	if errors.As(err, &ge) {
		return ge
	}
	return gqlerror.Wrap(err)
}

func operationType(doc *language.QueryDocument, name string) string {
	op := doc.Operations.ForName(name)
	if op == nil {
		return ""
	}
	return string(op.Operation)
}
