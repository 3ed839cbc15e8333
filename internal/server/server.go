// Package server exposes a schema as a GraphQL-over-HTTP endpoint.
//
// Every request gets its own responder and background group: single results
// are written as JSON, streamed results are flushed part by part while the
// group drains the stream.
package server

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"

	background "github.com/hanpama/graphedge/internal/background"
	eventbus "github.com/hanpama/graphedge/internal/eventbus"
	events "github.com/hanpama/graphedge/internal/events"
	executor "github.com/hanpama/graphedge/internal/executor"
	introspection "github.com/hanpama/graphedge/internal/introspection"
	reqid "github.com/hanpama/graphedge/internal/reqid"
	responder "github.com/hanpama/graphedge/internal/responder"
	response "github.com/hanpama/graphedge/internal/response"
	schema "github.com/hanpama/graphedge/internal/schema"
	stream "github.com/hanpama/graphedge/internal/stream"
)

//go:embed graphiql.html
var graphiqlPage []byte

const internalErrorMessage = "internal server error"

// Handler is an http.Handler that serves a GraphQL endpoint.
type Handler struct {
	schema  *schema.Schema
	runtime executor.Runtime
	opt     Options
	handler http.Handler
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// It bounds streamed responses too. 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MetadataHeaders lists HTTP headers to forward into gRPC metadata.
	// Header names are case-insensitive. Default is none.
	MetadataHeaders []string

	// GraphiQL enables the in-browser IDE when true.
	GraphiQL bool

	// Introspection adds __schema and __type to the query type.
	Introspection bool

	// Logger receives recovered panics and failed executions.
	Logger *zap.Logger

	// Responder options are applied to the responder of every request.
	Responder []responder.Option
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithGraphiQL(enable bool) Option      { return func(o *Options) { o.GraphiQL = enable } }
func WithIntrospection(enable bool) Option { return func(o *Options) { o.Introspection = enable } }
func WithLogger(l *zap.Logger) Option      { return func(o *Options) { o.Logger = l } }

// WithResponderOptions appends options for the per-request responder. They
// are applied after the handler's own, so they can replace the runtime or
// the executor.
func WithResponderOptions(opts ...responder.Option) Option {
	return func(o *Options) { o.Responder = append(o.Responder, opts...) }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a new GraphQL HTTP handler using the given runtime and schema.
func New(runtime executor.Runtime, sch *schema.Schema, opts ...Option) (*Handler, error) {
	if sch == nil {
		return nil, errors.New("server: schema is required")
	}
	if runtime == nil {
		runtime = executor.NewDefaultRuntime()
	}
	op := Options{Timeout: 10 * time.Second, GraphiQL: true, Introspection: true}
	for _, f := range opts {
		f(&op)
	}
	if op.Logger == nil {
		op.Logger = zap.NewNop()
	}

	h := &Handler{schema: sch, runtime: runtime, opt: op}
	if op.Introspection {
		in := introspection.Wrap(runtime, sch)
		h.schema, h.runtime = in.Schema, in.Runtime
	}
	h.handler = h.recoveryHandler(http.HandlerFunc(h.serve))
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// recoveryHandler turns a panic into a 500 response when nothing was written yet.
func (h *Handler) recoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			h.opt.Logger.Error("panic serving graphql request",
				zap.String("panic", fmt.Sprint(v)),
				zap.Stack("stack"),
			)
			if !sw.wroteHeader {
				h.writeError(sw, http.StatusInternalServerError, internalErrorMessage)
			}
		}()
		next.ServeHTTP(sw, r)
	})
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.NewContext(ctx)
	w.Header().Set(reqid.MetadataKey, reqid.String(rid))
	sw := &statusWriter{ResponseWriter: w}
	w = sw
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		v := recover()
		if v != nil {
			status = http.StatusInternalServerError
		}
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Bytes: sw.written, Duration: time.Since(start)})
		if v != nil {
			panic(v)
		}
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		h.writeError(w, status, "method not allowed")
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	// Serve GraphiQL IDE when enabled and the client expects HTML.
	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write(graphiqlPage)
		return
	}

	req, rerr := parseRequest(r, h.opt.MaxBodyBytes)
	if rerr != nil {
		status = rerr.status
		h.writeError(w, status, rerr.message)
		return
	}

	ctx = metadata.NewOutgoingContext(ctx, h.metadata(r, rid))

	group := background.New(ctx)
	opts := []responder.Option{
		responder.WithRuntime(h.runtime),
		responder.WithStreamMode(stream.ModeFromAccept(r.Header.Get("Accept"))),
	}
	if h.opt.Pretty {
		opts = append(opts, responder.WithPretty())
	}
	opts = append(opts, h.opt.Responder...)
	resp, err := responder.New(group, h.schema, opts...).Reply(ctx, responder.Text(req.Query), req.Variables, req.OperationName)

	var perr *responder.ParseError
	switch {
	case errors.As(err, &perr):
		status = http.StatusBadRequest
		h.writeJSON(w, status, map[string]any{"errors": gqlerror.List{perr.Err}})
		return
	case err != nil:
		h.opt.Logger.Error("graphql execution failed", zap.Int64("request_id", rid), zap.Error(err))
		status = http.StatusInternalServerError
		h.writeError(w, status, internalErrorMessage)
		return
	}

	status = resp.Status
	if _, err := resp.WriteTo(w); err != nil {
		h.opt.Logger.Debug("response write interrupted", zap.Int64("request_id", rid), zap.Error(err))
	}
	if err := group.Wait(); err != nil {
		h.opt.Logger.Warn("streamed response failed", zap.Int64("request_id", rid), zap.Error(err))
	}
}

func (h *Handler) metadata(r *http.Request, rid int64) metadata.MD {
	md := metadata.MD{}
	if len(h.opt.MetadataHeaders) > 0 {
		allowed := make(map[string]struct{}, len(h.opt.MetadataHeaders))
		for _, hdr := range h.opt.MetadataHeaders {
			allowed[strings.ToLower(hdr)] = struct{}{}
		}
		for k, v := range r.Header {
			if _, ok := allowed[strings.ToLower(k)]; ok {
				md[strings.ToLower(k)] = v
			}
		}
	}
	md[reqid.MetadataKey] = []string{reqid.String(rid)}
	return md
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"errors": gqlerror.List{{Message: message}}})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	var opts []response.Option
	if h.opt.Pretty {
		opts = append(opts, response.Indent("  "))
	}
	resp, err := response.Reply(status, body, nil, opts...)
	if err != nil {
		h.opt.Logger.Error("encode error response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = resp.WriteTo(w)
}

// statusWriter remembers whether the header was sent and counts body bytes.
type statusWriter struct {
	http.ResponseWriter
	wroteHeader bool
	written     int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func acceptsHTML(accept string) bool {
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") {
			return true
		}
	}
	return false
}
