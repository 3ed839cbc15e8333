package responder

import (
	"github.com/vektah/gqlparser/v2/validator/rules"

	executor "github.com/hanpama/graphedge/internal/executor"
	language "github.com/hanpama/graphedge/internal/language"
	querycache "github.com/hanpama/graphedge/internal/querycache"
	response "github.com/hanpama/graphedge/internal/response"
	stream "github.com/hanpama/graphedge/internal/stream"
)

// ParseFunc parses query text into a document.
type ParseFunc func(text string) (*language.QueryDocument, error)

// Options configure a Responder. Zero values select the defaults.
type Options struct {
	// ContextValue reaches resolvers through executor.ContextValue.
	ContextValue any

	// ValidationRules replaces the default rule set when non-nil.
	ValidationRules *rules.Rules

	// Cache stores parsed text queries; nil means querycache.Default().
	Cache querycache.Cache
	// NoCache disables caching and takes precedence over Cache.
	NoCache bool

	// Execute runs validated operations. Nil selects an executor over Runtime.
	Execute executor.ExecuteFunc
	// Runtime resolves fields for the default executor. Nil selects
	// executor.DefaultRuntime.
	Runtime executor.Runtime
	// RootValue is the source of root fields for the default executor.
	RootValue any

	// Parse is used on cache misses. Nil selects language.ParseQuery.
	Parse ParseFunc

	// StreamMode is the wire format of streamed results.
	StreamMode stream.Mode

	// Reply holds encoding options of single responses.
	Reply []response.Option
}

type Option func(*Options)

// WithContext passes v to resolvers untouched.
func WithContext(v any) Option { return func(o *Options) { o.ContextValue = v } }

// WithValidationRules replaces the default validation rules. Extend the
// defaults by starting from rules.NewDefaultRules().
func WithValidationRules(rs *rules.Rules) Option {
	return func(o *Options) { o.ValidationRules = rs }
}

// WithCache selects the parse cache; nil means the shared default.
func WithCache(c querycache.Cache) Option { return func(o *Options) { o.Cache = c } }

// WithoutCache disables the parse cache.
func WithoutCache() Option { return func(o *Options) { o.NoCache = true } }

func WithExecutor(fn executor.ExecuteFunc) Option { return func(o *Options) { o.Execute = fn } }
func WithRuntime(rt executor.Runtime) Option      { return func(o *Options) { o.Runtime = rt } }
func WithRootValue(v any) Option                  { return func(o *Options) { o.RootValue = v } }
func WithParser(fn ParseFunc) Option              { return func(o *Options) { o.Parse = fn } }
func WithStreamMode(m stream.Mode) Option         { return func(o *Options) { o.StreamMode = m } }

// WithPretty indents single JSON responses.
func WithPretty() Option {
	return func(o *Options) { o.Reply = append(o.Reply, response.Indent("  ")) }
}
