// Package querycache keeps recently parsed query documents keyed by their
// exact source text.
package querycache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator/rules"

	eventbus "github.com/hanpama/graphedge/internal/eventbus"
	events "github.com/hanpama/graphedge/internal/events"
	language "github.com/hanpama/graphedge/internal/language"
)

// DefaultSize is the capacity of the shared cache returned by Default.
const DefaultSize = 10

// Entry is one cached document.
//
// The gqlparser validator annotates the document it walks (field and value
// definitions), so a shared document is only validated through Validate,
// which serializes walkers. Execution reads the selection structure only and
// may use Document concurrently.
type Entry struct {
	mu  sync.Mutex
	doc *language.QueryDocument
}

// Document returns the cached document.
func (e *Entry) Document() *language.QueryDocument { return e.doc }

// Validate runs language.Validate on the cached document while holding the
// entry.
func (e *Entry) Validate(sch *language.Schema, rs *rules.Rules, maxErrors int) gqlerror.List {
	e.mu.Lock()
	defer e.mu.Unlock()
	return language.Validate(sch, e.doc, rs, maxErrors)
}

// Cache maps raw query text to its parsed document.
//
// Implementations are safe for concurrent use. Get refreshes the recency of a
// hit; Add evicts the least recently used entry once Len reaches Size.
type Cache interface {
	Get(text string) (*Entry, bool)
	Add(text string, doc *language.QueryDocument) *Entry
	Len() int
	Size() int
}

// LRU is a Cache backed by a fixed-size least-recently-used list.
type LRU struct {
	size  int
	cache *lru.Cache[string, *Entry]
}

var _ Cache = (*LRU)(nil)

// New returns an empty cache holding at most size documents.
func New(size int) (*LRU, error) {
	c, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, errors.Wrapf(err, "querycache: size %d", size)
	}
	return &LRU{size: size, cache: c}, nil
}

func (c *LRU) Get(text string) (*Entry, bool) { return c.cache.Get(text) }

// Add stores doc under text, replacing any entry for the same text.
func (c *LRU) Add(text string, doc *language.QueryDocument) *Entry {
	e := &Entry{doc: doc}
	c.cache.Add(text, e)
	return e
}

func (c *LRU) Len() int { return c.cache.Len() }

func (c *LRU) Size() int { return c.size }

// Contains reports whether text is cached without touching its recency.
func (c *LRU) Contains(text string) bool { return c.cache.Contains(text) }

var (
	defaultOnce  sync.Once
	defaultCache *LRU
)

// Default returns the process-wide cache of DefaultSize entries, creating it
// on first use.
func Default() *LRU {
	defaultOnce.Do(func() {
		c, err := New(DefaultSize)
		if err != nil {
			panic(err)
		}
		defaultCache = c
	})
	return defaultCache
}

// Lookup consults c for text and publishes a QueryCacheLookup event.
func Lookup(ctx context.Context, c Cache, text string) (*Entry, bool) {
	e, ok := c.Get(text)
	eventbus.Publish(ctx, events.QueryCacheLookup{Hit: ok})
	return e, ok
}
