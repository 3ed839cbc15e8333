// Package reqid tags a request context with a random identifier shared by
// every event and outgoing call made on behalf of that request.
package reqid

import (
	"context"
	"math/rand/v2"
	"strconv"
)

// MetadataKey is the outgoing gRPC metadata key and response header carrying the ID.
const MetadataKey = "graphql-request-id"

// key is the context key for the request ID.
type key struct{}

// NewContext returns a copy of parent with a new random request ID stored.
// It also returns the generated ID, which is never zero.
func NewContext(parent context.Context) (context.Context, int64) {
	id := rand.Int64N(1<<63-1) + 1
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the request ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(key{})
	id, ok := v.(int64)
	return id, ok
}

// String formats id the way it is sent in metadata and headers.
func String(id int64) string { return strconv.FormatInt(id, 10) }
