package events

import (
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// GraphQLStart is emitted before executing a GraphQL operation.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish is emitted after executing a GraphQL operation. For a
// streamed result it fires once the stream has been handed off, not when it
// is drained; see StreamFinish.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        gqlerror.List
	Err           error
	Streamed      bool
	Duration      time.Duration
}

// QueryCacheLookup is emitted when the query cache is consulted for a text query.
type QueryCacheLookup struct {
	Hit bool
}

// ValidationFailed is emitted when a document is rejected by validation.
type ValidationFailed struct {
	Query  string
	Errors gqlerror.List
}
