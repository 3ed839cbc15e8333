// Package executor runs validated GraphQL documents breadth-first against a
// schema, delegating field resolution to a Runtime.
//
// # Execution model
//
// Fields are either synchronous or asynchronous, as declared by
// schema.Field.Async. Synchronous fields resolve immediately through
// Runtime.ResolveSync and their object values expand in place without adding
// depth. Asynchronous fields are queued and resolved once per depth in a single
// Runtime.BatchResolveAsync call. For an operation with asynchronous depth d,
// BatchResolveAsync is invoked exactly d times.
//
// Completed values are written into a response tree at their response paths.
// Errors are located by path and accumulated, so a result may carry both data
// and errors. A Non-Null violation nulls the enclosing top level field and any
// async task queued underneath it is dropped before the next batch.
//
// # Results
//
// Execute returns a Result, which is either a single *ExecutionResult or a
// Stream of them. Queries and mutations always produce a single result.
// Subscriptions produce a Stream when the Runtime also implements Subscriber:
// each source event is executed with the event as root value.
//
// # Runtimes
//
// DefaultRuntime resolves fields by property lookup on maps and structs and is
// what the responder uses unless another runtime is configured. MockRuntime
// records every call and is used by tests across packages.
package executor
