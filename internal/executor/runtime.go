package executor

import (
	"context"
)

// Runtime is the host integration surface used by the Executor for field
// resolution, depth-wise batching, abstract type resolution and leaf
// serialization.
//
// Contract
//   - At each depth the Executor drains sync fields through ResolveSync and then
//     calls BatchResolveAsync once with every async task collected at that depth.
//   - ResolveSync is never invoked for fields marked Async.
//   - Errors returned from any method become located GraphQL errors. Non-Null
//     violations propagate to the top level field.
//   - Implementations must be safe for concurrent use by independent operations
//     and must not mutate source or args.
//
// Identifiers
//   - objectType is the GraphQL type name owning the field ("Query" for root fields).
//   - source is the parent value, or the root value for root fields.
//   - args holds argument values already coerced against the schema.
type Runtime interface {
	// ResolveSync resolves a synchronous field immediately. Return (nil, nil)
	// to produce null.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves one depth of async field tasks.
	//
	// It must return exactly one result per task, in task order. Element errors
	// are independent of each other.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// ResolveType returns the concrete object type name for a value of an
	// interface or union type.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// ResolveUnionConcreteValue unwraps a union envelope before completion.
	ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error)

	// ResolveInterfaceConcreteValue unwraps an interface envelope before completion.
	ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error)

	// SerializeLeafValue converts a scalar or enum value to a JSON-safe Go value.
	// Enums serialize to their symbolic name.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

// Subscriber is implemented by runtimes that can produce source event streams
// for subscription root fields.
//
// The returned channel must be closed when the stream ends or ctx is done.
// Each received value is used as the root value of one execution of the
// subscription selection set.
type Subscriber interface {
	Subscribe(ctx context.Context, objectType string, field string, root any, args map[string]any) (<-chan any, error)
}

type AsyncResolveTask struct {
	// ObjectType is the parent GraphQL object type name for the field.
	ObjectType string
	// Field is the GraphQL field name to resolve.
	Field string
	// Source is the parent object value (the root value for root fields).
	Source any
	// Args are the field arguments, coerced to Go values per the schema.
	Args map[string]any
}

type AsyncResolveResult struct {
	// Value is the resolved raw value prior to completion, or nil on error.
	Value any
	// Error is a failure specific to this element.
	Error error
}
