package executor

import (
	"context"
	"fmt"
	"sync"
)

// MockResolver resolves a single item; MockRuntime adapts it for batched calls.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

const (
	CallKindSync      = "sync"
	CallKindAsync     = "async"
	CallKindSubscribe = "subscribe"
)

// NewMockValueResolver returns a MockResolver that always returns val.
func NewMockValueResolver(val any) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return val, nil }
}

// NewMockErrorResolver returns a MockResolver that always fails with err.
func NewMockErrorResolver(err error) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}

// Call is one recorded runtime invocation. Async calls made within the same
// batch share a BatchID; sync and subscribe calls have BatchID 0.
type Call struct {
	Kind       string
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
	BatchID    int
}

// MockRuntime implements Runtime and Subscriber with a resolver registry keyed
// by "ObjectType.Field" and an ordered call log.
type MockRuntime struct {
	mu        sync.Mutex
	resolvers map[string]MockResolver
	sources   map[string][]any
	calls     []Call
	batchSeq  int

	typeResolver func(value any) (string, error)
	serializer   func(typeName string, val any) (any, error)
}

// NewMockRuntime creates a MockRuntime with the provided resolvers.
func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{
		resolvers: make(map[string]MockResolver, len(resolvers)),
		sources:   make(map[string][]any),
		typeResolver: func(value any) (string, error) {
			if obj, ok := value.(map[string]any); ok {
				if typename, ok := obj["__typename"].(string); ok {
					return typename, nil
				}
			}
			return "", fmt.Errorf("cannot resolve type of %T", value)
		},
	}
	for k, v := range resolvers {
		m.resolvers[k] = v
	}
	return m
}

// SetResolver registers or replaces the resolver for objectType.field.
func (m *MockRuntime) SetResolver(objectType, field string, resolver MockResolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[objectType+"."+field] = resolver
}

// SetSubscription registers the events emitted by a subscription root field.
func (m *MockRuntime) SetSubscription(objectType, field string, events ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[objectType+"."+field] = events
}

func (m *MockRuntime) SetTypeResolver(f func(value any) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typeResolver = f
}

func (m *MockRuntime) SetSerializer(f func(typeName string, val any) (any, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serializer = f
}

func (m *MockRuntime) resolver(objectType, field string) MockResolver {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolvers[objectType+"."+field]
}

func (m *MockRuntime) record(c Call) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

// ResolveSync invokes the registered resolver. Unregistered fields read the
// property of a map source and resolve to nil otherwise.
func (m *MockRuntime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	m.record(Call{Kind: CallKindSync, ObjectType: objectType, Field: field, Source: source, Args: args})
	return m.resolve(ctx, objectType, field, source, args)
}

func (m *MockRuntime) resolve(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	if r := m.resolver(objectType, field); r != nil {
		return r(ctx, source, args)
	}
	if obj, ok := source.(map[string]any); ok {
		return obj[field], nil
	}
	return nil, nil
}

// BatchResolveAsync resolves every task in order, logging one call per task.
func (m *MockRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	if len(tasks) == 0 {
		return nil
	}
	m.mu.Lock()
	m.batchSeq++
	batchID := m.batchSeq
	m.mu.Unlock()

	results := make([]AsyncResolveResult, len(tasks))
	for i, t := range tasks {
		m.record(Call{Kind: CallKindAsync, ObjectType: t.ObjectType, Field: t.Field, Source: t.Source, Args: t.Args, BatchID: batchID})
		val, err := m.resolve(ctx, t.ObjectType, t.Field, t.Source, t.Args)
		results[i] = AsyncResolveResult{Value: val, Error: err}
	}
	return results
}

// Subscribe emits the events registered with SetSubscription, wrapped so the
// subscription field resolves to the event itself.
func (m *MockRuntime) Subscribe(ctx context.Context, objectType string, field string, root any, args map[string]any) (<-chan any, error) {
	m.record(Call{Kind: CallKindSubscribe, ObjectType: objectType, Field: field, Source: root, Args: args})
	m.mu.Lock()
	events, ok := m.sources[objectType+"."+field]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no subscription registered for %s.%s", objectType, field)
	}
	ch := make(chan any)
	go func() {
		defer close(ch)
		for _, ev := range events {
			select {
			case ch <- map[string]any{field: ev}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (m *MockRuntime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	m.mu.Lock()
	f := m.typeResolver
	m.mu.Unlock()
	return f(value)
}

func (m *MockRuntime) ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error) {
	return value, nil
}

func (m *MockRuntime) ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error) {
	return value, nil
}

func (m *MockRuntime) SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error) {
	m.mu.Lock()
	f := m.serializer
	m.mu.Unlock()
	if f == nil {
		return value, nil
	}
	return f(scalarOrEnumTypeName, value)
}

// GetCalls returns a copy of the recorded calls in order.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls and counters; resolvers remain.
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.batchSeq = 0
}
