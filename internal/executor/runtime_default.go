package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ResolverFunc is a field value that is invoked instead of returned.
type ResolverFunc func(ctx context.Context, args map[string]any) (any, error)

// SubscribeFunc is a subscription root value that produces a source stream.
type SubscribeFunc func(ctx context.Context, args map[string]any) (<-chan any, error)

// Typer lets struct values name their concrete GraphQL type.
type Typer interface {
	GraphQLTypeName() string
}

// DefaultRuntime resolves fields by property lookup on the source value.
//
// Maps are indexed by field name. Structs are matched by json tag, then by
// field name ignoring case. A property holding a ResolverFunc (or a plain
// func(context.Context, map[string]any) (any, error)) is called with the
// coerced arguments.
type DefaultRuntime struct {
	// MaxConcurrency bounds the resolvers run in parallel per batch; zero or
	// negative means unbounded.
	MaxConcurrency int
}

var _ interface {
	Runtime
	Subscriber
} = (*DefaultRuntime)(nil)

func NewDefaultRuntime() *DefaultRuntime {
	return &DefaultRuntime{}
}

func (r *DefaultRuntime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	return resolveProperty(ctx, source, field, args)
}

// BatchResolveAsync resolves tasks concurrently; results keep task order.
func (r *DefaultRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	results := make([]AsyncResolveResult, len(tasks))
	if len(tasks) == 1 {
		v, err := resolveProperty(ctx, tasks[0].Source, tasks[0].Field, tasks[0].Args)
		results[0] = AsyncResolveResult{Value: v, Error: err}
		return results
	}
	var g errgroup.Group
	if r.MaxConcurrency > 0 {
		g.SetLimit(r.MaxConcurrency)
	}
	for i, t := range tasks {
		g.Go(func() error {
			v, err := resolveProperty(ctx, t.Source, t.Field, t.Args)
			results[i] = AsyncResolveResult{Value: v, Error: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Subscribe turns the root property of the subscription field into a source
// stream. Channels are forwarded, slices are emitted in order and a
// SubscribeFunc is called. Every item is wrapped so the field resolves to it.
func (r *DefaultRuntime) Subscribe(ctx context.Context, objectType string, field string, root any, args map[string]any) (<-chan any, error) {
	prop, err := lookupProperty(root, field)
	if err != nil {
		return nil, err
	}

	var source <-chan any
	switch v := prop.(type) {
	case SubscribeFunc:
		source, err = v(ctx, args)
	case func(context.Context, map[string]any) (<-chan any, error):
		source, err = v(ctx, args)
	case <-chan any:
		source = v
	case chan any:
		source = v
	case []any:
		ch := make(chan any, len(v))
		for _, item := range v {
			ch <- item
		}
		close(ch)
		source = ch
	case nil:
		return nil, fmt.Errorf("no event source for subscription field %s.%s", objectType, field)
	default:
		return nil, fmt.Errorf("subscription field %s.%s resolved to %T, not an event source", objectType, field, prop)
	}
	if err != nil {
		return nil, err
	}

	out := make(chan any)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case item, ok := <-source:
				if !ok {
					return
				}
				select {
				case out <- map[string]any{field: item}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// ResolveType reads "__typename" from maps or calls GraphQLTypeName.
func (r *DefaultRuntime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	switch v := value.(type) {
	case Typer:
		return v.GraphQLTypeName(), nil
	case map[string]any:
		if name, ok := v["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("cannot resolve concrete type of %s from %T", abstractType, value)
}

func (r *DefaultRuntime) ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error) {
	return value, nil
}

func (r *DefaultRuntime) ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error) {
	return value, nil
}

// SerializeLeafValue serializes built-in scalars strictly; enums and custom
// scalars pass through, with fmt.Stringer values rendered as strings.
func (r *DefaultRuntime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	switch typeName {
	case "Int":
		return serializeInt(value)
	case "Float":
		return serializeFloat(value)
	case "String":
		return serializeString(value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %v", value)
	case "ID":
		switch v := value.(type) {
		case string:
			return v, nil
		case int, int32, int64, json.Number:
			return fmt.Sprint(v), nil
		}
		return nil, fmt.Errorf("ID cannot represent value: %v", value)
	}
	if s, ok := value.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return value, nil
}

func serializeInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return v, nil
		}
	case int32:
		return int(v), nil
	case int64:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return int(v), nil
		}
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32 {
			return int(v), nil
		}
	case json.Number:
		if i, err := v.Int64(); err == nil && i >= math.MinInt32 && i <= math.MaxInt32 {
			return int(i), nil
		}
	}
	return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %v", value)
}

func serializeFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("Float cannot represent non numeric value: %v", value)
}

func serializeString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case bool, int, int32, int64, float32, float64, json.Number:
		return fmt.Sprint(v), nil
	}
	return nil, fmt.Errorf("String cannot represent value: %v", value)
}

func resolveProperty(ctx context.Context, source any, field string, args map[string]any) (any, error) {
	prop, err := lookupProperty(source, field)
	if err != nil {
		return nil, err
	}
	switch fn := prop.(type) {
	case ResolverFunc:
		return fn(ctx, args)
	case func(context.Context, map[string]any) (any, error):
		return fn(ctx, args)
	}
	return prop, nil
}

func lookupProperty(source any, field string) (any, error) {
	if source == nil {
		return nil, nil
	}
	if m, ok := source.(map[string]any); ok {
		return m[field], nil
	}

	rv := reflect.ValueOf(source)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("cannot read field %q from map keyed by %s", field, rv.Type().Key())
		}
		v := rv.MapIndex(reflect.ValueOf(field).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	case reflect.Struct:
		if v, ok := structField(rv, field); ok {
			return v.Interface(), nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("cannot read field %q from %T", field, source)
}

func structField(rv reflect.Value, field string) (reflect.Value, bool) {
	rt := rv.Type()
	byName := -1
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		if tag, _, _ := strings.Cut(sf.Tag.Get("json"), ","); tag == field {
			return rv.Field(i), true
		}
		if byName < 0 && strings.EqualFold(sf.Name, field) {
			byName = i
		}
	}
	if byName >= 0 {
		return rv.Field(byName), true
	}
	return reflect.Value{}, false
}
