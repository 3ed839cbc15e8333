// Package introspection answers the __schema and __type meta fields over an
// executable schema. The __ types themselves come from the gqlparser prelude,
// so only the entry fields and their resolution are added here.
package introspection

import (
	"context"
	"fmt"

	executor "github.com/hanpama/graphedge/internal/executor"
	schema "github.com/hanpama/graphedge/internal/schema"
)

// Introspected pairs a runtime able to resolve introspection with the schema
// whose query type exposes the meta fields.
type Introspected struct {
	Runtime executor.Runtime
	Schema  *schema.Schema
}

// Wrap extends sch with __schema and __type and wraps base so those fields,
// and every field below them, resolve against sch. All other resolution is
// delegated to base. sch is not modified.
func Wrap(base executor.Runtime, sch *schema.Schema) *Introspected {
	return &Introspected{
		Runtime: &runtime{base: base, schema: sch},
		Schema:  extend(sch),
	}
}

func extend(original *schema.Schema) *schema.Schema {
	extended := *original
	extended.Types = make(map[string]*schema.Type, len(original.Types))
	for name, typ := range original.Types {
		extended.Types[name] = typ
	}

	query := original.GetQueryType()
	if query == nil {
		return &extended
	}
	q := *query
	q.Fields = make([]*schema.Field, 0, len(query.Fields)+2)
	q.Fields = append(q.Fields, query.Fields...)
	q.Fields = append(q.Fields,
		&schema.Field{
			Name:        "__schema",
			Description: "Access the current type schema of this server.",
			Type:        schema.NonNullType(schema.NamedType("__Schema")),
		},
		&schema.Field{
			Name:        "__type",
			Description: "Request the type information of a single type.",
			Arguments: []*schema.InputValue{
				{Name: "name", Type: schema.NonNullType(schema.NamedType("String"))},
			},
			Type: schema.NamedType("__Type"),
		},
	)
	extended.Types[q.Name] = &q
	return &extended
}

type runtime struct {
	base   executor.Runtime
	schema *schema.Schema
}

var _ executor.Subscriber = (*runtime)(nil)

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case *schema.Schema:
		return resolveSchemaField(src, field)
	case *schema.Type:
		return resolveTypeField(r.schema, src, field, args)
	case *schema.TypeRef:
		return resolveTypeRefField(r.schema, src, field, args)
	case *schema.Field:
		return resolveFieldField(src, field, args)
	case *schema.InputValue:
		return resolveInputValueField(src, field)
	case *schema.EnumValue:
		return resolveEnumValueField(src, field)
	case *schema.Directive:
		return resolveDirectiveField(src, field, args)
	}

	if objectType == r.schema.QueryType {
		switch field {
		case "__schema":
			return r.schema, nil
		case "__type":
			name, _ := args["name"].(string)
			if t := r.schema.Types[name]; t != nil {
				return t, nil
			}
			return nil, nil
		}
	}
	return r.base.ResolveSync(ctx, objectType, field, source, args)
}

func (r *runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return r.base.BatchResolveAsync(ctx, tasks)
}

func (r *runtime) Subscribe(ctx context.Context, objectType, field string, root any, args map[string]any) (<-chan any, error) {
	sub, ok := r.base.(executor.Subscriber)
	if !ok {
		return nil, fmt.Errorf("subscriptions are not supported by this runtime")
	}
	return sub.Subscribe(ctx, objectType, field, root, args)
}

func (r *runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.base.ResolveType(ctx, abstractType, value)
}

func (r *runtime) ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error) {
	return r.base.ResolveUnionConcreteValue(ctx, unionTypeName, value)
}

func (r *runtime) ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error) {
	return r.base.ResolveInterfaceConcreteValue(ctx, interfaceTypeName, value)
}

func (r *runtime) SerializeLeafValue(ctx context.Context, typ string, value any) (any, error) {
	switch typ {
	case "__TypeKind", "__DirectiveLocation":
		return value, nil
	}
	return r.base.SerializeLeafValue(ctx, typ, value)
}
