package introspection

import (
	"fmt"
	"sort"

	schema "github.com/hanpama/graphedge/internal/schema"
)

func resolveSchemaField(sch *schema.Schema, field string) (any, error) {
	switch field {
	case "description":
		return optional(sch.Description), nil
	case "types":
		names := make([]string, 0, len(sch.Types))
		for name := range sch.Types {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]*schema.Type, len(names))
		for i, name := range names {
			out[i] = sch.Types[name]
		}
		return out, nil
	case "queryType":
		return sch.GetQueryType(), nil
	case "mutationType":
		return sch.GetMutationType(), nil
	case "subscriptionType":
		return sch.GetSubscriptionType(), nil
	case "directives":
		names := make([]string, 0, len(sch.Directives))
		for name := range sch.Directives {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]*schema.Directive, len(names))
		for i, name := range names {
			out[i] = sch.Directives[name]
		}
		return out, nil
	}
	return nil, unknownField("__Schema", field)
}

func resolveTypeField(sch *schema.Schema, t *schema.Type, field string, args map[string]any) (any, error) {
	switch field {
	case "kind":
		return string(t.Kind), nil
	case "name":
		return t.Name, nil
	case "description":
		return optional(t.Description), nil
	case "specifiedByURL":
		if t.SpecifiedByURL == nil {
			return nil, nil
		}
		return *t.SpecifiedByURL, nil
	case "fields":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, nil
		}
		out := []*schema.Field{}
		for _, f := range t.GetOrderedFields() {
			if f.IsDeprecated && !includeDeprecated(args) {
				continue
			}
			out = append(out, f)
		}
		return out, nil
	case "interfaces":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, nil
		}
		return lookupTypes(sch, t.Interfaces), nil
	case "possibleTypes":
		if t.Kind != schema.TypeKindInterface && t.Kind != schema.TypeKindUnion {
			return nil, nil
		}
		return lookupTypes(sch, t.PossibleTypes), nil
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, nil
		}
		out := []*schema.EnumValue{}
		for _, ev := range t.EnumValues {
			if ev.IsDeprecated && !includeDeprecated(args) {
				continue
			}
			out = append(out, ev)
		}
		return out, nil
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, nil
		}
		return filterInputValues(t.GetOrderedInputFields(), args), nil
	case "ofType":
		return nil, nil
	case "isOneOf":
		if t.Kind != schema.TypeKindInputObject {
			return nil, nil
		}
		return t.OneOf, nil
	}
	return nil, unknownField("__Type", field)
}

// resolveTypeRefField answers __Type fields for a type reference. Wrappers
// expose kind and ofType; named references defer to the named type.
func resolveTypeRefField(sch *schema.Schema, tr *schema.TypeRef, field string, args map[string]any) (any, error) {
	if tr.Kind == schema.TypeRefKindNonNull || tr.Kind == schema.TypeRefKindList {
		switch field {
		case "kind":
			return string(tr.Kind), nil
		case "ofType":
			return tr.OfType, nil
		}
		return nil, nil
	}
	def := sch.Types[tr.Named]
	if def == nil {
		return nil, fmt.Errorf("unknown type %q", tr.Named)
	}
	return resolveTypeField(sch, def, field, args)
}

func resolveFieldField(f *schema.Field, field string, args map[string]any) (any, error) {
	switch field {
	case "name":
		return f.Name, nil
	case "description":
		return optional(f.Description), nil
	case "args":
		return filterInputValues(f.GetOrderedArguments(), args), nil
	case "type":
		return f.Type, nil
	case "isDeprecated":
		return f.IsDeprecated, nil
	case "deprecationReason":
		if f.IsDeprecated {
			return f.DeprecationReason, nil
		}
		return nil, nil
	}
	return nil, unknownField("__Field", field)
}

func resolveInputValueField(a *schema.InputValue, field string) (any, error) {
	switch field {
	case "name":
		return a.Name, nil
	case "description":
		return optional(a.Description), nil
	case "type":
		return a.Type, nil
	case "defaultValue":
		return optional(a.DefaultLiteral), nil
	case "isDeprecated":
		return a.IsDeprecated, nil
	case "deprecationReason":
		if a.IsDeprecated {
			return a.DeprecationReason, nil
		}
		return nil, nil
	}
	return nil, unknownField("__InputValue", field)
}

func resolveEnumValueField(ev *schema.EnumValue, field string) (any, error) {
	switch field {
	case "name":
		return ev.Name, nil
	case "description":
		return optional(ev.Description), nil
	case "isDeprecated":
		return ev.IsDeprecated, nil
	case "deprecationReason":
		if ev.IsDeprecated {
			return ev.DeprecationReason, nil
		}
		return nil, nil
	}
	return nil, unknownField("__EnumValue", field)
}

func resolveDirectiveField(d *schema.Directive, field string, args map[string]any) (any, error) {
	switch field {
	case "name":
		return d.Name, nil
	case "description":
		return optional(d.Description), nil
	case "isRepeatable":
		return d.IsRepeatable, nil
	case "locations":
		return d.Locations, nil
	case "args":
		return filterInputValues(d.Arguments, args), nil
	}
	return nil, unknownField("__Directive", field)
}

func lookupTypes(sch *schema.Schema, names []string) []*schema.Type {
	out := make([]*schema.Type, 0, len(names))
	for _, name := range names {
		if def := sch.Types[name]; def != nil {
			out = append(out, def)
		}
	}
	return out
}

func filterInputValues(values []*schema.InputValue, args map[string]any) []*schema.InputValue {
	out := []*schema.InputValue{}
	for _, v := range values {
		if v.IsDeprecated && !includeDeprecated(args) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func includeDeprecated(args map[string]any) bool {
	b, _ := args["includeDeprecated"].(bool)
	return b
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func unknownField(typeName, field string) error {
	return fmt.Errorf("introspection: %s has no field %q", typeName, field)
}
