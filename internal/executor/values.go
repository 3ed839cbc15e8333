package executor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	language "github.com/hanpama/graphedge/internal/language"
	schema "github.com/hanpama/graphedge/internal/schema"
)

// coerceVariableValues coerces the provided variables against the operation's
// variable definitions. Variables missing from the definitions are dropped.
func coerceVariableValues(
	sch *schema.Schema,
	operation *language.OperationDefinition,
	variableValues map[string]any,
) (map[string]any, error) {
	coerced := make(map[string]any, len(operation.VariableDefinitions))
	for _, varDef := range operation.VariableDefinitions {
		name := varDef.Variable
		t := varDef.Type
		val, ok := variableValues[name]
		if !ok {
			if varDef.DefaultValue != nil {
				dv, err := literalValue(varDef.DefaultValue, nil)
				if err != nil {
					return nil, fmt.Errorf("variable $%s has an invalid default value: %v", name, err)
				}
				val = dv
			} else if t.NonNull {
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, t.String())
			} else {
				continue
			}
		}
		if val == nil && t.NonNull {
			return nil, fmt.Errorf("variable $%s of type %s cannot be null", name, t.String())
		}
		cv, err := coerceValue(sch, val, typeRefFromAST(t))
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s cannot be coerced: %v", name, t.String(), err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// coerceArgumentValues coerces argument values for a field, applying defaults.
func coerceArgumentValues(
	fieldDef *schema.Field,
	arguments language.ArgumentList,
	variableValues map[string]any,
	state *executionState,
	path Path,
) map[string]any {
	coerced := make(map[string]any, len(fieldDef.Arguments))
	for _, argDef := range fieldDef.Arguments {
		name := argDef.Name
		arg := arguments.ForName(name)
		if arg == nil || isUnsetVariable(arg.Value, variableValues) {
			if argDef.DefaultValue != nil {
				coerced[name] = argDef.DefaultValue
			} else if schema.IsNonNull(argDef.Type) {
				state.addError(fmt.Sprintf("argument '%s' of required type %s was not provided", name, argDef.Type), path)
			}
			continue
		}
		raw, err := literalValue(arg.Value, variableValues)
		if err != nil {
			state.addError(fmt.Sprintf("argument '%s' is invalid: %v", name, err), path)
			continue
		}
		cv, err := coerceValue(state.schema, raw, argDef.Type)
		if err != nil {
			state.addError(fmt.Sprintf("argument '%s' cannot be coerced: %v", name, err), path)
			continue
		}
		coerced[name] = cv
	}
	return coerced
}

// literalValue converts an input literal to a Go value, substituting the
// coerced variables. Unlike ast.Value.Value it reads only what the parser set,
// never the annotations the validator writes, so a cached document can be
// executed while another request validates it.
func literalValue(v *language.Value, variableValues map[string]any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Kind {
	case language.Variable:
		return variableValues[v.Raw], nil
	case language.IntValue:
		return strconv.ParseInt(v.Raw, 10, 64)
	case language.FloatValue:
		return strconv.ParseFloat(v.Raw, 64)
	case language.StringValue, language.BlockValue, language.EnumValue:
		return v.Raw, nil
	case language.BooleanValue:
		return strconv.ParseBool(v.Raw)
	case language.NullValue:
		return nil, nil
	case language.ListValue:
		out := make([]any, 0, len(v.Children))
		for _, child := range v.Children {
			cv, err := literalValue(child.Value, variableValues)
			if err != nil {
				return nil, err
			}
			out = append(out, cv)
		}
		return out, nil
	case language.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, child := range v.Children {
			cv, err := literalValue(child.Value, variableValues)
			if err != nil {
				return nil, err
			}
			out[child.Name] = cv
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown value kind %d", v.Kind)
}

func isUnsetVariable(v *language.Value, variableValues map[string]any) bool {
	if v == nil || v.Kind != language.Variable {
		return false
	}
	_, ok := variableValues[v.Raw]
	return !ok
}

// coerceValue coerces a value to the specified input type.
func coerceValue(sch *schema.Schema, value any, targetType *schema.TypeRef) (any, error) {
	if schema.IsNonNull(targetType) {
		if value == nil {
			return nil, fmt.Errorf("cannot provide null for non-null type %s", targetType)
		}
		return coerceValue(sch, value, schema.Unwrap(targetType))
	}
	if value == nil {
		return nil, nil
	}
	if schema.IsList(targetType) {
		return coerceListValue(sch, value, targetType)
	}

	namedType := schema.GetNamedType(targetType)
	switch namedType {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		return coerceToString(value)
	case "Boolean":
		return coerceToBoolean(value)
	case "ID":
		return coerceToID(value)
	}

	var typ *schema.Type
	if sch != nil {
		typ = sch.Types[namedType]
	}
	if typ == nil {
		// custom scalars pass through untouched
		return value, nil
	}
	switch typ.Kind {
	case schema.TypeKindEnum:
		return coerceToEnum(typ, value)
	case schema.TypeKindInputObject:
		return coerceInputObject(sch, typ, value)
	default:
		return value, nil
	}
}

func coerceListValue(sch *schema.Schema, value any, listType *schema.TypeRef) (any, error) {
	innerType := schema.Unwrap(listType)
	if slice, ok := value.([]any); ok {
		coercedSlice := make([]any, len(slice))
		for i, item := range slice {
			coercedItem, err := coerceValue(sch, item, innerType)
			if err != nil {
				return nil, fmt.Errorf("at index %d: %v", i, err)
			}
			coercedSlice[i] = coercedItem
		}
		return coercedSlice, nil
	}

	// Single value becomes a list of one
	coercedItem, err := coerceValue(sch, value, innerType)
	if err != nil {
		return nil, err
	}
	return []any{coercedItem}, nil
}

func coerceInputObject(sch *schema.Schema, typ *schema.Type, value any) (any, error) {
	in, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object for %s, got %T", typ.Name, value)
	}
	out := make(map[string]any, len(typ.InputFields))
	for key := range in {
		if !hasInputField(typ, key) {
			return nil, fmt.Errorf("field '%s' is not defined by type %s", key, typ.Name)
		}
	}
	for _, f := range typ.InputFields {
		v, present := in[f.Name]
		if !present {
			if f.DefaultValue != nil {
				out[f.Name] = f.DefaultValue
			} else if schema.IsNonNull(f.Type) {
				return nil, fmt.Errorf("field '%s.%s' of required type %s was not provided", typ.Name, f.Name, f.Type)
			}
			continue
		}
		cv, err := coerceValue(sch, v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field '%s.%s': %v", typ.Name, f.Name, err)
		}
		out[f.Name] = cv
	}
	if typ.OneOf {
		set := 0
		for _, v := range out {
			if v != nil {
				set++
			}
		}
		if set != 1 {
			return nil, fmt.Errorf("exactly one field must be specified for %s", typ.Name)
		}
	}
	return out, nil
}

func hasInputField(typ *schema.Type, name string) bool {
	for _, f := range typ.InputFields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func coerceToEnum(typ *schema.Type, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("cannot coerce %v (%T) to enum %s", value, value, typ.Name)
	}
	for _, ev := range typ.EnumValues {
		if ev.Name == s {
			return s, nil
		}
	}
	return nil, fmt.Errorf("value %q does not exist in enum %s", s, typ.Name)
}

func coerceToInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32 {
			return int(v), nil
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to int", value, value)
}

func coerceToFloat(value any) (any, error) {
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
	return nil, fmt.Errorf("cannot coerce %v (%T) to float", value, value)
}

func coerceToString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case map[string]any, []any:
		return nil, fmt.Errorf("cannot coerce %T to string", value)
	}
	return fmt.Sprintf("%v", value), nil
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to boolean", value, value)
}

func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), nil
		}
	case json.Number:
		return v.String(), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
}
