package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	language "github.com/hanpama/graphedge/internal/language"
	schema "github.com/hanpama/graphedge/internal/schema"
)

type Path = ast.Path

type NodeID uint64

// executionState holds the state during query execution
type executionState struct {
	runtime        Runtime
	schema         *schema.Schema
	document       *language.QueryDocument
	variableValues map[string]any
	context        context.Context
	asyncTaskGroup []asyncTask
	errors         gqlerror.List
	// Store async tasks by ID for completion
	asyncTaskInfo map[NodeID]asyncTask
	// simple incremental id generator
	nextID uint64
	// prefixes of paths that have been nullified (tombstoned)
	nullifiedPrefix map[string]struct{}
}

// asyncTask represents a pending async field resolution
type asyncTask struct {
	ID           NodeID
	Task         AsyncResolveTask
	ResponsePath Path
	FieldType    *schema.TypeRef
	Fields       []*language.Field
}

type asyncPending struct{}

// Executor runs operations against a schema using a Runtime for field resolution.
type Executor struct {
	runtime Runtime
}

func NewExecutor(runtime Runtime) *Executor {
	return &Executor{runtime: runtime}
}

// Execute runs the selected operation of p.Document.
//
// Queries and mutations produce a single *ExecutionResult. Subscriptions produce
// a Stream when the runtime implements Subscriber and the source stream could be
// created; otherwise the failure is reported as a single result.
func (e *Executor) Execute(ctx context.Context, p Params) (Result, error) {
	if p.Schema == nil {
		return nil, errors.New("executor: schema is required")
	}
	if p.Document == nil {
		return nil, errors.New("executor: document is required")
	}
	ctx = WithContextValue(ctx, p.ContextValue)

	operation := getOperation(p.Document, p.OperationName)
	if operation == nil {
		return singleError("operation not found"), nil
	}

	coercedVariableValues, err := coerceVariableValues(p.Schema, operation, p.VariableValues)
	if err != nil {
		return singleError(err.Error()), nil
	}

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = p.Schema.GetQueryType()
	case language.Mutation:
		rootType = p.Schema.GetMutationType()
	case language.Subscription:
		rootType = p.Schema.GetSubscriptionType()
	default:
		return singleError(fmt.Sprintf("unsupported operation type: %s", operation.Operation)), nil
	}

	if rootType == nil {
		return singleError(fmt.Sprintf("root type not found for %s operation", operation.Operation)), nil
	}

	if operation.Operation == language.Subscription {
		return e.subscribe(ctx, p, operation, rootType, coercedVariableValues), nil
	}
	return e.executeOperation(ctx, p, operation, rootType, coercedVariableValues, p.RootValue), nil
}

// ExecuteRequest runs a query or mutation and returns its single result.
// Subscriptions are rejected; their stream is cancelled and drained.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	sch *schema.Schema,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	res, err := e.Execute(ctx, Params{
		Schema:         sch,
		Document:       document,
		OperationName:  operationName,
		VariableValues: variableValues,
		RootValue:      initialValue,
	})
	if err != nil {
		return singleError(err.Error())
	}
	switch r := res.(type) {
	case *ExecutionResult:
		return r
	case Stream:
		cancel()
		for range r {
		}
		return singleError("subscriptions must be executed with Execute")
	}
	return singleError("unexpected result")
}

func (e *Executor) executeOperation(
	ctx context.Context,
	p Params,
	operation *language.OperationDefinition,
	rootType *schema.Type,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	state := &executionState{
		runtime:         e.runtime,
		schema:          p.Schema,
		document:        p.Document,
		variableValues:  variableValues,
		context:         ctx,
		asyncTaskGroup:  []asyncTask{},
		asyncTaskInfo:   make(map[NodeID]asyncTask),
		nextID:          1,
		nullifiedPrefix: make(map[string]struct{}),
	}

	responseRoot := make(map[string]any)

	// Root selection set: sync immediate expansion, async queued
	rootResult := executeSelectionSet(state, rootType, operation.SelectionSet, initialValue, Path{})
	for k, v := range rootResult {
		responseRoot[k] = v
	}

	// Depth-wise batch loop
	for len(state.asyncTaskGroup) > 0 {
		filtered, results := flushAsyncTasks(state)
		for i, r := range results {
			completeAsyncField(state, filtered[i], r, responseRoot)
		}
	}

	return &ExecutionResult{Data: responseRoot, Errors: state.errors}
}

// subscribe creates the source event stream for the single root field of a
// subscription and maps every event to an execution of the selection set with
// the event as root value.
func (e *Executor) subscribe(
	ctx context.Context,
	p Params,
	operation *language.OperationDefinition,
	rootType *schema.Type,
	variableValues map[string]any,
) Result {
	sub, ok := e.runtime.(Subscriber)
	if !ok {
		return singleError("subscriptions are not supported by this runtime")
	}

	state := &executionState{schema: p.Schema, document: p.Document, variableValues: variableValues, context: ctx}
	fields := collectFields(state, rootType, operation.SelectionSet).orderedFields()
	if len(fields) != 1 {
		return singleError("subscription must select exactly one top level field")
	}
	field := fields[0].Fields[0]
	fieldDef := getFieldDefinition(rootType, field.Name)
	if fieldDef == nil {
		return singleError(fmt.Sprintf("Cannot query field '%s' on type '%s'", field.Name, rootType.Name))
	}
	path := Path{ast.PathName(fields[0].ResponseName)}
	args := coerceArgumentValues(fieldDef, field.Arguments, variableValues, state, path)
	if len(state.errors) > 0 {
		return &ExecutionResult{Errors: state.errors}
	}

	source, err := sub.Subscribe(ctx, rootType.Name, field.Name, p.RootValue, args)
	if err != nil {
		return &ExecutionResult{Errors: gqlerror.List{{Message: err.Error(), Path: path}}}
	}

	out := make(chan *ExecutionResult)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-source:
				if !ok {
					return
				}
				res := e.executeOperation(ctx, p, operation, rootType, variableValues, event)
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return Stream(out)
}

// executeSelectionSet executes a selection set without flushing
func executeSelectionSet(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path Path) map[string]any {
	groupedFields := collectFields(state, objectType, selectionSet)
	resultMap := make(map[string]any)

	for _, collectedField := range groupedFields.orderedFields() {
		responseName := collectedField.ResponseName
		fields := collectedField.Fields
		fieldPath := appendPath(path, ast.PathName(responseName))

		fieldResult := executeFieldGroup(state, objectType, objectValue, fields, fieldPath)

		if fields[0].Name == "__typename" {
			resultMap[responseName] = fieldResult
			continue
		}

		fieldDef := getFieldDefinition(objectType, fields[0].Name)
		if fieldDef == nil {
			// error already recorded in executeFieldGroup
			continue
		}

		if schema.IsNonNull(fieldDef.Type) && isNullish(fieldResult) {
			if len(path) > 0 {
				return nil
			}
			// Root level: keep going but write nil
			resultMap[responseName] = nil
			continue
		}

		// coerce typed-nil to interface-nil
		if isNullish(fieldResult) {
			resultMap[responseName] = nil
		} else {
			resultMap[responseName] = fieldResult
		}
	}

	return resultMap
}

func executeFieldGroup(state *executionState, objectType *schema.Type, objectValue any, fields []*language.Field, path Path) any {
	field := fields[0]
	fieldName := field.Name

	if fieldName == "__typename" {
		return objectType.Name
	}

	fieldDef := getFieldDefinition(objectType, fieldName)
	if fieldDef == nil {
		state.addError(fmt.Sprintf("Cannot query field '%s' on type '%s'", fieldName, objectType.Name), path)
		return nil
	}

	argumentValues := coerceArgumentValues(fieldDef, field.Arguments, state.variableValues, state, path)

	if !fieldDef.Async {
		resolvedValue := resolveSyncField(state, objectType.Name, fieldName, objectValue, argumentValues, path)
		return completeValue(state, fieldDef.Type, fields, resolvedValue, path)
	}

	id := NodeID(state.nextID)
	state.nextID++
	at := asyncTask{
		ID: id,
		Task: AsyncResolveTask{
			ObjectType: objectType.Name,
			Field:      fieldName,
			Source:     objectValue,
			Args:       argumentValues,
		},
		ResponsePath: path,
		FieldType:    fieldDef.Type,
		Fields:       fields,
	}
	state.asyncTaskGroup = append(state.asyncTaskGroup, at)
	state.asyncTaskInfo[id] = at
	return asyncPending{}
}

// flushAsyncTasks flushes tasks and returns results (filtered by tombstones)
func flushAsyncTasks(state *executionState) ([]asyncTask, []AsyncResolveResult) {
	filtered := make([]asyncTask, 0, len(state.asyncTaskGroup))
	for _, at := range state.asyncTaskGroup {
		if state.hasNullifiedPrefix(at.ResponsePath) {
			delete(state.asyncTaskInfo, at.ID)
			continue
		}
		filtered = append(filtered, at)
	}

	tasks := make([]AsyncResolveTask, len(filtered))
	for i, at := range filtered {
		tasks[i] = at.Task
	}

	state.asyncTaskGroup = nil

	results := state.runtime.BatchResolveAsync(state.context, tasks)
	if got := len(results); got != len(tasks) {
		// runtime broke the batch contract; fail every task of this depth
		results = make([]AsyncResolveResult, len(tasks))
		for i := range results {
			results[i].Error = fmt.Errorf("runtime returned %d results for %d tasks", got, len(tasks))
		}
	}
	return filtered, results
}

// completeAsyncField completes a single async result, with non-null propagation and pruning
func completeAsyncField(state *executionState, at asyncTask, res AsyncResolveResult, responseRoot map[string]any) {
	delete(state.asyncTaskInfo, at.ID)

	path := at.ResponsePath
	if state.hasNullifiedPrefix(path) {
		return
	}

	if res.Error != nil {
		state.addError(res.Error.Error(), path)
		if schema.IsNonNull(at.FieldType) {
			state.nullify(responseRoot, path)
			return
		}
		setValueAtPath(responseRoot, path, nil)
		return
	}

	completed := completeValue(state, at.FieldType, at.Fields, res.Value, path)

	if schema.IsNonNull(at.FieldType) && isNullish(completed) {
		state.nullify(responseRoot, path)
		return
	}

	if isNullish(completed) {
		setValueAtPath(responseRoot, path, nil)
	} else {
		setValueAtPath(responseRoot, path, completed)
	}
}

// nullify propagates a non-null violation at path to its top level field.
func (state *executionState) nullify(responseRoot map[string]any, path Path) {
	top := topLevelFieldPath(path)
	setValueAtPath(responseRoot, top, nil)
	state.markNullifiedPrefix(top)
}

func completeValue(state *executionState, fieldType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !state.hasErrorAtPath(path) {
				state.addError(fmt.Sprintf("Cannot return null for non-nullable field %s", path.String()), path)
			}
			return nil
		}
		completed := completeValue(state, schema.Unwrap(fieldType), fields, result, path)
		if isNullish(completed) {
			// Error already recorded at original path; propagate only
			return nil
		}
		return completed
	}

	if isNullish(result) {
		return nil
	}

	if schema.IsList(fieldType) {
		return completeListValue(state, fieldType, fields, result, path)
	}
	namedType := schema.GetNamedType(fieldType)
	typeObj := state.schema.Types[namedType]
	if typeObj == nil {
		state.addError(fmt.Sprintf("Unknown type: %s", namedType), path)
		return nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		serialized, err := state.runtime.SerializeLeafValue(state.context, namedType, result)
		if err != nil {
			state.addError(err.Error(), path)
			return nil
		}
		return serialized
	case schema.TypeKindObject:
		return completeObjectValue(state, typeObj, fields, result, path)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return completeAbstractValue(state, typeObj, fields, result, path)
	default:
		state.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", typeObj.Kind), path)
		return nil
	}
}

func completeListValue(state *executionState, listType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	var items []any
	if direct, ok := result.([]any); ok {
		items = direct
	} else {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			state.addError(fmt.Sprintf("Expected list value, got %T", result), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := schema.Unwrap(listType)
	completed := make([]any, len(items))
	for i, item := range items {
		v := completeValue(state, inner, fields, item, appendPath(path, ast.PathIndex(i)))
		if schema.IsNonNull(inner) && isNullish(v) {
			// error already recorded by inner completion
			return nil
		}
		completed[i] = v
	}
	return completed
}

func completeObjectValue(state *executionState, objectType *schema.Type, fields []*language.Field, result any, path Path) any {
	return executeSelectionSet(state, objectType, mergeSelectionSets(fields), result, path)
}

func completeAbstractValue(state *executionState, abstractType *schema.Type, fields []*language.Field, result any, path Path) any {
	var (
		concrete any
		err      error
	)
	if abstractType.Kind == schema.TypeKindUnion {
		concrete, err = state.runtime.ResolveUnionConcreteValue(state.context, abstractType.Name, result)
	} else {
		concrete, err = state.runtime.ResolveInterfaceConcreteValue(state.context, abstractType.Name, result)
	}
	if err != nil {
		state.addError(err.Error(), path)
		return nil
	}
	typeName, err := state.runtime.ResolveType(state.context, abstractType.Name, concrete)
	if err != nil {
		state.addError(err.Error(), path)
		return nil
	}
	objectType := state.schema.Types[typeName]
	if objectType == nil || objectType.Kind != schema.TypeKindObject {
		state.addError(fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", abstractType.Name, typeName), path)
		return nil
	}
	if !objectType.Implements(state.schema, abstractType.Name) {
		state.addError(fmt.Sprintf("Runtime Object type %s is not a possible type for %s", typeName, abstractType.Name), path)
		return nil
	}
	return completeObjectValue(state, objectType, fields, concrete, path)
}

func appendPath(path Path, elem ast.PathElement) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

func (state *executionState) markNullifiedPrefix(p Path) {
	if key := p.String(); key != "" {
		state.nullifiedPrefix[key] = struct{}{}
	}
}

func (state *executionState) hasNullifiedPrefix(p Path) bool {
	if len(state.nullifiedPrefix) == 0 {
		return false
	}
	for i := range p {
		if _, ok := state.nullifiedPrefix[p[:i+1].String()]; ok {
			return true
		}
	}
	return false
}

func topLevelFieldPath(p Path) Path {
	for _, elem := range p {
		if name, ok := elem.(ast.PathName); ok {
			return Path{name}
		}
	}
	return Path{}
}

// getOperation retrieves the operation from the document
func getOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if operationName == "" {
		if len(document.Operations) == 1 {
			return document.Operations[0]
		}
		return nil
	}
	return document.Operations.ForName(operationName)
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return schema.NonNullType(typeRefFromAST(&language.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return schema.NamedType(t.NamedType)
	}
	if t.Elem != nil {
		return schema.ListType(typeRefFromAST(t.Elem))
	}
	return nil
}

func (state *executionState) addError(message string, path Path) {
	state.errors = append(state.errors, &gqlerror.Error{Message: message, Path: path})
}

// hasErrorAtPath reports whether an error with the given path already exists.
func (state *executionState) hasErrorAtPath(path Path) bool {
	key := path.String()
	for _, err := range state.errors {
		if err.Path.String() == key {
			return true
		}
	}
	return false
}

func resolveSyncField(state *executionState, objectType string, fieldName string, source any, args map[string]any, path Path) any {
	value, err := state.runtime.ResolveSync(state.context, objectType, fieldName, source, args)
	if err != nil {
		state.addError(err.Error(), path)
		return nil
	}
	return value
}

// setValueAtPath writes value into the response tree, creating intermediate objects.
func setValueAtPath(responseRoot map[string]any, path Path, value any) {
	if len(path) == 0 {
		return
	}
	current := any(responseRoot)
	for _, elem := range path[:len(path)-1] {
		switch e := elem.(type) {
		case ast.PathName:
			m, ok := current.(map[string]any)
			if !ok {
				return
			}
			next, exists := m[string(e)]
			if !exists {
				next = make(map[string]any)
				m[string(e)] = next
			}
			current = next
		case ast.PathIndex:
			slice, ok := current.([]any)
			if !ok || int(e) >= len(slice) {
				return
			}
			if slice[e] == nil {
				slice[e] = make(map[string]any)
			}
			current = slice[e]
		}
	}
	switch fe := path[len(path)-1].(type) {
	case ast.PathName:
		if m, ok := current.(map[string]any); ok {
			m[string(fe)] = value
		}
	case ast.PathIndex:
		if slice, ok := current.([]any); ok && int(fe) < len(slice) {
			slice[fe] = value
		}
	}
}

// mergeSelectionSets merges selection sets from multiple fields
func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

func singleError(message string) *ExecutionResult {
	return &ExecutionResult{Errors: gqlerror.List{{Message: message}}}
}
