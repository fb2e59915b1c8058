package executor

import (
	"context"
	"fmt"

	language "github.com/hanpama/gqlwrap/internal/language"
	schema "github.com/hanpama/gqlwrap/internal/schema"
)

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// Schema returns the schema the executor runs against.
func (e *Executor) Schema() *schema.Schema { return e.schema }

// execution is the state of one ExecuteRequest call.
type execution struct {
	ctx       context.Context
	runtime   Runtime
	schema    *schema.Schema
	document  *language.QueryDocument
	operation *language.OperationDefinition
	variables map[string]any

	data    map[string]any
	pending []pendingField
	errors  []GraphQLError
	failed  map[string]struct{} // keys of paths holding an error
	nulled  pathSet             // subtrees replaced by null; pending fields below are dropped
}

// pendingField is an async field waiting for the next batch.
type pendingField struct {
	task   AsyncResolveTask
	path   Path
	typ    *schema.TypeRef
	nodes  []*language.Field
	bubble Path // where a null of a Non-Null typ ends up
}

// placeholder marks a response slot filled once its batch returns.
type placeholder struct{}

func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	operation := selectOperation(document, operationName)
	if operation == nil {
		return failedResult("operation not found")
	}
	variables, err := coerceVariableValues(e.schema, operation, variableValues)
	if err != nil {
		return failedResult(err.Error())
	}
	root := e.rootType(operation.Operation)
	if root == nil {
		return failedResult(fmt.Sprintf("root type not found for %s operation", operation.Operation))
	}

	ex := &execution{
		ctx:       ctx,
		runtime:   e.runtime,
		schema:    e.schema,
		document:  document,
		operation: operation,
		variables: variables,
		errors:    []GraphQLError{},
		failed:    map[string]struct{}{},
		nulled:    pathSet{},
	}
	ex.data = ex.selectionSet(root, operation.SelectionSet, initialValue, Path{}, nil)
	for len(ex.pending) > 0 {
		ex.flush()
	}
	return &ExecutionResult{Data: ex.data, Errors: ex.errors}
}

func (e *Executor) rootType(op language.Operation) *schema.Type {
	switch op {
	case language.Query:
		return e.schema.GetQueryType()
	case language.Mutation:
		return e.schema.GetMutationType()
	case language.Subscription:
		return e.schema.GetSubscriptionType()
	}
	return nil
}

func failedResult(message string) *ExecutionResult {
	return &ExecutionResult{Errors: []GraphQLError{{Message: message}}}
}

// selectOperation picks the named operation, or the only one when name is empty.
func selectOperation(document *language.QueryDocument, name string) *language.OperationDefinition {
	if name == "" && len(document.Operations) == 1 {
		return document.Operations[0]
	}
	for _, op := range document.Operations {
		if op.Name == name {
			return op
		}
	}
	return nil
}

// selectionSet executes the fields of one object. Sync fields complete in
// place; async fields leave a placeholder and join the pending batch. A nil
// return means a Non-Null field came back null and the object is nulled.
func (ex *execution) selectionSet(objectType *schema.Type, set language.SelectionSet, source any, path, bubble Path) map[string]any {
	out := make(map[string]any)
	for _, group := range ex.collectFields(objectType, set) {
		fieldPath := path.With(group.ResponseName)
		name := group.Fields[0].Name
		if name == "__typename" {
			out[group.ResponseName] = objectType.Name
			continue
		}
		def := objectType.FieldByName(name)
		if def == nil {
			ex.addError(fmt.Sprintf("Cannot query field '%s' on type '%s'", name, objectType.Name), fieldPath)
			continue
		}

		value := ex.field(objectType, def, source, group.Fields, fieldPath, bubble)
		if isNullish(value) {
			if schema.IsNonNull(def.Type) && len(path) > 0 {
				ex.nulled.add(path)
				return nil
			}
			value = nil
		}
		out[group.ResponseName] = value
	}
	return out
}

func (ex *execution) field(parent *schema.Type, def *schema.Field, source any, nodes []*language.Field, path, bubble Path) any {
	args := coerceArgumentValues(def, nodes[0].Arguments, ex.variables, ex, path)
	info := &schema.ResolveInfo{
		FieldName:      def.Name,
		FieldNodes:     nodes,
		ParentType:     parent,
		ReturnType:     def.Type,
		Path:           path,
		Schema:         ex.schema,
		Operation:      ex.operation,
		Fragments:      ex.document.Fragments,
		VariableValues: ex.variables,
	}
	if def.Async {
		ex.pending = append(ex.pending, pendingField{
			task:   AsyncResolveTask{Info: info, Source: source, Args: args},
			path:   path,
			typ:    def.Type,
			nodes:  nodes,
			bubble: bubble,
		})
		return placeholder{}
	}
	value, err := ex.runtime.ResolveSync(ex.ctx, info, source, args)
	if err != nil {
		ex.addLocated(err, path)
	}
	return ex.complete(def.Type, nodes, value, path, bubble)
}

// flush sends every live pending field to the runtime as one batch and writes
// the completed values into the response. Fields queued while completing form
// the next batch.
func (ex *execution) flush() {
	batch := make([]pendingField, 0, len(ex.pending))
	for _, p := range ex.pending {
		if !ex.nulled.covers(p.path) {
			batch = append(batch, p)
		}
	}
	ex.pending = nil
	if len(batch) == 0 {
		return
	}

	tasks := make([]AsyncResolveTask, len(batch))
	for i, p := range batch {
		tasks[i] = p.task
	}
	results := ex.runtime.BatchResolveAsync(ex.ctx, tasks)
	if len(results) != len(tasks) {
		err := fmt.Errorf("runtime returned %d results for %d tasks", len(results), len(tasks))
		results = make([]AsyncResolveResult, len(tasks))
		for i := range results {
			results[i].Error = err
		}
	}

	for i, p := range batch {
		if ex.nulled.covers(p.path) {
			continue
		}
		if err := results[i].Error; err != nil {
			ex.addLocated(err, p.path)
		}
		value := ex.complete(p.typ, p.nodes, results[i].Value, p.path, p.bubble)
		if isNullish(value) && schema.IsNonNull(p.typ) {
			ex.nullify(p)
			continue
		}
		if isNullish(value) {
			value = nil
		}
		ex.set(p.path, value)
	}
}

// nullify writes null where a Non-Null pending field's null bubbles to. Root
// fields null themselves rather than the whole data object.
func (ex *execution) nullify(p pendingField) {
	target := p.bubble
	if len(target) == 0 {
		target = p.path[:1]
	}
	ex.set(target, nil)
	ex.nulled.add(target)
}

// set stores value at path. Nothing is written when an ancestor is gone.
func (ex *execution) set(path Path, value any) {
	if len(path) == 0 {
		return
	}
	var cur any = ex.data
	for _, elem := range path[:len(path)-1] {
		switch key := elem.(type) {
		case string:
			m, _ := cur.(map[string]any)
			cur = m[key]
		case int:
			l, _ := cur.([]any)
			if key >= len(l) {
				return
			}
			cur = l[key]
		}
		if cur == nil {
			return
		}
	}
	switch key := path[len(path)-1].(type) {
	case string:
		if m, ok := cur.(map[string]any); ok {
			m[key] = value
		}
	case int:
		if l, ok := cur.([]any); ok && key < len(l) {
			l[key] = value
		}
	}
}

func (ex *execution) addError(message string, path Path) {
	ex.errors = append(ex.errors, GraphQLError{Message: message, Path: path})
	ex.failed[path.String()] = struct{}{}
}

func (ex *execution) addLocated(err error, path Path) {
	ex.errors = append(ex.errors, locatedErrors(err, path)...)
	ex.failed[path.String()] = struct{}{}
}

func (ex *execution) hasError(path Path) bool {
	_, ok := ex.failed[path.String()]
	return ok
}
