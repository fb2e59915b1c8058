package delegate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	eventbus "github.com/hanpama/gqlwrap/internal/eventbus"
	events "github.com/hanpama/gqlwrap/internal/events"
	language "github.com/hanpama/gqlwrap/internal/language"
	schema "github.com/hanpama/gqlwrap/internal/schema"
)

var delegationSeq atomic.Uint64

// DelegateOptions selects what DelegateToSchema sends where.
type DelegateOptions struct {
	Subschema *SubschemaConfig
	// Operation defaults to the kind of the incoming operation.
	Operation language.Operation
	// FieldName is the root field requested from the subschema, by default
	// the field being resolved.
	FieldName string
	Info      *schema.ResolveInfo
	// ReturnType defaults to Info.ReturnType.
	ReturnType *schema.TypeRef
}

// ProxyingResolverOptions configure a resolver that forwards a root field to
// a subschema.
type ProxyingResolverOptions struct {
	Subschema *SubschemaConfig
	Operation language.Operation
	FieldName string
}

// CreateProxyingResolver returns a resolver that delegates the field it
// resolves to the configured subschema root field.
func CreateProxyingResolver(o ProxyingResolverOptions) schema.FieldResolveFunc {
	return func(ctx context.Context, source any, args map[string]any, info *schema.ResolveInfo) (any, error) {
		return DelegateToSchema(ctx, DelegateOptions{
			Subschema: o.Subschema,
			Operation: o.Operation,
			FieldName: o.FieldName,
			Info:      info,
		})
	}
}

// DelegateToSchema forwards the field described by opts.Info to a subschema
// and returns its value. Objects come back as *ExternalObject so nested
// fields resolve with DefaultMergedResolver.
func DelegateToSchema(ctx context.Context, opts DelegateOptions) (any, error) {
	info := opts.Info
	if info == nil || opts.Subschema == nil {
		return nil, errors.New("delegate: subschema and resolve info are required")
	}
	dc := &DelegationContext{
		Subschema:  opts.Subschema,
		Operation:  opts.Operation,
		FieldName:  opts.FieldName,
		Info:       info,
		ReturnType: opts.ReturnType,
	}
	if dc.Operation == "" {
		dc.Operation = language.Query
		if info.Operation != nil {
			dc.Operation = info.Operation.Operation
		}
	}
	if dc.FieldName == "" {
		dc.FieldName = info.FieldName
	}
	if dc.ReturnType == nil {
		dc.ReturnType = info.ReturnType
	}

	id := delegationSeq.Add(1)
	start := time.Now()
	eventbus.Publish(ctx, events.DelegationStart{
		ID:            id,
		Subschema:     dc.Subschema.Name,
		FieldName:     dc.FieldName,
		OperationType: string(dc.Operation),
	})

	value, errCount, err := delegate(ctx, dc)

	eventbus.Publish(ctx, events.DelegationFinish{
		ID:         id,
		Subschema:  dc.Subschema.Name,
		FieldName:  dc.FieldName,
		ErrorCount: errCount,
		Err:        err,
		Duration:   time.Since(start),
	})
	if err != nil {
		slog.WarnContext(ctx, "Delegation failed", "subschema", dc.Subschema.Name, "field", dc.FieldName, "error", err)
	}
	return value, err
}

func delegate(ctx context.Context, dc *DelegationContext) (any, int, error) {
	req := CreateRequest(dc)
	transformer := NewTransformer(dc, dc.Subschema.Transforms)

	req, err := transformer.TransformRequest(req)
	if err != nil {
		return nil, 0, fmt.Errorf("transform request for %s: %w", dc.FieldName, err)
	}
	slog.DebugContext(ctx, "Delegating request", "subschema", dc.Subschema.Name, "query", language.PrintQuery(req.Document))

	if dc.Subschema.Executor == nil {
		return nil, 0, fmt.Errorf("subschema %q has no executor", dc.Subschema.Name)
	}
	res, err := dc.Subschema.Executor.Execute(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	res, err = transformer.TransformResult(res)
	if err != nil {
		return nil, 0, fmt.Errorf("transform result for %s: %w", dc.FieldName, err)
	}

	key := dc.Info.ResponseKey()
	var data any
	if m, ok := res.Data.(map[string]any); ok {
		data = m[key]
	}
	errs := childErrors(res.Errors, key)
	for _, e := range res.Errors {
		// Errors without a usable path belong to the delegated field itself.
		if len(e.Path) == 0 || e.Path[0] != key {
			errs = append(errs, RelocatedError(e, nil))
		}
	}
	value, err := externalValue(data, errs, dc.Subschema)
	return value, len(res.Errors), err
}

// CreateRequest builds the subschema request for a delegated field: the
// field's own selection under the subschema root field, the fragments it
// spreads, and the variables it references.
func CreateRequest(dc *DelegationContext) *Request {
	info := dc.Info

	var selections language.SelectionSet
	for _, node := range info.FieldNodes {
		f := *node
		f.Name = dc.FieldName
		f.Alias = language.ResponseKey(node)
		f.SelectionSet = withAbstractTypenames(info.Schema, schema.GetNamedType(dc.ReturnType), node.SelectionSet)
		selections = append(selections, &f)
	}

	fragments := usedFragments(selections, info.Fragments)
	var fragmentDefs language.FragmentDefinitionList
	for _, fd := range fragments {
		c := *fd
		c.SelectionSet = withAbstractTypenames(info.Schema, fd.TypeCondition, fd.SelectionSet)
		fragmentDefs = append(fragmentDefs, &c)
	}

	usedVars := map[string]bool{}
	collectVariables(selections, usedVars)
	for _, fd := range fragmentDefs {
		collectVariables(fd.SelectionSet, usedVars)
	}

	op := &language.OperationDefinition{Operation: dc.Operation, SelectionSet: selections}
	var variables map[string]any
	if info.Operation != nil {
		op.Name = info.Operation.Name
		for _, vd := range info.Operation.VariableDefinitions {
			if !usedVars[vd.Variable] {
				continue
			}
			op.VariableDefinitions = append(op.VariableDefinitions, vd)
			if v, ok := info.VariableValues[vd.Variable]; ok {
				if variables == nil {
					variables = map[string]any{}
				}
				variables[vd.Variable] = v
			}
		}
	}

	return &Request{
		Document: &language.QueryDocument{
			Operations: language.OperationList{op},
			Fragments:  fragmentDefs,
		},
		OperationName: op.Name,
		Variables:     variables,
	}
}
