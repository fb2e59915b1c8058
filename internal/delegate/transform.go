package delegate

import (
	"fmt"

	executor "github.com/hanpama/gqlwrap/internal/executor"
	language "github.com/hanpama/gqlwrap/internal/language"
	schema "github.com/hanpama/gqlwrap/internal/schema"
)

// Request is an outgoing operation against a subschema.
type Request struct {
	Document      *language.QueryDocument
	OperationName string
	Variables     map[string]any
	Extensions    map[string]any
}

// Operation returns the operation the request will run.
func (r *Request) Operation() *language.OperationDefinition {
	if r.Document == nil {
		return nil
	}
	if r.OperationName == "" && len(r.Document.Operations) == 1 {
		return r.Document.Operations[0]
	}
	return r.Document.Operations.ForName(r.OperationName)
}

// SubschemaConfig describes a schema that requests are delegated to.
type SubschemaConfig struct {
	Name       string
	Schema     *schema.Schema
	Executor   Executor
	Transforms []Transform

	// CreateProxyingResolver overrides how root fields delegate. Nil selects
	// the package level CreateProxyingResolver.
	CreateProxyingResolver func(ProxyingResolverOptions) schema.FieldResolveFunc
}

// ProxyingResolver returns the resolver factory configured for sub.
func (sub *SubschemaConfig) ProxyingResolver() func(ProxyingResolverOptions) schema.FieldResolveFunc {
	if sub.CreateProxyingResolver != nil {
		return sub.CreateProxyingResolver
	}
	return CreateProxyingResolver
}

// DelegationContext describes one delegated root field.
type DelegationContext struct {
	Subschema  *SubschemaConfig
	Operation  language.Operation
	FieldName  string
	Info       *schema.ResolveInfo
	ReturnType *schema.TypeRef
}

// TransformationContext is private scratch space of one transform for one
// delegation. Whatever TransformRequest stores is visible to TransformResult.
type TransformationContext map[string]any

// Transform rewrites the schema a subschema is exposed as, and translates
// requests and results between the exposed and the underlying shape.
type Transform interface {
	TransformSchema(original *schema.Schema, sub *SubschemaConfig, transformed *schema.Schema) (*schema.Schema, error)
	TransformRequest(req *Request, dc *DelegationContext, tc TransformationContext) (*Request, error)
	TransformResult(res *executor.ExecutionResult, dc *DelegationContext, tc TransformationContext) (*executor.ExecutionResult, error)
}

// ApplySchemaTransforms runs the schema step of every transform of sub in
// order. transformed is the final shape from an earlier pass, or nil on the
// first pass.
func ApplySchemaTransforms(original *schema.Schema, sub *SubschemaConfig, transformed *schema.Schema) (*schema.Schema, error) {
	s := original
	for i, t := range sub.Transforms {
		next, err := t.TransformSchema(s, sub, transformed)
		if err != nil {
			return nil, fmt.Errorf("transform %d of subschema %q: %w", i, sub.Name, err)
		}
		s = next
	}
	return s, nil
}

// Transformer runs the request and result steps of a transform list for one
// delegation. Requests go through the transforms last to first, results first
// to last.
type Transformer struct {
	dc         *DelegationContext
	transforms []Transform
	contexts   []TransformationContext
}

func NewTransformer(dc *DelegationContext, transforms []Transform) *Transformer {
	contexts := make([]TransformationContext, len(transforms))
	for i := range contexts {
		contexts[i] = TransformationContext{}
	}
	return &Transformer{dc: dc, transforms: transforms, contexts: contexts}
}

func (t *Transformer) TransformRequest(req *Request) (*Request, error) {
	var err error
	for i := len(t.transforms) - 1; i >= 0; i-- {
		req, err = t.transforms[i].TransformRequest(req, t.dc, t.contexts[i])
		if err != nil {
			return nil, err
		}
	}
	return req, nil
}

func (t *Transformer) TransformResult(res *executor.ExecutionResult) (*executor.ExecutionResult, error) {
	var err error
	for i, tr := range t.transforms {
		res, err = tr.TransformResult(res, t.dc, t.contexts[i])
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}
