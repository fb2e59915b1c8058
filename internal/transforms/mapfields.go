package transforms

import (
	"fmt"
	"sync/atomic"

	delegate "github.com/hanpama/gqlwrap/internal/delegate"
	executor "github.com/hanpama/gqlwrap/internal/executor"
	language "github.com/hanpama/gqlwrap/internal/language"
	schema "github.com/hanpama/gqlwrap/internal/schema"
)

// FieldNodeTransformer rewrites a selected field of typeName. A nil result
// keeps the field; an empty non-nil set removes it.
type FieldNodeTransformer func(typeName, fieldName string, field *language.Field, tc delegate.TransformationContext) language.SelectionSet

// ObjectValueTransformer rewrites a result object of a given type.
type ObjectValueTransformer func(value map[string]any, tc delegate.TransformationContext) map[string]any

// ErrorsTransformer rewrites the errors of a result.
type ErrorsTransformer func(errs []executor.GraphQLError, tc delegate.TransformationContext) []executor.GraphQLError

var markerSeq atomic.Uint64

// MapFields applies per-field selection rewrites to outgoing requests and
// per-type value rewrites to incoming results. It leaves the schema as is.
//
// To know the type of a result object, MapFields asks for __typename under a
// private alias in every composite selection and strips it from the result.
type MapFields struct {
	fieldNodeTransformers   map[string]map[string]FieldNodeTransformer
	objectValueTransformers map[string]ObjectValueTransformer
	errorsTransformer       ErrorsTransformer

	typenameKey string
	schema      atomic.Pointer[schema.Schema]
}

// NewMapFields returns a MapFields with its own __typename marker alias.
func NewMapFields(
	fieldNodeTransformers map[string]map[string]FieldNodeTransformer,
	objectValueTransformers map[string]ObjectValueTransformer,
	errorsTransformer ErrorsTransformer,
) *MapFields {
	m := &MapFields{
		fieldNodeTransformers:   map[string]map[string]FieldNodeTransformer{},
		objectValueTransformers: map[string]ObjectValueTransformer{},
		errorsTransformer:       errorsTransformer,
		typenameKey:             fmt.Sprintf("__gqlwrap%d_typename", markerSeq.Add(1)),
	}
	for typeName, fields := range fieldNodeTransformers {
		for fieldName, fn := range fields {
			m.Register(typeName, fieldName, fn, nil)
		}
	}
	for typeName, fn := range objectValueTransformers {
		m.objectValueTransformers[typeName] = fn
	}
	return m
}

// Register adds a selection rewriter for typeName.fieldName and a value
// rewriter for objects of typeName. Value rewriters registered for the same
// type run in registration order. Either may be nil.
func (m *MapFields) Register(typeName, fieldName string, sel FieldNodeTransformer, val ObjectValueTransformer) {
	if sel != nil {
		if m.fieldNodeTransformers[typeName] == nil {
			m.fieldNodeTransformers[typeName] = map[string]FieldNodeTransformer{}
		}
		m.fieldNodeTransformers[typeName][fieldName] = sel
	}
	if val != nil {
		if prev := m.objectValueTransformers[typeName]; prev != nil {
			m.objectValueTransformers[typeName] = func(v map[string]any, tc delegate.TransformationContext) map[string]any {
				return val(prev(v, tc), tc)
			}
		} else {
			m.objectValueTransformers[typeName] = val
		}
	}
}

// RegisterErrors sets the error rewriter.
func (m *MapFields) RegisterErrors(fn ErrorsTransformer) {
	m.errorsTransformer = fn
}

// TransformSchema records original as the shape incoming requests use.
func (m *MapFields) TransformSchema(original *schema.Schema, sub *delegate.SubschemaConfig, transformed *schema.Schema) (*schema.Schema, error) {
	m.schema.Store(original)
	return original, nil
}

func (m *MapFields) TransformRequest(req *delegate.Request, dc *delegate.DelegationContext, tc delegate.TransformationContext) (*delegate.Request, error) {
	s := m.schema.Load()
	if s == nil {
		return nil, fmt.Errorf("field mapping used before its schema was transformed")
	}
	doc := &language.QueryDocument{
		Operations: make(language.OperationList, len(req.Document.Operations)),
		Fragments:  make(language.FragmentDefinitionList, len(req.Document.Fragments)),
	}
	for i, op := range req.Document.Operations {
		c := *op
		root := rootTypeName(s, op.Operation)
		c.SelectionSet = m.transformSelectionSet(s, root, op.SelectionSet, op.Operation != language.Subscription, tc)
		doc.Operations[i] = &c
	}
	for i, fd := range req.Document.Fragments {
		c := *fd
		c.SelectionSet = m.transformSelectionSet(s, fd.TypeCondition, fd.SelectionSet, true, tc)
		doc.Fragments[i] = &c
	}
	return &delegate.Request{
		Document:      doc,
		OperationName: req.OperationName,
		Variables:     req.Variables,
		Extensions:    req.Extensions,
	}, nil
}

func (m *MapFields) TransformResult(res *executor.ExecutionResult, dc *delegate.DelegationContext, tc delegate.TransformationContext) (*executor.ExecutionResult, error) {
	out := &executor.ExecutionResult{Data: res.Data, Errors: res.Errors}
	if len(m.objectValueTransformers) > 0 {
		out.Data = m.visitData(res.Data, tc)
	}
	if m.errorsTransformer != nil && len(res.Errors) > 0 {
		out.Errors = m.errorsTransformer(res.Errors, tc)
	}
	return out, nil
}

// transformSelectionSet rewrites children before their parent so that
// replacement nodes are never walked again.
func (m *MapFields) transformSelectionSet(s *schema.Schema, typeName string, sel language.SelectionSet, mark bool, tc delegate.TransformationContext) language.SelectionSet {
	if len(sel) == 0 {
		return sel
	}
	t := s.Types[typeName]
	out := make(language.SelectionSet, 0, len(sel)+1)
	marked := false
	for _, selection := range sel {
		switch node := selection.(type) {
		case *language.Field:
			if node.Name == "__typename" && node.Alias == m.typenameKey {
				marked = true
			}
			c := *node
			if len(node.SelectionSet) > 0 {
				var child string
				if def := t.FieldByName(node.Name); def != nil {
					child = schema.GetNamedType(def.Type)
				}
				c.SelectionSet = m.transformSelectionSet(s, child, node.SelectionSet, true, tc)
			}
			if fn := m.fieldNodeTransformers[typeName][node.Name]; fn != nil {
				if repl := fn(typeName, node.Name, &c, tc); repl != nil {
					out = append(out, repl...)
					continue
				}
			}
			out = append(out, &c)
		case *language.InlineFragment:
			c := *node
			cond := typeName
			if node.TypeCondition != "" {
				cond = node.TypeCondition
			}
			c.SelectionSet = m.transformSelectionSet(s, cond, node.SelectionSet, true, tc)
			out = append(out, &c)
		default:
			out = append(out, selection)
		}
	}
	if mark && !marked && len(m.objectValueTransformers) > 0 && t.IsComposite() {
		out = append(language.SelectionSet{&language.Field{Alias: m.typenameKey, Name: "__typename"}}, out...)
	}
	return out
}

// visitData copies v. Objects are rewritten before their fields are visited.
func (m *MapFields) visitData(v any, tc delegate.TransformationContext) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = m.visitData(item, tc)
		}
		return out
	case map[string]any:
		obj := make(map[string]any, len(x))
		for k, val := range x {
			if k != m.typenameKey {
				obj[k] = val
			}
		}
		if typename, ok := x[m.typenameKey].(string); ok {
			if fn := m.objectValueTransformers[typename]; fn != nil {
				obj = fn(obj, tc)
			}
		}
		for k, val := range obj {
			obj[k] = m.visitData(val, tc)
		}
		return obj
	}
	return v
}

func rootTypeName(s *schema.Schema, op language.Operation) string {
	switch op {
	case language.Mutation:
		return s.MutationType
	case language.Subscription:
		return s.SubscriptionType
	}
	return s.QueryType
}
