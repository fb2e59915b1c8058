package transforms

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	delegate "github.com/hanpama/gqlwrap/internal/delegate"
	executor "github.com/hanpama/gqlwrap/internal/executor"
	language "github.com/hanpama/gqlwrap/internal/language"
	schema "github.com/hanpama/gqlwrap/internal/schema"
)

// DefaultAlias is the response key hoisted selections travel under.
const DefaultAlias = "__gqtlw__"

const (
	mapperKey       = "hoist.mapper"
	responseKeysKey = "hoist.responseKeys"
)

// PathSegment is one field on the way from the hoisting type to the hoisted
// field. ArgFilter decides which of the field's arguments the new field
// exposes.
type PathSegment struct {
	FieldName string
	ArgFilter func(*schema.InputValue) bool
}

// Segments builds a path from plain field names.
func Segments(names ...string) []PathSegment {
	path := make([]PathSegment, len(names))
	for i, n := range names {
		path[i] = PathSegment{FieldName: n}
	}
	return path
}

func passAll(*schema.InputValue) bool  { return true }
func passNone(*schema.InputValue) bool { return false }

// HoistOption configures a HoistField.
type HoistOption func(*HoistField)

// WithAlias replaces DefaultAlias. Hoists that share a type need distinct
// aliases.
func WithAlias(alias string) HoistOption {
	return func(h *HoistField) { h.alias = alias }
}

// WithArgFilter sets the filter of the hoisted field's own arguments when the
// last path segment has none.
func WithArgFilter(f func(*schema.InputValue) bool) HoistOption {
	return func(h *HoistField) { h.argFilter = f }
}

// HoistField exposes a field nested below typeName as newFieldName directly
// on typeName.
type HoistField struct {
	typeName     string
	newFieldName string
	alias        string
	argFilter    func(*schema.InputValue) bool

	pathToField  []PathSegment
	oldFieldName string

	mapper atomic.Pointer[MapFields]
}

// hoistPlan is what one schema transformation learned about the path.
type hoistPlan struct {
	argLevels map[string]int
	listWraps []schema.OutputShape
}

// NewHoistField validates the hoist configuration. Intermediate segments
// without a filter promote no arguments; the last one falls back to
// WithArgFilter and then promotes all of them.
func NewHoistField(typeName string, path []PathSegment, newFieldName string, opts ...HoistOption) (*HoistField, error) {
	h := &HoistField{typeName: typeName, newFieldName: newFieldName, alias: DefaultAlias}
	for _, opt := range opts {
		opt(h)
	}
	if len(path) == 0 {
		return nil, h.configError("path must name at least one field")
	}
	if newFieldName == "" {
		return nil, h.configError("new field name is empty")
	}
	if h.alias == "" || h.alias == newFieldName {
		return nil, h.configError("alias %q collides with the new field name", h.alias)
	}

	segments := make([]PathSegment, len(path))
	for i, seg := range path {
		if seg.FieldName == "" {
			return nil, h.configError("path segment %d has no field name", i)
		}
		if seg.FieldName == h.alias {
			return nil, h.configError("alias %q collides with path segment %d", h.alias, i)
		}
		if seg.ArgFilter == nil {
			switch {
			case i < len(path)-1:
				seg.ArgFilter = passNone
			case h.argFilter != nil:
				seg.ArgFilter = h.argFilter
			default:
				seg.ArgFilter = passAll
			}
		}
		segments[i] = seg
	}
	h.pathToField = segments[:len(segments)-1]
	h.oldFieldName = segments[len(segments)-1].FieldName
	h.argFilter = segments[len(segments)-1].ArgFilter
	return h, nil
}

func (h *HoistField) String() string {
	names := make([]string, 0, len(h.pathToField)+1)
	for _, seg := range h.pathToField {
		names = append(names, seg.FieldName)
	}
	names = append(names, h.oldFieldName)
	return fmt.Sprintf("%s.%s <- %s", h.typeName, h.newFieldName, strings.Join(names, "."))
}

// Alias is the response key the hoisted path is fetched under.
func (h *HoistField) Alias() string { return h.alias }

func (h *HoistField) TransformSchema(original *schema.Schema, sub *delegate.SubschemaConfig, transformed *schema.Schema) (*schema.Schema, error) {
	plan := &hoistPlan{argLevels: map[string]int{}}
	var args []*schema.InputValue
	promote := func(arg *schema.InputValue, level int) {
		if _, seen := plan.argLevels[arg.Name]; seen {
			i := slices.IndexFunc(args, func(a *schema.InputValue) bool { return a.Name == arg.Name })
			args[i] = arg
		} else {
			args = append(args, arg)
		}
		plan.argLevels[arg.Name] = level
	}

	typ := original.Types[h.typeName]
	if typ == nil || (typ.Kind != schema.TypeKindObject && typ.Kind != schema.TypeKindInterface) {
		return nil, h.configError("type %s is not an object or interface in the schema", h.typeName)
	}
	for level, seg := range h.pathToField {
		if typ.FieldByName(h.alias) != nil {
			return nil, h.configError("alias %q collides with field %s.%s", h.alias, typ.Name, h.alias)
		}
		f := typ.FieldByName(seg.FieldName)
		if f == nil {
			return nil, h.configError("field %s.%s not found", typ.Name, seg.FieldName)
		}
		for _, arg := range f.Arguments {
			if seg.ArgFilter(arg) {
				promote(arg, level)
			}
		}
		shape, named := schema.ClassifyOutput(f.Type)
		switch shape {
		case schema.ShapeList, schema.ShapeNonNullList:
			plan.listWraps = append(plan.listWraps, shape)
		case schema.ShapeOther:
			return nil, h.configError("field %s.%s has unsupported type %s", typ.Name, seg.FieldName, f.Type)
		}
		next := original.Types[named]
		if next == nil || (next.Kind != schema.TypeKindObject && next.Kind != schema.TypeKindInterface) {
			return nil, h.configError("field %s.%s is of type %s, not an object", typ.Name, seg.FieldName, f.Type)
		}
		typ = next
	}
	if typ.FieldByName(h.alias) != nil {
		return nil, h.configError("alias %q collides with field %s.%s", h.alias, typ.Name, h.alias)
	}
	target := typ.FieldByName(h.oldFieldName)
	if target == nil {
		return nil, h.configError("field %s.%s not found", typ.Name, h.oldFieldName)
	}
	for _, arg := range target.Arguments {
		if h.argFilter(arg) {
			promote(arg, len(h.pathToField))
		}
	}

	edited, _, err := schema.RemoveFields(original, typ.Name, func(name string, _ *schema.Field) bool {
		return name == h.oldFieldName
	})
	if err != nil {
		return nil, h.configError("%v", err)
	}

	newType := target.Type
	for i := len(plan.listWraps) - 1; i >= 0; i-- {
		newType = schema.ListType(newType)
		if plan.listWraps[i] == schema.ShapeNonNullList {
			newType = schema.NonNullType(newType)
		}
	}
	newField := &schema.Field{
		Name:              h.newFieldName,
		Description:       target.Description,
		Type:              newType,
		Arguments:         args,
		IsDeprecated:      target.IsDeprecated,
		DeprecationReason: target.DeprecationReason,
	}
	if transformed != nil {
		h.attachResolver(newField, original, sub)
	}

	edited, err = schema.AppendFields(edited, h.typeName, newField)
	if err != nil {
		return nil, h.configError("%v", err)
	}

	// Results report concrete type names, so an interface also rewrites the
	// objects of its implementations.
	collapse := h.objectValueTransformer(plan)
	valueTransformers := map[string]ObjectValueTransformer{h.typeName: collapse}
	for _, name := range original.Types[h.typeName].PossibleTypes {
		valueTransformers[name] = collapse
	}
	mapper := NewMapFields(
		map[string]map[string]FieldNodeTransformer{
			h.typeName: {h.newFieldName: h.fieldNodeTransformer(plan)},
		},
		valueTransformers,
		h.errorsTransformer,
	)
	out, err := mapper.TransformSchema(edited, sub, transformed)
	if err != nil {
		return nil, err
	}
	h.mapper.Store(mapper)

	slog.Debug("Hoisted field", "hoist", h.String(), "arguments", len(args), "listWraps", len(plan.listWraps))
	return out, nil
}

func (h *HoistField) attachResolver(f *schema.Field, original *schema.Schema, sub *delegate.SubschemaConfig) {
	var op language.Operation
	switch h.typeName {
	case original.QueryType:
		op = language.Query
	case original.MutationType:
		op = language.Mutation
	default:
		f.Resolve = delegate.DefaultMergedResolver
		return
	}
	f.Async = true
	proxy := delegate.CreateProxyingResolver
	if sub != nil {
		proxy = sub.ProxyingResolver()
	}
	f.Resolve = proxy(delegate.ProxyingResolverOptions{
		Subschema: sub,
		Operation: op,
		FieldName: h.newFieldName,
	})
}

func (h *HoistField) TransformRequest(req *delegate.Request, dc *delegate.DelegationContext, tc delegate.TransformationContext) (*delegate.Request, error) {
	mapper := h.mapper.Load()
	if mapper == nil {
		return nil, fmt.Errorf("hoist %s used before its schema was transformed", h)
	}
	tc[mapperKey] = mapper
	return mapper.TransformRequest(req, dc, tc)
}

func (h *HoistField) TransformResult(res *executor.ExecutionResult, dc *delegate.DelegationContext, tc delegate.TransformationContext) (*executor.ExecutionResult, error) {
	mapper, _ := tc[mapperKey].(*MapFields)
	if mapper == nil {
		if mapper = h.mapper.Load(); mapper == nil {
			return res, nil
		}
	}
	return mapper.TransformResult(res, dc, tc)
}

func (h *HoistField) pathNames() []string {
	names := make([]string, len(h.pathToField))
	for i, seg := range h.pathToField {
		names[i] = seg.FieldName
	}
	return names
}

func (h *HoistField) fieldNodeTransformer(plan *hoistPlan) FieldNodeTransformer {
	path := h.pathNames()
	return func(typeName, fieldName string, field *language.Field, tc delegate.TransformationContext) language.SelectionSet {
		recordResponseKey(tc, language.ResponseKey(field))
		leaf := renameFieldNode(field, h.oldFieldName)
		return language.SelectionSet{wrapFieldNode(leaf, path, h.alias, plan.argLevels)}
	}
}

func (h *HoistField) objectValueTransformer(plan *hoistPlan) ObjectValueTransformer {
	return func(value map[string]any, tc delegate.TransformationContext) map[string]any {
		raw, ok := value[h.alias]
		if !ok {
			return value
		}
		out := make(map[string]any, len(value))
		for k, v := range value {
			if k != h.alias {
				out[k] = v
			}
		}
		keys := responseKeys(tc, h.newFieldName)
		if len(plan.listWraps) > 0 {
			for _, key := range keys {
				out[key] = projectValue(raw, h.alias, key)
			}
			return out
		}
		switch inner := followAlias(raw, h.alias).(type) {
		case map[string]any:
			for k, v := range inner {
				out[k] = v
			}
		case nil:
			for _, key := range keys {
				out[key] = nil
			}
		default:
			for _, key := range keys {
				out[key] = inner
			}
		}
		return out
	}
}

func (h *HoistField) errorsTransformer(errs []executor.GraphQLError, tc delegate.TransformationContext) []executor.GraphQLError {
	return unwrapErrors(errs, h.alias, len(h.pathToField), responseKeys(tc, h.newFieldName)[0])
}

// renameFieldNode points field at the real field name while keeping the
// response key the caller asked for.
func renameFieldNode(field *language.Field, name string) *language.Field {
	c := *field
	c.Alias = language.ResponseKey(field)
	c.Name = name
	return &c
}

// wrapFieldNode nests leaf under one aliased field per path element. Each
// link, the leaf included, keeps only the arguments owned by its level.
func wrapFieldNode(leaf *language.Field, path []string, alias string, argLevels map[string]int) *language.Field {
	argsAt := func(level int) language.ArgumentList {
		var out language.ArgumentList
		for _, arg := range leaf.Arguments {
			if l, ok := argLevels[arg.Name]; ok && l == level {
				out = append(out, arg)
			}
		}
		return out
	}

	node := *leaf
	node.Arguments = argsAt(len(path))
	current := &node
	for i := len(path) - 1; i >= 0; i-- {
		current = &language.Field{
			Alias:        alias,
			Name:         path[i],
			Arguments:    argsAt(i),
			SelectionSet: language.SelectionSet{current},
			Position:     leaf.Position,
		}
	}
	return current
}

// followAlias descends through alias keys until it reaches an object
// without one, or null.
func followAlias(v any, alias string) any {
	for {
		obj, ok := v.(map[string]any)
		if !ok {
			return v
		}
		next, ok := obj[alias]
		if !ok {
			return obj
		}
		v = next
	}
}

// projectValue collapses an alias chain that runs through lists, reading key
// from every innermost object. Lengths and order are kept; nulls stay null.
func projectValue(v any, alias, key string) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = projectValue(item, alias, key)
		}
		return out
	case map[string]any:
		if next, ok := x[alias]; ok {
			return projectValue(next, alias, key)
		}
		return x[key]
	}
	return v
}

// unwrapErrors relocates errors reported inside an alias chain of depth
// links to where the hoisted field publishes them. List indices met along the
// chain move behind the hoisted response key, so an error at
// [team __gqtlw__ 0 __gqtlw__ name] lands at [team name 0]. Errors on an
// intermediate link are reported on key, the first response key the caller
// used.
func unwrapErrors(errs []executor.GraphQLError, alias string, depth int, key string) []executor.GraphQLError {
	out := make([]executor.GraphQLError, len(errs))
	for i, e := range errs {
		start := slices.Index(e.Path, any(alias))
		if start < 0 {
			out[i] = e
			continue
		}
		var indices executor.Path
		links, j := 0, start
		for j < len(e.Path) && links < depth && e.Path[j] == alias {
			links++
			j++
			for j < len(e.Path) {
				idx, ok := e.Path[j].(int)
				if !ok {
					break
				}
				indices = append(indices, idx)
				j++
			}
		}

		path := append(executor.Path(nil), e.Path[:start]...)
		if links == depth && j < len(e.Path) {
			path = append(path, e.Path[j])
			path = append(path, indices...)
			path = append(path, e.Path[j+1:]...)
		} else {
			path = append(path, key)
			path = append(path, indices...)
		}
		out[i] = delegate.RelocatedError(e, path)
	}
	return out
}

func recordResponseKey(tc delegate.TransformationContext, key string) {
	keys, _ := tc[responseKeysKey].([]string)
	if !slices.Contains(keys, key) {
		tc[responseKeysKey] = append(keys, key)
	}
}

func responseKeys(tc delegate.TransformationContext, fallback string) []string {
	if keys, ok := tc[responseKeysKey].([]string); ok && len(keys) > 0 {
		return keys
	}
	return []string{fallback}
}
