package executor

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	schema "github.com/hanpama/gqlwrap/internal/schema"
	"golang.org/x/sync/errgroup"
)

const defaultBatchConcurrency = 16

// ResolverRuntime is a Runtime that calls the resolvers attached to schema
// fields. Fields without a resolver read their value from the source.
type ResolverRuntime struct {
	concurrency  int
	typeResolver func(abstractType string, value any) (string, error)
}

type ResolverOption func(*ResolverRuntime)

// WithConcurrency bounds how many async tasks of one batch run at once.
func WithConcurrency(n int) ResolverOption {
	return func(r *ResolverRuntime) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithTypeResolver overrides how abstract values are mapped to object types.
func WithTypeResolver(f func(abstractType string, value any) (string, error)) ResolverOption {
	return func(r *ResolverRuntime) { r.typeResolver = f }
}

func NewResolverRuntime(opts ...ResolverOption) *ResolverRuntime {
	r := &ResolverRuntime{concurrency: defaultBatchConcurrency}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ResolverRuntime) ResolveSync(ctx context.Context, info *schema.ResolveInfo, source any, args map[string]any) (any, error) {
	field := info.ParentType.FieldByName(info.FieldName)
	if field != nil && field.Resolve != nil {
		return field.Resolve(ctx, source, args, info)
	}
	return defaultPropertyResolver(source, info)
}

// BatchResolveAsync runs every task through ResolveSync on a bounded group.
// Failures stay with their task.
func (r *ResolverRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	results := make([]AsyncResolveResult, len(tasks))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, task := range tasks {
		g.Go(func() error {
			v, err := r.ResolveSync(ctx, task.Info, task.Source, task.Args)
			results[i] = AsyncResolveResult{Value: v, Error: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *ResolverRuntime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	if r.typeResolver != nil {
		return r.typeResolver(abstractType, value)
	}
	name, err := typenameOf(value)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", abstractType, err)
	}
	return name, nil
}

func (r *ResolverRuntime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	return value, nil
}

// typenameOf reads a concrete type name from a map's __typename entry or a
// Typename method.
func typenameOf(value any) (string, error) {
	switch v := value.(type) {
	case interface{ Typename() string }:
		if name := v.Typename(); name != "" {
			return name, nil
		}
	case map[string]any:
		if name, ok := v["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("cannot determine concrete type of %T", value)
}

// defaultPropertyResolver reads info.FieldName from a map or an exported
// struct field of the same name.
func defaultPropertyResolver(source any, info *schema.ResolveInfo) (any, error) {
	if source == nil {
		return nil, nil
	}
	if m, ok := source.(map[string]any); ok {
		return m[info.FieldName], nil
	}
	rv := reflect.ValueOf(source)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		fv := rv.FieldByNameFunc(func(name string) bool { return strings.EqualFold(name, info.FieldName) })
		if fv.IsValid() && fv.CanInterface() {
			return fv.Interface(), nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("cannot read field %s from %T", info.FieldName, source)
}
