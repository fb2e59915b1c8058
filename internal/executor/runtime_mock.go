package executor

import (
	"context"
	"fmt"
	"sync"

	schema "github.com/hanpama/gqlwrap/internal/schema"
)

// MockResolver resolves a single item; MockRuntime adapts it for batched calls in tests.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// CallKind identifies whether a call was from Resolve (sync) or Batch (async).
const (
	CallKindSync  = "sync"
	CallKindAsync = "async"
)

// NewMockValueResolver returns a MockResolver that always returns the provided value.
func NewMockValueResolver(val any) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return val, nil
	}
}

// NewMockErrorResolver returns a MockResolver that always returns the provided error.
func NewMockErrorResolver(err error) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return nil, err
	}
}

// Call is one task-level invocation record. Async calls in the same flush
// share a BatchID; sync calls have BatchID 0.
type Call struct {
	Kind       string
	ObjectType string
	Field      string
	Path       Path
	Source     any
	Args       map[string]any
	BatchID    int
}

// MockRuntime implements Runtime with a resolver registry keyed by
// "ObjectType.field" and a call log. Fields without a registered resolver
// fall back to the property resolver.
type MockRuntime struct {
	mu        sync.Mutex
	resolvers map[string]MockResolver
	calls     []Call
	batchSeq  int

	typeResolver func(value any) (string, error)
	serializer   func(val any, typeName string) (any, error)
}

// NewMockRuntime creates a MockRuntime with the provided resolvers.
func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{
		resolvers:    make(map[string]MockResolver, len(resolvers)),
		typeResolver: typenameOf,
	}
	for k, v := range resolvers {
		m.resolvers[k] = v
	}
	return m
}

// SetResolver registers or updates a resolver for the given object type and field.
func (m *MockRuntime) SetResolver(objectType, field string, resolver MockResolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[objectType+"."+field] = resolver
}

// SetTypeResolver replaces the abstract type resolver.
func (m *MockRuntime) SetTypeResolver(f func(value any) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typeResolver = f
}

// SetSerializer replaces the leaf serializer.
func (m *MockRuntime) SetSerializer(f func(val any, typeName string) (any, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serializer = f
}

func (m *MockRuntime) resolve(ctx context.Context, info *schema.ResolveInfo, source any, args map[string]any) (any, error) {
	m.mu.Lock()
	r := m.resolvers[info.ParentType.Name+"."+info.FieldName]
	m.mu.Unlock()
	if r == nil {
		return defaultPropertyResolver(source, info)
	}
	return r(ctx, source, args)
}

func (m *MockRuntime) record(kind string, info *schema.ResolveInfo, source any, args map[string]any, batchID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{
		Kind:       kind,
		ObjectType: info.ParentType.Name,
		Field:      info.FieldName,
		Path:       Path(info.Path),
		Source:     source,
		Args:       args,
		BatchID:    batchID,
	})
}

func (m *MockRuntime) ResolveSync(ctx context.Context, info *schema.ResolveInfo, source any, args map[string]any) (any, error) {
	m.record(CallKindSync, info, source, args, 0)
	return m.resolve(ctx, info, source, args)
}

// BatchResolveAsync resolves tasks in order and logs them under one batch id.
func (m *MockRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	if len(tasks) == 0 {
		return nil
	}
	m.mu.Lock()
	m.batchSeq++
	batchID := m.batchSeq
	m.mu.Unlock()

	results := make([]AsyncResolveResult, len(tasks))
	for i, t := range tasks {
		m.record(CallKindAsync, t.Info, t.Source, t.Args, batchID)
		val, err := m.resolve(ctx, t.Info, t.Source, t.Args)
		results[i] = AsyncResolveResult{Value: val, Error: err}
	}
	return results
}

func (m *MockRuntime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	m.mu.Lock()
	f := m.typeResolver
	m.mu.Unlock()
	if f == nil {
		return "", fmt.Errorf("type resolver not configured")
	}
	return f(value)
}

func (m *MockRuntime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	m.mu.Lock()
	f := m.serializer
	m.mu.Unlock()
	if f == nil {
		return value, nil
	}
	return f(value, typeName)
}

// GetCalls returns a copy of the recorded calls in order.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls and counters (resolvers remain).
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.batchSeq = 0
}
