// Package otel exports gateway traces over OTLP/gRPC. Spans are opened and
// closed from eventbus events: one per HTTP request, one per operation and one
// per subschema delegation, nested in that order.
package otel

import (
	"context"
	"strconv"
	"sync"

	eventbus "github.com/hanpama/gqlwrap/internal/eventbus"
	events "github.com/hanpama/gqlwrap/internal/events"
	reqid "github.com/hanpama/gqlwrap/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup installs a batching OTLP tracer provider for endpoint and subscribes
// span handlers to the current eventbus. An empty endpoint disables tracing.
// The returned function flushes and stops the exporter.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(service))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	(&subscriber{tracer: tp.Tracer("gqlwrap")}).register()
	return tp.Shutdown, nil
}

type spanKind uint8

const (
	requestSpan spanKind = iota
	operationSpan
	delegationSpan
)

type spanKey struct {
	kind spanKind
	id   string
}

type subscriber struct {
	tracer trace.Tracer
	spans  sync.Map // spanKey -> trace.Span
}

// open starts a span under the innermost open span of ctx's request.
func (s *subscriber) open(ctx context.Context, key spanKey, name string, attrs ...attribute.KeyValue) {
	rid, _ := reqid.FromContext(ctx)
	parent := ctx
	for kind := key.kind; kind > requestSpan; {
		kind--
		if v, ok := s.spans.Load(spanKey{kind, rid}); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
			break
		}
	}
	_, span := s.tracer.Start(parent, name, trace.WithAttributes(attrs...))
	s.spans.Store(key, span)
}

func (s *subscriber) close(key spanKey, err error, attrs ...attribute.KeyValue) {
	v, ok := s.spans.LoadAndDelete(key)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func requestKey(ctx context.Context, kind spanKind) spanKey {
	rid, _ := reqid.FromContext(ctx)
	return spanKey{kind, rid}
}

func delegationKey(id uint64) spanKey {
	return spanKey{delegationSpan, strconv.FormatUint(id, 10)}
}

func (s *subscriber) register() {
	eventbus.Subscribe(func(ctx context.Context, e events.RequestStart) {
		s.open(ctx, requestKey(ctx, requestSpan), "http.request",
			semconv.HTTPMethodKey.String(e.Method),
			attribute.String("http.target", e.Path))
	})
	eventbus.Subscribe(func(ctx context.Context, e events.RequestFinish) {
		s.close(requestKey(ctx, requestSpan), nil, semconv.HTTPStatusCodeKey.Int(e.Status))
	})

	eventbus.Subscribe(func(ctx context.Context, e events.OperationStart) {
		s.open(ctx, requestKey(ctx, operationSpan), "graphql.operation",
			attribute.String("graphql.operation.name", e.Name),
			attribute.String("graphql.operation.type", e.Kind))
	})
	eventbus.Subscribe(func(ctx context.Context, e events.OperationFinish) {
		s.close(requestKey(ctx, operationSpan), nil, attribute.Int("graphql.error_count", e.ErrorCount))
	})

	eventbus.Subscribe(func(ctx context.Context, e events.DelegationStart) {
		s.open(ctx, delegationKey(e.ID), "graphql.delegate",
			attribute.String("gqlwrap.subschema", e.Subschema),
			attribute.String("graphql.field.name", e.FieldName),
			attribute.String("graphql.operation.type", e.OperationType))
	})
	eventbus.Subscribe(func(ctx context.Context, e events.DelegationFinish) {
		s.close(delegationKey(e.ID), e.Err, attribute.Int("graphql.error_count", e.ErrorCount))
	})
}
