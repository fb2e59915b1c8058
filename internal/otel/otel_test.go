package otel

import (
	"context"
	"errors"
	"testing"

	eventbus "github.com/hanpama/gqlwrap/internal/eventbus"
	events "github.com/hanpama/gqlwrap/internal/events"
	reqid "github.com/hanpama/gqlwrap/internal/reqid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDelegationSpans(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	sub := &subscriber{tracer: tp.Tracer("test")}
	sub.register()

	ctx, _ := reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.OperationStart{Name: "Q", Kind: "query"})
	eventbus.Publish(ctx, events.DelegationStart{ID: 1, Subschema: "users", FieldName: "user", OperationType: "query"})
	eventbus.Publish(ctx, events.DelegationStart{ID: 2, Subschema: "users", FieldName: "users", OperationType: "query"})
	eventbus.Publish(ctx, events.DelegationFinish{ID: 2, Subschema: "users", FieldName: "users", Err: errors.New("down")})
	eventbus.Publish(ctx, events.DelegationFinish{ID: 1, Subschema: "users", FieldName: "user", ErrorCount: 1})
	eventbus.Publish(ctx, events.OperationFinish{Name: "Q", Kind: "query"})

	ended := rec.Ended()
	require.Len(t, ended, 3)
	require.Equal(t, "graphql.delegate", ended[0].Name())
	require.Equal(t, codes.Error, ended[0].Status().Code)
	require.Equal(t, "graphql.delegate", ended[1].Name())
	require.Equal(t, codes.Unset, ended[1].Status().Code)
	require.Equal(t, "graphql.operation", ended[2].Name())
	require.Equal(t, ended[2].SpanContext().SpanID(), ended[0].Parent().SpanID())
}

func TestRequestSpanParentsOperation(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	(&subscriber{tracer: tp.Tracer("test")}).register()

	ctx, _ := reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.RequestStart{Method: "POST", Path: "/graphql"})
	eventbus.Publish(ctx, events.OperationStart{Kind: "query"})
	eventbus.Publish(ctx, events.DelegationStart{ID: 7, Subschema: "users"})
	eventbus.Publish(ctx, events.DelegationFinish{ID: 7, Subschema: "users"})
	eventbus.Publish(ctx, events.OperationFinish{Kind: "query", ErrorCount: 2})
	eventbus.Publish(ctx, events.RequestFinish{Status: 200})

	ended := rec.Ended()
	require.Len(t, ended, 3)
	require.Equal(t, "http.request", ended[2].Name())
	require.Equal(t, ended[2].SpanContext().SpanID(), ended[1].Parent().SpanID())
	require.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup("", "gqlwrap")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
