package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	delegate "github.com/hanpama/gqlwrap/internal/delegate"
	eventbus "github.com/hanpama/gqlwrap/internal/eventbus"
	events "github.com/hanpama/gqlwrap/internal/events"
	executor "github.com/hanpama/gqlwrap/internal/executor"
	language "github.com/hanpama/gqlwrap/internal/language"
	reqid "github.com/hanpama/gqlwrap/internal/reqid"
	schema "github.com/hanpama/gqlwrap/internal/schema"
)

// Handler serves the gateway schema over HTTP. Subschema requests made while
// handling a request carry its request id and forwarded headers.
type Handler struct {
	exec *executor.Executor
	opt  Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// ForwardHeaders lists incoming HTTP headers copied onto subschema
	// requests. Header names are case-insensitive. Default is none.
	ForwardHeaders []string

	// GraphiQL enables the in-browser IDE when true.
	GraphiQL bool
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithForwardHeaders(headers ...string) Option {
	return func(o *Options) { o.ForwardHeaders = headers }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

func WithGraphiQL(enable bool) Option { return func(o *Options) { o.GraphiQL = enable } }

// New creates a handler executing against s with runtime.
func New(runtime executor.Runtime, s *schema.Schema, opts ...Option) (*Handler, error) {
	exec := executor.NewExecutor(runtime, s)
	op := Options{Timeout: 10 * time.Second, GraphiQL: true}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{exec: exec, opt: op}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	ctx, rid := reqid.WithID(ctx, r.Header.Get(reqid.Header))
	w.Header().Set(reqid.Header, rid)

	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.RequestStart{Method: r.Method, Path: r.URL.Path})
	defer func() {
		eventbus.Publish(ctx, events.RequestFinish{Status: status, Duration: time.Since(start)})
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}
	switch {
	case r.Method == http.MethodOptions:
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	case r.Method != http.MethodPost && r.Method != http.MethodGet:
		status = http.StatusMethodNotAllowed
		h.write(w, status, messageResult("method not allowed"))
		return
	case r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	reqs, batched, rerr := parseRequest(r, h.opt.MaxBodyBytes)
	if rerr != nil {
		status = rerr.status
		h.write(w, status, messageResult(rerr.message))
		return
	}
	ctx = h.forward(ctx, r.Header)

	if !batched {
		h.write(w, status, h.executeOne(ctx, reqs[0]))
		return
	}
	results := make([]*executor.ExecutionResult, len(reqs))
	for i, req := range reqs {
		results[i] = h.executeOne(ctx, req)
	}
	h.write(w, status, results)
}

// forward attaches the configured incoming headers for subschema requests.
func (h *Handler) forward(ctx context.Context, header http.Header) context.Context {
	if len(h.opt.ForwardHeaders) == 0 {
		return ctx
	}
	forwarded := http.Header{}
	for _, name := range h.opt.ForwardHeaders {
		if vs := header.Values(name); len(vs) > 0 {
			forwarded[http.CanonicalHeaderKey(name)] = vs
		}
	}
	return delegate.WithForwardedHeaders(ctx, forwarded)
}

func (h *Handler) executeOne(ctx context.Context, req Request) *executor.ExecutionResult {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		slog.DebugContext(ctx, "Rejected query", "error", err)
		return errorResult(err)
	}

	kind := operationKind(doc, req.OperationName)
	start := time.Now()
	eventbus.Publish(ctx, events.OperationStart{Name: req.OperationName, Kind: kind})
	result := h.exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, nil)
	eventbus.Publish(ctx, events.OperationFinish{
		Name:       req.OperationName,
		Kind:       kind,
		ErrorCount: len(result.Errors),
		Duration:   time.Since(start),
	})
	if len(result.Errors) > 0 {
		slog.DebugContext(ctx, "Executed with errors", "operation", req.OperationName, "errors", len(result.Errors))
	}
	return result
}

func operationKind(doc *language.QueryDocument, name string) string {
	op := doc.Operations.ForName(name)
	if op == nil && len(doc.Operations) == 1 {
		op = doc.Operations[0]
	}
	if op == nil {
		return ""
	}
	return string(op.Operation)
}
