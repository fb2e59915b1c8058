package delegate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	executor "github.com/hanpama/gqlwrap/internal/executor"
	language "github.com/hanpama/gqlwrap/internal/language"
	reqid "github.com/hanpama/gqlwrap/internal/reqid"
	schema "github.com/hanpama/gqlwrap/internal/schema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Executor runs a request against a subschema. A returned error means no
// result was obtained at all; field errors travel inside the result.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*executor.ExecutionResult, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req *Request) (*executor.ExecutionResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, req *Request) (*executor.ExecutionResult, error) {
	return f(ctx, req)
}

// LocalExecutor runs requests in process.
type LocalExecutor struct {
	exec      *executor.Executor
	rootValue any
}

func NewLocalExecutor(runtime executor.Runtime, s *schema.Schema) *LocalExecutor {
	return &LocalExecutor{exec: executor.NewExecutor(runtime, s)}
}

// WithRootValue sets the source value handed to root field resolvers.
func (e *LocalExecutor) WithRootValue(v any) *LocalExecutor {
	e.rootValue = v
	return e
}

func (e *LocalExecutor) Execute(ctx context.Context, req *Request) (*executor.ExecutionResult, error) {
	return e.exec.ExecuteRequest(ctx, req.Document, req.OperationName, req.Variables, e.rootValue), nil
}

type forwardedHeadersKey struct{}

// WithForwardedHeaders stores incoming headers that HTTP subschema executors
// copy onto their outgoing requests.
func WithForwardedHeaders(ctx context.Context, h http.Header) context.Context {
	return context.WithValue(ctx, forwardedHeadersKey{}, h)
}

// ForwardedHeaders returns the headers stored by WithForwardedHeaders.
func ForwardedHeaders(ctx context.Context) http.Header {
	h, _ := ctx.Value(forwardedHeadersKey{}).(http.Header)
	return h
}

// HTTPExecutor posts requests to a remote GraphQL endpoint as JSON.
type HTTPExecutor struct {
	endpoint string
	client   *http.Client
	headers  http.Header
}

type HTTPOption func(*HTTPExecutor)

// WithHTTPClient replaces the client. Its transport is used as is.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(e *HTTPExecutor) { e.client = c }
}

func WithTimeout(d time.Duration) HTTPOption {
	return func(e *HTTPExecutor) { e.client.Timeout = d }
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(e *HTTPExecutor) { e.headers.Add(key, value) }
}

func NewHTTPExecutor(endpoint string, opts ...HTTPOption) *HTTPExecutor {
	e := &HTTPExecutor{
		endpoint: endpoint,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		headers: http.Header{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type httpRequestBody struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

type httpResponseBody struct {
	Data   any                     `json:"data"`
	Errors []executor.GraphQLError `json:"errors"`
}

func (e *HTTPExecutor) Execute(ctx context.Context, req *Request) (*executor.ExecutionResult, error) {
	body, err := json.Marshal(httpRequestBody{
		Query:         language.PrintQuery(req.Document),
		OperationName: req.OperationName,
		Variables:     req.Variables,
		Extensions:    req.Extensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range ForwardedHeaders(ctx) {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range e.headers {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	if rid, ok := reqid.FromContext(ctx); ok {
		httpReq.Header.Set(reqid.Header, rid)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out httpResponseBody
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		if resp.StatusCode/100 != 2 {
			return nil, fmt.Errorf("%s returned %s", e.endpoint, resp.Status)
		}
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out.Data == nil && len(out.Errors) == 0 && resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%s returned %s", e.endpoint, resp.Status)
	}
	for i := range out.Errors {
		out.Errors[i].Path = normalizePath(out.Errors[i].Path)
	}
	return &executor.ExecutionResult{Data: out.Data, Errors: out.Errors}, nil
}

// normalizePath turns JSON numbers in a decoded path back into list indices.
func normalizePath(p executor.Path) executor.Path {
	for i, seg := range p {
		switch v := seg.(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				p[i] = int(n)
			}
		case float64:
			p[i] = int(v)
		}
	}
	return p
}
