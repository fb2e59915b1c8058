package config

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/vektah/gqlparser/v2/ast"

	delegate "github.com/hanpama/gqlwrap/internal/delegate"
	schema "github.com/hanpama/gqlwrap/internal/schema"
	transforms "github.com/hanpama/gqlwrap/internal/transforms"
)

// BuildSubschemas turns the configured subschemas into delegation targets
// backed by HTTP executors.
func BuildSubschemas(ctx context.Context, cfg *Config) ([]*delegate.SubschemaConfig, error) {
	out := make([]*delegate.SubschemaConfig, 0, len(cfg.Subschemas))
	for _, sc := range cfg.Subschemas {
		s, err := cfg.loadSchema(ctx, sc)
		if err != nil {
			return nil, fmt.Errorf("subschema %q: %w", sc.Name, err)
		}
		ts, err := hoistTransforms(sc.Hoist)
		if err != nil {
			return nil, fmt.Errorf("subschema %q: %w", sc.Name, err)
		}

		timeout, _ := time.ParseDuration(sc.Timeout)
		opts := []delegate.HTTPOption{delegate.WithTimeout(timeout)}
		keys := make([]string, 0, len(sc.Headers))
		for k := range sc.Headers {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			opts = append(opts, delegate.WithHeader(k, sc.Headers[k]))
		}

		out = append(out, &delegate.SubschemaConfig{
			Name:       sc.Name,
			Schema:     s,
			Executor:   delegate.NewHTTPExecutor(sc.Endpoint, opts...),
			Transforms: ts,
		})
		slog.Info("Loaded subschema", "name", sc.Name, "endpoint", sc.Endpoint, "hoists", len(ts))
	}
	return out, nil
}

// hoistTransforms builds one HoistField per entry. Hoists onto the same type
// without an explicit alias get numbered aliases so their response keys do
// not collide.
func hoistTransforms(hoists []HoistConfig) ([]delegate.Transform, error) {
	perType := map[string]int{}
	out := make([]delegate.Transform, 0, len(hoists))
	for _, h := range hoists {
		var opts []transforms.HoistOption
		path := make([]transforms.PathSegment, len(h.Path))
		for i, seg := range h.Path {
			path[i] = transforms.PathSegment{FieldName: seg.Field}
			switch {
			case seg.Args == nil:
			case i == len(h.Path)-1:
				opts = append(opts, transforms.WithArgFilter(argNames(seg.Args)))
			default:
				path[i].ArgFilter = argNames(seg.Args)
			}
		}

		alias := h.Alias
		if alias == "" {
			if n := perType[h.Type]; n > 0 {
				alias = transforms.DefaultAlias + strconv.Itoa(n)
			}
			perType[h.Type]++
		}
		if alias != "" {
			opts = append(opts, transforms.WithAlias(alias))
		}

		hf, err := transforms.NewHoistField(h.Type, path, h.NewField, opts...)
		if err != nil {
			return nil, err
		}
		slog.Debug("Configured hoist", "hoist", hf.String(), "alias", hf.Alias())
		out = append(out, hf)
	}
	return out, nil
}

func argNames(names []string) func(*schema.InputValue) bool {
	return func(arg *schema.InputValue) bool { return slices.Contains(names, arg.Name) }
}

func (c *Config) loadSchema(ctx context.Context, sc SubschemaConfig) (*schema.Schema, error) {
	if len(sc.SchemaFiles) == 0 {
		sdl, err := fetchSDL(ctx, sc.Endpoint, sc.Retry)
		if err != nil {
			return nil, err
		}
		return schema.BuildFromSources(&ast.Source{Name: sc.Endpoint, Input: sdl})
	}
	sources := make([]*ast.Source, 0, len(sc.SchemaFiles))
	for _, f := range sc.SchemaFiles {
		path := c.resolve(f)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
		}
		sources = append(sources, &ast.Source{Name: path, Input: string(data)})
	}
	return schema.BuildFromSources(sources...)
}

type serviceSDLResponse struct {
	Data struct {
		Service struct {
			SDL string `json:"sdl"`
		} `json:"_service"`
	} `json:"data"`
}

// fetchSDL asks endpoint for its SDL with { _service { sdl } }.
func fetchSDL(ctx context.Context, endpoint string, retry RetryConfig) (string, error) {
	timeout, _ := time.ParseDuration(retry.Timeout)
	client := &http.Client{Timeout: timeout}
	body := []byte(`{"query":"{_service{sdl}}"}`)

	var lastErr error
	for attempt := 1; attempt <= max(retry.Attempts, 1); attempt++ {
		sdl, err := doFetchSDL(ctx, client, endpoint, body)
		if err == nil {
			return sdl, nil
		}
		lastErr = err
		slog.WarnContext(ctx, "SDL fetch failed", "endpoint", endpoint, "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("failed to fetch SDL from %s after %d attempt(s): %w", endpoint, max(retry.Attempts, 1), lastErr)
}

func doFetchSDL(ctx context.Context, client *http.Client, endpoint string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, endpoint)
	}
	var svc serviceSDLResponse
	if err := json.NewDecoder(resp.Body).Decode(&svc); err != nil {
		return "", fmt.Errorf("failed to decode SDL response: %w", err)
	}
	if svc.Data.Service.SDL == "" {
		return "", fmt.Errorf("empty SDL from %s", endpoint)
	}
	return svc.Data.Service.SDL, nil
}
