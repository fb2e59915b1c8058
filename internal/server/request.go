package server

import (
	"io"
	"mime"
	"net/http"

	"github.com/goccy/go-json"
)

// Request is one GraphQL-over-HTTP request.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

type requestError struct {
	status  int
	message string
}

func badRequest(message string) *requestError {
	return &requestError{status: http.StatusBadRequest, message: message}
}

// parseRequest reads a GET query string or a POST JSON body. A POST body that
// is a JSON array is a batch; batched reports whether it was one.
func parseRequest(r *http.Request, maxBody int64) (reqs []Request, batched bool, rerr *requestError) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req := Request{Query: q.Get("query"), OperationName: q.Get("operationName"), Variables: map[string]any{}}
		if req.Query == "" {
			return nil, false, badRequest("missing 'query'")
		}
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				return nil, false, badRequest("invalid 'variables' JSON")
			}
		}
		return []Request{req}, false, nil
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return nil, false, badRequest("unsupported Content-Type")
		}
	}
	defer r.Body.Close()
	body := io.Reader(r.Body)
	if maxBody > 0 {
		body = io.LimitReader(r.Body, maxBody+1)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, false, badRequest("failed to read body")
	}
	if maxBody > 0 && int64(len(raw)) > maxBody {
		return nil, false, &requestError{status: http.StatusRequestEntityTooLarge, message: "body too large"}
	}

	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &reqs); err != nil {
			return nil, false, badRequest("invalid JSON")
		}
		if len(reqs) == 0 {
			return nil, false, badRequest("empty batch")
		}
		batched = true
	} else {
		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, false, badRequest("invalid JSON")
		}
		reqs = []Request{req}
	}
	for i := range reqs {
		if reqs[i].Query == "" {
			return nil, false, badRequest("missing 'query'")
		}
		if reqs[i].Variables == nil {
			reqs[i].Variables = map[string]any{}
		}
	}
	return reqs, batched, nil
}
