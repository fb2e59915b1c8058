package executor

import "errors"

// Location is a line/column position in the request document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLError represents an error that occurred during execution
type GraphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`

	// Err is the original error reported by a resolver, if any.
	Err error `json:"-"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

func (e GraphQLError) Unwrap() error {
	return e.Err
}

// ExecutionResult represents the result of executing a GraphQL query
type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// locatedErrors expands err into GraphQL errors at path. Joined errors become
// one entry each; a GraphQLError keeps its message, locations and extensions,
// and its own Path is taken as relative to path.
func locatedErrors(err error, path Path) []GraphQLError {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []GraphQLError
		for _, e := range joined.Unwrap() {
			out = append(out, locatedErrors(e, path)...)
		}
		return out
	}
	var ge GraphQLError
	if errors.As(err, &ge) {
		ge.Path = append(append(Path{}, path...), ge.Path...)
		return []GraphQLError{ge}
	}
	return []GraphQLError{{Message: err.Error(), Path: path, Err: err}}
}
