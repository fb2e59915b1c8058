// Package events declares what the gateway publishes on the eventbus while
// serving a request. Request and operation events pair up through the request
// id carried by the context; delegation events pair up through their ID.
package events

import "time"

// RequestStart is published when the HTTP handler accepts a request.
type RequestStart struct {
	Method string
	Path   string
}

// RequestFinish is published once the response status is known.
type RequestFinish struct {
	Status   int
	Duration time.Duration
}

// OperationStart is published before an operation of the gateway schema runs.
// Kind is query, mutation or subscription, and empty when the document names
// no runnable operation.
type OperationStart struct {
	Name string
	Kind string
}

// OperationFinish is published after execution, with the number of errors in
// the response.
type OperationFinish struct {
	Name       string
	Kind       string
	ErrorCount int
	Duration   time.Duration
}

// DelegationStart is published before a subrequest goes to a subschema.
// ID is unique per process.
type DelegationStart struct {
	ID            uint64
	Subschema     string
	FieldName     string
	OperationType string
}

// DelegationFinish is published after the subschema answered or failed.
type DelegationFinish struct {
	ID         uint64
	Subschema  string
	FieldName  string
	ErrorCount int
	Err        error
	Duration   time.Duration
}
