package core

import (
	"context"
	"net/http"
	"sync/atomic"
)

type internalKey struct{}

// WithInternal marks requests carrying ctx as generated by the surrounding
// application rather than by a client.
func WithInternal(ctx context.Context) context.Context {
	return context.WithValue(ctx, internalKey{}, true)
}

// IsInternal reports whether ctx was marked with WithInternal.
func IsInternal(ctx context.Context) bool {
	internal, _ := ctx.Value(internalKey{}).(bool)
	return internal
}

// Outcome is the terminal result of an Operation.
type Outcome struct {
	Err error

	// Status is the success status code. Location is set for redirects and
	// Body holds a value to encode as JSON.
	Status   int
	Location string
	Body     any
}

// Failed returns an Outcome carrying err.
func Failed(err error) Outcome {
	return Outcome{Err: err}
}

// Redirect returns an Outcome redirecting to location.
func Redirect(status int, location string) Outcome {
	return Outcome{Status: status, Location: location}
}

// Respond returns an Outcome rendering body as JSON.
func Respond(status int, body any) Outcome {
	return Outcome{Status: status, Body: body}
}

// NoContent returns an empty success Outcome.
func NoContent() Outcome {
	return Outcome{Status: http.StatusNoContent}
}

// Operation is the state of one request handled by the bucket.
type Operation struct {
	Kind     string
	Method   string
	Path     string
	Key      string
	Referer  string
	Internal bool
	Request  *http.Request

	completed atomic.Bool
	done      func(Outcome)
}

// NewOperation creates the Operation for r. done is called exactly once, by
// the first call to Complete.
func NewOperation(r *http.Request, key string, done func(Outcome)) *Operation {
	return &Operation{
		Method:   r.Method,
		Path:     r.URL.Path,
		Key:      key,
		Referer:  r.Header.Get("Referer"),
		Internal: IsInternal(r.Context()),
		Request:  r,
		done:     done,
	}
}

// Complete finishes the operation with o. Only the first call has any
// effect; it reports whether this call was the one that completed it.
func (op *Operation) Complete(o Outcome) bool {
	if !op.completed.CompareAndSwap(false, true) {
		return false
	}
	if op.done != nil {
		op.done(o)
	}
	return true
}

// Completed reports whether Complete has been called.
func (op *Operation) Completed() bool {
	return op.completed.Load()
}
