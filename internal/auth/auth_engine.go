package auth

import (
	"context"
	"net/http"
)

type User struct {
	Name string
}

type AuthEngine interface {

	// AuthenticateRequest inspects the given HTTP request for valid
	// authentication credentials. If valid, it returns a User object;
	// otherwise, it returns nil. An error is returned if there was an issue
	// processing the authentication.
	AuthenticateRequest(ctx context.Context, rq *http.Request) (*User, error)
}

// CompoundAuthEngine accepts a request when any of its engines does.
type CompoundAuthEngine struct {
	engines []AuthEngine
}

// NewCompoundAuthEngine creates a new CompoundAuthEngine with the given AuthEngines.
func NewCompoundAuthEngine(engines ...AuthEngine) *CompoundAuthEngine {
	return &CompoundAuthEngine{
		engines: engines,
	}
}

// AuthenticateRequest returns the user of the first engine that accepts the
// request, nil otherwise.
func (e *CompoundAuthEngine) AuthenticateRequest(ctx context.Context, r *http.Request) (*User, error) {
	for _, engine := range e.engines {
		if user, err := engine.AuthenticateRequest(ctx, r); user != nil && err == nil {
			return user, nil
		}
	}

	return nil, nil
}
