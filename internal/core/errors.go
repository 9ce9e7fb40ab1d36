package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured fails every request when the bucket or its
	// credentials are missing.
	ErrNotConfigured = errors.New("missing storage configuration")

	// ErrInvalidKey is returned when a request path does not map to a
	// usable object key.
	ErrInvalidKey = errors.New("invalid object key")

	// ErrNoFiles is wrapped in a ParseError when a form carries no file
	// parts.
	ErrNoFiles = errors.New("no file parts")
)

// ParseError reports a malformed request body.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse request body: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
