// Package hooks implements the named extension points that run before and
// after bucket operations.
package hooks

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eteran/bucketd/internal/storage"
)

// Slot names a hook point.
type Slot string

const (
	// Uploading runs before an object is stored.
	Uploading Slot = "uploading"
	// Uploaded runs after a store attempt, successful or not.
	Uploaded Slot = "uploaded"
	// Get runs before a read redirect is issued.
	Get Slot = "get"
	// Delete runs before an object is removed.
	Delete Slot = "delete"
)

// Slots lists every hook point in a stable order.
var Slots = []Slot{Uploading, Uploaded, Get, Delete}

// ParseSlot validates a slot name.
func ParseSlot(name string) (Slot, error) {
	for _, s := range Slots {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown hook slot %q", name)
}

// Domain is the data handed to a hook. Hooks may change Key during the
// uploading slot to store the object somewhere else.
type Domain struct {
	Method      string
	Path        string
	Key         string
	FileName    string
	FileSize    int64
	ContentType string

	// Response and Err describe the store attempt. They are only set for the
	// uploaded slot. The response body has already been consumed.
	Response *storage.Response
	Err      error
}

// Hook is a single handler bound to a slot.
type Hook interface {
	Run(ctx context.Context, slot Slot, d *Domain) error
}

// Func adapts a function to the Hook interface.
type Func func(ctx context.Context, slot Slot, d *Domain) error

func (f Func) Run(ctx context.Context, slot Slot, d *Domain) error {
	return f(ctx, slot, d)
}

// Chain runs hooks in order and stops at the first error.
type Chain []Hook

func (c Chain) Run(ctx context.Context, slot Slot, d *Domain) error {
	for _, h := range c {
		if err := h.Run(ctx, slot, d); err != nil {
			return err
		}
	}
	return nil
}

// Error wraps the failure of a hook bound to Slot.
type Error struct {
	Slot Slot
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s hook: %v", e.Slot, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RejectError is returned by hooks that refuse an operation with a specific
// HTTP status.
type RejectError struct {
	Status  int
	Message string
}

// Reject creates a RejectError.
func Reject(status int, message string) *RejectError {
	return &RejectError{Status: status, Message: message}
}

func (e *RejectError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// HTTPStatus reports the status a rejected request should be answered with.
func (e *RejectError) HTTPStatus() int {
	return e.Status
}
