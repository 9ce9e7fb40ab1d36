package storage

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
)

// StatusError is returned when the object store answered with a status code
// the caller does not accept. Message holds the drained response body.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("storage responded with status %d: %s", e.StatusCode, e.Message)
}

// TransportError is returned when no response could be obtained from the
// object store.
type TransportError struct {
	Op  string
	Key string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Check converts the result of a StorageEngine call into a single error.
// A response is accepted when its status is one of accepted, or 200 when no
// statuses are given. Rejected responses have their body read fully and
// used as the error message. The response body is always closed.
func Check(resp *Response, err error, accepted ...int) error {
	if err != nil {
		return err
	}

	if resp == nil {
		return &TransportError{Op: "response", Err: fmt.Errorf("no response from storage")}
	}

	if len(accepted) == 0 {
		accepted = []int{http.StatusOK}
	}

	if resp.Body == nil {
		resp.Body = http.NoBody
	}
	defer resp.Body.Close()

	if slices.Contains(accepted, resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	message, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return &TransportError{Op: "read error body", Err: readErr}
	}

	text := strings.TrimSpace(string(message))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}

	return &StatusError{StatusCode: resp.StatusCode, Message: text}
}
