package storage

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// ACLPublicRead is the canned ACL applied to every uploaded object.
const ACLPublicRead = "public-read"

// StorageEngine is the view of a remote object store used by the upload and
// delete coordinators. Every method reports what the store answered as a
// Response; a non-nil error is returned only when no answer was received at
// all (transport failure, cancelled context, unreadable source file).
type StorageEngine interface {
	// PutFile uploads the file found at localPath and stores it under key.
	PutFile(ctx context.Context, localPath string, key string, meta Metadata) (*Response, error)

	// PutStream uploads everything read from r and stores it under key.
	// meta.ContentLength is -1 when the length is not known up front.
	PutStream(ctx context.Context, r io.Reader, key string, meta Metadata) (*Response, error)

	// DeleteObject removes the object stored under key.
	DeleteObject(ctx context.Context, key string) (*Response, error)
}

// Metadata carries the headers sent along with an uploaded object.
type Metadata struct {
	ContentLength int64
	ContentType   string
	ACL           string
}

// Response is the status and body returned by the object store for a single
// operation. Callers own Body and must close it.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// newResponse builds a Response with a plain text body.
func newResponse(status int, message string) *Response {
	body := io.NopCloser(strings.NewReader(message))
	if message == "" {
		body = http.NoBody
	}
	return &Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       body,
	}
}

// isValidObjectKey enforces basic S3 object key constraints: non-empty,
// at most 1024 bytes, and no control characters.
func isValidObjectKey(key string) bool {
	if len(key) == 0 || len(key) > 1024 {
		return false
	}

	return !strings.ContainsFunc(key, func(c rune) bool {
		return c < 0x20 || c == 0x7f
	})
}

// ValidKey reports whether key can be used as an object key.
func ValidKey(key string) bool {
	return isValidObjectKey(key)
}
