// Package form streams the file parts of a multipart/form-data body to
// temporary files.
package form

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotMultipart is reported when the request is not a multipart form.
	ErrNotMultipart = errors.New("request is not multipart/form-data")

	// ErrFileTooLarge is reported when a part exceeds Options.MaxFileSize.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
)

// File describes one file part written to a temporary location.
type File struct {
	Field       string
	Name        string
	Size        int64
	ContentType string
	Path        string
}

// Remove deletes the temporary file.
func (f *File) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Event carries either a discovered file or the error that ended parsing.
type Event struct {
	File *File
	Err  error
}

// Options controls parsing.
type Options struct {
	// TempDir receives the part files. Empty means os.TempDir().
	TempDir string

	// MaxFileSize limits each file part. Zero or less means unlimited.
	MaxFileSize int64
}

// Boundary extracts the multipart boundary from a Content-Type header.
func Boundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotMultipart, err)
	}
	if mediaType != "multipart/form-data" {
		return "", ErrNotMultipart
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", fmt.Errorf("%w: missing boundary", ErrNotMultipart)
	}
	return boundary, nil
}

// ParseRequest is Parse for the body of r.
func ParseRequest(ctx context.Context, r *http.Request, opts Options) <-chan Event {
	boundary, err := Boundary(r.Header.Get("Content-Type"))
	if err != nil {
		events := make(chan Event, 1)
		events <- Event{Err: err}
		close(events)
		return events
	}
	return Parse(ctx, r.Body, boundary, opts)
}

// Parse reads body in a new goroutine and sends an Event for every file part
// in the order the parts appear. Fields without a file name are skipped. The
// channel is unbuffered so the next part is not read until the previous
// event has been received. Parsing stops after the first error event or when
// ctx is done, and the channel is closed. The receiver owns the temporary
// file of every File it receives.
func Parse(ctx context.Context, body io.Reader, boundary string, opts Options) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				send(Event{Err: fmt.Errorf("read part: %w", err)})
				return
			}

			if part.FileName() == "" {
				_ = part.Close()
				continue
			}

			file, err := save(ctx, part, opts)
			_ = part.Close()
			if err != nil {
				send(Event{Err: err})
				return
			}

			if !send(Event{File: file}) {
				_ = file.Remove()
				return
			}
		}
	}()

	return events
}

// contextReader fails reads once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// save copies one part to a new temporary file. The copy stops when ctx is
// done.
func save(ctx context.Context, part *multipart.Part, opts Options) (*File, error) {
	dir := opts.TempDir
	if dir == "" {
		dir = os.TempDir()
	}

	name := filepath.Base(strings.ReplaceAll(part.FileName(), "\\", "/"))
	file := &File{
		Field:       part.FormName(),
		Name:        name,
		ContentType: part.Header.Get("Content-Type"),
		Path:        filepath.Join(dir, "bucketd-"+uuid.NewString()),
	}
	if file.ContentType == "" {
		file.ContentType = "application/octet-stream"
	}

	out, err := os.OpenFile(file.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	var src io.Reader = contextReader{ctx: ctx, r: part}
	if opts.MaxFileSize > 0 {
		src = io.LimitReader(src, opts.MaxFileSize+1)
	}

	n, err := io.Copy(out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil && opts.MaxFileSize > 0 && n > opts.MaxFileSize {
		err = fmt.Errorf("%w: %s", ErrFileTooLarge, name)
	}
	if err != nil {
		_ = file.Remove()
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("read part %q: %w", name, err)
	}

	file.Size = n
	return file, nil
}
