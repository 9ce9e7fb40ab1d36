package core

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/eteran/bucketd/internal/form"
	"github.com/eteran/bucketd/internal/hooks"
	"github.com/eteran/bucketd/internal/metrics"
	"github.com/eteran/bucketd/internal/storage"
)

// countingReader counts the bytes read and fails once more than max bytes
// were read.
type countingReader struct {
	r   io.Reader
	n   int64
	max int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.max > 0 && c.n > c.max {
		return n, form.ErrFileTooLarge
	}
	return n, err
}

// handleUpload streams the request body to the object named by the request
// path.
func (s *Server) handleUpload(ctx context.Context, op *Operation) {
	r := op.Request

	if !validKey(op.Key) {
		op.Complete(Failed(ErrInvalidKey))
		return
	}

	if s.cfg.MaxFileSize > 0 && r.ContentLength > s.cfg.MaxFileSize {
		op.Complete(Failed(form.ErrFileTooLarge))
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	d := &hooks.Domain{
		Method:      op.Method,
		Path:        op.Path,
		Key:         op.Key,
		FileName:    path.Base(op.Key),
		FileSize:    r.ContentLength,
		ContentType: contentType,
	}

	if err := s.runHook(ctx, hooks.Uploading, d); err != nil {
		op.Complete(Failed(err))
		return
	}

	if !validKey(d.Key) {
		op.Complete(Failed(ErrInvalidKey))
		return
	}

	body := &countingReader{r: r.Body, max: s.cfg.MaxFileSize}
	resp, err := s.engine.PutStream(ctx, body, d.Key, storage.Metadata{
		ContentLength: r.ContentLength,
		ContentType:   contentType,
		ACL:           storage.ACLPublicRead,
	})
	err = storage.Check(resp, err)
	if err == nil {
		metrics.ObserveUpload(body.n)
		slog.Info("Stored object", "key", d.Key, "size", body.n)
	}

	if err := s.afterUpload(ctx, d, resp, err); err != nil {
		op.Complete(Failed(err))
		return
	}

	op.Complete(Respond(http.StatusOK, File{
		FileName: d.FileName,
		FileSize: body.n,
		Key:      d.Key,
	}))
}
