package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"

	"github.com/eteran/bucketd/internal/form"
	"github.com/eteran/bucketd/internal/hooks"
	"github.com/eteran/bucketd/internal/metrics"
	"github.com/eteran/bucketd/internal/storage"

	"golang.org/x/sync/errgroup"
)

// handleMultipart stores every file part of a multipart form. Each file runs
// its own pipeline of uploading hook, transfer and uploaded hook. The first
// failure completes the operation and cancels the remaining pipelines. When
// every pipeline succeeded the operation redirects to the referer or returns
// the stored files.
func (s *Server) handleMultipart(ctx context.Context, op *Operation) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)

	events := form.ParseRequest(ctx, op.Request, form.Options{
		TempDir:     s.cfg.TempDir,
		MaxFileSize: s.cfg.MaxFileSize,
	})

	j := &join{}

	// Keep receiving until the parser closes the channel so it never reads
	// the body after the handler returned.
	for ev := range events {
		if ev.Err != nil {
			op.Complete(Failed(&ParseError{Err: ev.Err}))
			cancel()
			continue
		}

		file := ev.File
		if ctx.Err() != nil {
			_ = file.Remove()
			continue
		}

		j.add()
		metrics.FilesInFlight.Inc()

		eg.Go(func() error {
			defer metrics.FilesInFlight.Dec()
			defer func() {
				if err := file.Remove(); err != nil {
					slog.Warn("Failed to remove temporary file", "path", file.Path, "error", err)
				}
			}()

			rec, err := s.uploadFile(ctx, op, file)
			if err != nil {
				op.Complete(Failed(err))
				j.done(nil)
				return err
			}

			if records, ready := j.done(rec); ready {
				s.finishMultipart(op, records)
			}
			return nil
		})
	}

	switch {
	case op.Completed():
	case ctx.Err() != nil:
		op.Complete(Failed(ctx.Err()))
	case j.empty():
		op.Complete(Failed(&ParseError{Err: ErrNoFiles}))
	default:
		if records, ready := j.close(); ready {
			s.finishMultipart(op, records)
		}
	}

	_ = eg.Wait()
}

// finishMultipart completes a multipart operation whose files were all
// stored.
func (s *Server) finishMultipart(op *Operation, records []File) {
	if op.Referer != "" {
		op.Complete(Redirect(http.StatusSeeOther, op.Referer))
		return
	}

	if records == nil {
		records = []File{}
	}
	op.Complete(Respond(http.StatusOK, records))
}

// uploadFile runs the pipeline of a single file part.
func (s *Server) uploadFile(ctx context.Context, op *Operation, file *form.File) (*File, error) {
	key := path.Join(op.Key, file.Name)
	if !validKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	d := &hooks.Domain{
		Method:      op.Method,
		Path:        op.Path,
		Key:         key,
		FileName:    file.Name,
		FileSize:    file.Size,
		ContentType: file.ContentType,
	}

	if err := s.runHook(ctx, hooks.Uploading, d); err != nil {
		return nil, err
	}

	if !validKey(d.Key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, d.Key)
	}

	resp, err := s.engine.PutFile(ctx, file.Path, d.Key, storage.Metadata{
		ContentLength: file.Size,
		ContentType:   file.ContentType,
		ACL:           storage.ACLPublicRead,
	})
	err = storage.Check(resp, err)
	if err == nil {
		metrics.ObserveUpload(file.Size)
		slog.Info("Stored object", "key", d.Key, "size", file.Size)
	}

	if err := s.afterUpload(ctx, d, resp, err); err != nil {
		return nil, err
	}

	return &File{
		FileName: file.Name,
		FileSize: file.Size,
		Key:      d.Key,
	}, nil
}
