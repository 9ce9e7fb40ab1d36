package core

import (
	"context"
	"log/slog"
	"net/http"
	"path"

	"github.com/eteran/bucketd/internal/hooks"
	"github.com/eteran/bucketd/internal/storage"
)

// handleGet redirects to the public URL of the object. Nothing is proxied.
func (s *Server) handleGet(ctx context.Context, op *Operation) {
	d := &hooks.Domain{
		Method:   op.Method,
		Path:     op.Path,
		Key:      op.Key,
		FileName: path.Base(op.Key),
	}

	if err := s.runHook(ctx, hooks.Get, d); err != nil {
		op.Complete(Failed(err))
		return
	}

	op.Complete(Redirect(http.StatusFound, s.cfg.ObjectURL(d.Key)))
}

// handleDelete removes the object named by the request path.
func (s *Server) handleDelete(ctx context.Context, op *Operation) {
	if !validKey(op.Key) {
		op.Complete(Failed(ErrInvalidKey))
		return
	}

	d := &hooks.Domain{
		Method:   op.Method,
		Path:     op.Path,
		Key:      op.Key,
		FileName: path.Base(op.Key),
	}

	if err := s.runHook(ctx, hooks.Delete, d); err != nil {
		op.Complete(Failed(err))
		return
	}

	resp, err := s.engine.DeleteObject(ctx, d.Key)
	if err := storage.Check(resp, err, http.StatusOK, http.StatusAccepted, http.StatusNoContent); err != nil {
		op.Complete(Failed(err))
		return
	}

	slog.Info("Deleted object", "key", d.Key)
	op.Complete(NoContent())
}
