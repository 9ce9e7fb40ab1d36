// Package core serves an object storage bucket over HTTP and runs the hooks
// bound around every upload, read and delete.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/eteran/bucketd/internal/hooks"
	"github.com/eteran/bucketd/internal/metrics"
	"github.com/eteran/bucketd/internal/storage"
)

const (
	KindMultipart = "multipart"
	KindUpload    = "upload"
	KindGet       = "get"
	KindDelete    = "delete"

	// KindUnconfigured labels every request refused by an unconfigured
	// server, whatever its method.
	KindUnconfigured = "unconfigured"
)

// Server dispatches bucket requests to the upload, read and delete
// coordinators.
type Server struct {
	cfg        Config
	engine     storage.StorageEngine
	hooks      *hooks.Registry
	configured bool
}

// NewServer creates a Server. When cfg is not configured the server is still
// created but fails every request with ErrNotConfigured.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	cfg.Mount = normalizeMount(cfg.Mount)

	s := &Server{
		cfg:   cfg,
		hooks: cfg.Hooks,
	}

	if s.hooks == nil {
		s.hooks = hooks.NewRegistry(hooks.DefaultTimeout)
	}

	if !cfg.Configured() {
		slog.Warn("Bucket is not configured, every request will fail")
		return s, nil
	}

	s.engine = cfg.Engine
	if s.engine == nil {
		engine, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		s.engine = engine
	}

	s.configured = true
	return s, nil
}

// Configured reports whether requests can reach the bucket.
func (s *Server) Configured() bool {
	return s.configured
}

// Config returns the configuration the server was created with.
func (s *Server) Config() Config {
	return s.cfg
}

// Handler returns the bucket as a standalone http.Handler. Requests the
// bucket does not handle get a 404.
func (s *Server) Handler() http.Handler {
	return RequestID(LogRequest(Recoverer(SlashFix(s.Middleware(http.NotFoundHandler())))))
}

// Middleware handles bucket requests and passes everything else to next.
func (s *Server) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := s.keyFor(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		var op *Operation
		op = NewOperation(r, key, func(o Outcome) {
			metrics.ObserveOperation(op.Kind, o.Err)
			if o.Err != nil {
				slog.Warn("Operation failed",
					"kind", op.Kind,
					"key", op.Key,
					"request_id", RequestIDFromContext(r.Context()),
					"error", o.Err,
				)
			}
			render(w, r, o)
		})

		if !s.dispatch(r.Context(), op) {
			next.ServeHTTP(w, r)
		}
	})
}

// dispatch routes op to its coordinator. It reports false when the request
// is not handled by the bucket.
func (s *Server) dispatch(ctx context.Context, op *Operation) bool {
	if !s.configured {
		op.Kind = KindUnconfigured
		op.Complete(Failed(ErrNotConfigured))
		return true
	}

	switch op.Method {
	case http.MethodPost, http.MethodPut:
		if op.Method == http.MethodPost && !op.Internal && isMultipart(op.Request) {
			op.Kind = KindMultipart
			s.handleMultipart(ctx, op)
			return true
		}
		op.Kind = KindUpload
		s.handleUpload(ctx, op)
	case http.MethodGet:
		if op.Internal {
			return false
		}
		op.Kind = KindGet
		s.handleGet(ctx, op)
	case http.MethodDelete:
		op.Kind = KindDelete
		s.handleDelete(ctx, op)
	default:
		return false
	}

	return true
}

// keyFor maps a request path to an object key. It reports false for paths
// outside the mount.
func (s *Server) keyFor(urlPath string) (string, bool) {
	if mount := s.cfg.Mount; mount != "" {
		if urlPath != mount && !strings.HasPrefix(urlPath, mount+"/") {
			return "", false
		}
		urlPath = strings.TrimPrefix(urlPath, mount)
	}

	return strings.TrimPrefix(urlPath, "/"), true
}

// runHook runs the hook bound to slot, if any.
func (s *Server) runHook(ctx context.Context, slot hooks.Slot, d *hooks.Domain) error {
	if !s.hooks.Bound(slot) {
		return nil
	}

	err := s.hooks.Run(ctx, slot, d)
	metrics.ObserveHook(string(slot), err)
	if err != nil {
		slog.Debug("Hook failed", "slot", slot, "key", d.Key, "error", err)
	}
	return err
}

// afterUpload runs the uploaded hook with the result of a store attempt. The
// hook's result replaces err when the slot is bound. A hook that hands the
// store error back leaves it as it was.
func (s *Server) afterUpload(ctx context.Context, d *hooks.Domain, resp *storage.Response, err error) error {
	if !s.hooks.Bound(hooks.Uploaded) {
		return err
	}

	d.Response = resp
	d.Err = err
	hookErr := s.runHook(ctx, hooks.Uploaded, d)

	if err != nil && errors.Is(hookErr, err) {
		return err
	}
	return hookErr
}

// Healthz reports whether the bucket is configured.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if !s.configured {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"configured": s.configured,
		"bucket":     s.cfg.Storage.Bucket,
	})
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// validKey reports whether key can be stored.
func validKey(key string) bool {
	if !storage.ValidKey(key) {
		return false
	}
	cleaned := path.Clean("/" + key)
	return cleaned != "/" && strings.TrimPrefix(cleaned, "/") == strings.TrimSuffix(key, "/")
}
