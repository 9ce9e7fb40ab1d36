package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// LocalFileStorage is a StorageEngine implementation that keeps objects on
// the local filesystem. Each object key maps to a file path below dataDir,
// so a key such as "photos/cat.png" is stored at <dataDir>/photos/cat.png.
type LocalFileStorage struct {
	dataDir string
}

// NewLocalFileStorage creates a new LocalFileStorage rooted at dataDir.
func NewLocalFileStorage(dataDir string) *LocalFileStorage {
	return &LocalFileStorage{dataDir: dataDir}
}

// ObjectPath computes the full filesystem path for the object identified by
// key. Keys that would resolve outside of directory are rejected.
func ObjectPath(directory string, key string) (string, error) {
	if !isValidObjectKey(key) {
		return "", fmt.Errorf("invalid object key: %q", key)
	}

	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("invalid object key: %q", key)
	}

	objPath := filepath.Join(directory, clean)
	rel, err := filepath.Rel(directory, objPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object key escapes data directory: %q", key)
	}

	return objPath, nil
}

// PutFile links or copies the file at localPath into place. The source file
// is left untouched so the caller remains responsible for removing it.
func (s *LocalFileStorage) PutFile(ctx context.Context, localPath string, key string, meta Metadata) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: "put file", Key: key, Err: err}
	}

	objPath, err := ObjectPath(s.dataDir, key)
	if err != nil {
		return newResponse(http.StatusBadRequest, "InvalidObjectName: "+err.Error()), nil
	}

	if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
		return nil, &TransportError{Op: "put file", Key: key, Err: err}
	}

	if err := CopyOrLinkFile(localPath, objPath); err != nil {
		return nil, &TransportError{Op: "put file", Key: key, Err: err}
	}

	return newResponse(http.StatusOK, ""), nil
}

// PutStream writes r to a temporary file next to the destination and moves
// it into place once the whole payload was received.
func (s *LocalFileStorage) PutStream(ctx context.Context, r io.Reader, key string, meta Metadata) (*Response, error) {
	objPath, err := ObjectPath(s.dataDir, key)
	if err != nil {
		return newResponse(http.StatusBadRequest, "InvalidObjectName: "+err.Error()), nil
	}

	if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
		return nil, &TransportError{Op: "put stream", Key: key, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(objPath), ".upload-*")
	if err != nil {
		return nil, &TransportError{Op: "put stream", Key: key, Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, err := io.Copy(tmp, &contextReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, &TransportError{Op: "put stream", Key: key, Err: err}
	}

	if meta.ContentLength >= 0 && written != meta.ContentLength {
		message := fmt.Sprintf("IncompleteBody: received %d of %d bytes", written, meta.ContentLength)
		return newResponse(http.StatusBadRequest, message), nil
	}

	if err := MoveFile(tmpPath, objPath); err != nil {
		return nil, &TransportError{Op: "put stream", Key: key, Err: err}
	}

	return newResponse(http.StatusOK, ""), nil
}

func (s *LocalFileStorage) DeleteObject(ctx context.Context, key string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: "delete", Key: key, Err: err}
	}

	objPath, err := ObjectPath(s.dataDir, key)
	if err != nil {
		return newResponse(http.StatusBadRequest, "InvalidObjectName: "+err.Error()), nil
	}

	if err := os.Remove(objPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newResponse(http.StatusNotFound, "NoSuchKey: The specified key does not exist."), nil
		}
		return nil, &TransportError{Op: "delete", Key: key, Err: err}
	}

	return newResponse(http.StatusNoContent, ""), nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
