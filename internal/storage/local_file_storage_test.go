package storage_test

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eteran/bucketd/internal/storage"

	"github.com/stretchr/testify/require"
)

func TestLocalFileStoragePutStream(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	engine := storage.NewLocalFileStorage(dataDir)

	payload := []byte("hello local storage")
	resp, err := engine.PutStream(t.Context(), bytes.NewReader(payload), "dir1/object.txt", storage.Metadata{
		ContentLength: int64(len(payload)),
		ContentType:   "text/plain",
		ACL:           storage.ACLPublicRead,
	})
	require.NoError(t, storage.Check(resp, err), "PutStream error")

	got, err := os.ReadFile(filepath.Join(dataDir, "dir1", "object.txt"))
	require.NoError(t, err, "expected object file to exist")
	require.Equal(t, payload, got, "payload mismatch")
}

func TestLocalFileStoragePutStreamShortBody(t *testing.T) {
	t.Parallel()

	engine := storage.NewLocalFileStorage(t.TempDir())

	resp, err := engine.PutStream(t.Context(), strings.NewReader("abc"), "short.txt", storage.Metadata{ContentLength: 10})
	err = storage.Check(resp, err)

	var statusErr *storage.StatusError
	require.ErrorAs(t, err, &statusErr, "expected a status error")
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode, "status code")
	require.Contains(t, statusErr.Message, "IncompleteBody", "error message")
}

func TestLocalFileStoragePutFileLeavesSource(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	engine := storage.NewLocalFileStorage(dataDir)

	src := filepath.Join(t.TempDir(), "upload.bin")
	require.NoError(t, os.WriteFile(src, []byte("file payload"), 0o644), "writing source file")

	resp, err := engine.PutFile(t.Context(), src, "a/b/upload.bin", storage.Metadata{ContentLength: -1})
	require.NoError(t, storage.Check(resp, err), "PutFile error")

	got, err := os.ReadFile(filepath.Join(dataDir, "a", "b", "upload.bin"))
	require.NoError(t, err, "expected stored object")
	require.Equal(t, "file payload", string(got), "payload mismatch")

	_, err = os.Stat(src)
	require.NoError(t, err, "source file should still exist")
}

func TestLocalFileStorageDelete(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	engine := storage.NewLocalFileStorage(dataDir)

	resp, err := engine.PutStream(t.Context(), strings.NewReader("x"), "gone.txt", storage.Metadata{ContentLength: 1})
	require.NoError(t, storage.Check(resp, err), "PutStream error")

	resp, err = engine.DeleteObject(t.Context(), "gone.txt")
	require.NoError(t, storage.Check(resp, err, http.StatusOK, http.StatusNoContent), "DeleteObject error")

	_, err = os.Stat(filepath.Join(dataDir, "gone.txt"))
	require.True(t, os.IsNotExist(err), "object should be removed")

	resp, err = engine.DeleteObject(t.Context(), "gone.txt")
	err = storage.Check(resp, err, http.StatusOK, http.StatusNoContent)

	var statusErr *storage.StatusError
	require.ErrorAs(t, err, &statusErr, "expected a status error for a missing key")
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode, "status code")
	require.Contains(t, statusErr.Message, "NoSuchKey", "error message")
}

func TestObjectPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "simple", key: "file.txt", want: "file.txt"},
		{name: "nested", key: "a/b/c.txt", want: filepath.Join("a", "b", "c.txt")},
		{name: "parent segments stay inside", key: "../../etc/passwd", want: filepath.Join("etc", "passwd")},
		{name: "empty", key: "", wantErr: true},
		{name: "root only", key: "/", wantErr: true},
		{name: "control character", key: "bad\x00key", wantErr: true},
	}

	root := t.TempDir()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := storage.ObjectPath(root, tc.key)
			if tc.wantErr {
				require.Error(t, err, "expected error for key %q", tc.key)
				return
			}
			require.NoError(t, err, "ObjectPath error")
			require.Equal(t, filepath.Join(root, tc.want), got, "object path")
		})
	}
}

func TestMoveFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.WriteFile(src, []byte("move me"), 0o644), "writing source")

	require.NoError(t, storage.MoveFile(src, dest), "MoveFile error")

	got, err := os.ReadFile(dest)
	require.NoError(t, err, "reading destination")
	require.Equal(t, "move me", string(got), "payload mismatch")

	_, err = os.Stat(src)
	require.True(t, os.IsNotExist(err), "source should be gone")
}
