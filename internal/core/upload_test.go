package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eteran/bucketd/internal/core"
	"github.com/eteran/bucketd/internal/hooks"
	"github.com/eteran/bucketd/internal/storage"

	"github.com/stretchr/testify/require"
)

func TestPutObject_Stores(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	_, httpSrv := NewTestServer(t, engine, nil)

	resp := DoPut(t, httpSrv.URL+"/docs/readme.md",
		WithContentType("text/markdown"),
		WithContent([]byte("# hello")),
	)
	require.Equal(t, http.StatusOK, resp.StatusCode, "PUT status")

	var file core.File
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&file), "decoding PUT response")
	require.Equal(t, core.File{FileName: "readme.md", FileSize: 7, Key: "docs/readme.md"}, file, "PUT response")

	obj, ok := engine.object("docs/readme.md")
	require.True(t, ok, "object should be stored")
	require.Equal(t, "# hello", string(obj.data), "stored content")
	require.Equal(t, int64(7), obj.meta.ContentLength, "content length")
	require.Equal(t, "text/markdown", obj.meta.ContentType, "content type")
	require.Equal(t, storage.ACLPublicRead, obj.meta.ACL, "objects are public")
}

func TestPutObject_StorageStatusFails(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.status["docs/missing.md"] = http.StatusNotFound
	_, httpSrv := NewTestServer(t, engine, nil)

	resp := DoPut(t, httpSrv.URL+"/docs/missing.md", WithContent([]byte("data")))
	require.Equal(t, http.StatusNotFound, resp.StatusCode, "storage status should be surfaced")
	require.Contains(t, DecodeError(t, resp).Message, "AccessDenied: rejected by test storage", "storage body should be the message")
}

func TestPutObject_StorageServerErrorIsBadGateway(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.status["a.txt"] = http.StatusInternalServerError
	_, httpSrv := NewTestServer(t, engine, nil)

	resp := DoPut(t, httpSrv.URL+"/a.txt", WithContent([]byte("data")))
	require.Equal(t, http.StatusBadGateway, resp.StatusCode, "5xx from storage")
}

func TestPostObject_SingleStream(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	_, httpSrv := NewTestServer(t, engine, nil)

	resp := DoPost(t, httpSrv.URL+"/data/report.json",
		WithContentType("application/json"),
		WithContent([]byte(`{"ok":true}`)),
	)
	require.Equal(t, http.StatusOK, resp.StatusCode, "POST status")

	obj, ok := engine.object("data/report.json")
	require.True(t, ok, "object should be stored")
	require.Equal(t, "application/json", obj.meta.ContentType, "content type")
}

func TestPutObject_RootIsInvalid(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	_, httpSrv := NewTestServer(t, engine, nil)

	resp := DoPut(t, httpSrv.URL+"/", WithContent([]byte("data")))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, "PUT on root")

	puts, _ := engine.calls()
	require.Zero(t, puts, "storage should not be called")
}

func TestPutObject_TooLarge(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	_, httpSrv := NewTestServer(t, engine, nil, core.WithMaxFileSize(10))

	resp := DoPut(t, httpSrv.URL+"/big.bin", WithContent([]byte(strings.Repeat("x", 20))))
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode, "oversized PUT")

	puts, _ := engine.calls()
	require.Zero(t, puts, "storage should not be called")
}

func TestPutObject_UploadingHookRejects(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	var uploadedCalled atomic.Bool
	reg := hooks.NewRegistry(time.Second).
		Bind(hooks.Uploading, hooks.Func(func(ctx context.Context, slot hooks.Slot, d *hooks.Domain) error {
			return hooks.Reject(http.StatusForbidden, "uploads are closed")
		})).
		Bind(hooks.Uploaded, hooks.Func(func(ctx context.Context, slot hooks.Slot, d *hooks.Domain) error {
			uploadedCalled.Store(true)
			return nil
		}))
	_, httpSrv := NewTestServer(t, engine, reg)

	resp := DoPut(t, httpSrv.URL+"/a.txt", WithContent([]byte("data")))
	require.Equal(t, http.StatusForbidden, resp.StatusCode, "rejected PUT")
	require.Equal(t, "uploads are closed", DecodeError(t, resp).Message, "rejection message")

	puts, _ := engine.calls()
	require.Zero(t, puts, "storage should not be called")
	require.False(t, uploadedCalled.Load(), "uploaded hook should not run without a transfer")
}

func TestPutObject_UploadingHookSeesRequest(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	var (
		mu   sync.Mutex
		seen hooks.Domain
	)
	reg := hooks.NewRegistry(time.Second).
		Bind(hooks.Uploading, hooks.Func(func(ctx context.Context, slot hooks.Slot, d *hooks.Domain) error {
			mu.Lock()
			seen = *d
			mu.Unlock()
			d.Key = "archive/" + d.FileName
			return nil
		}))
	_, httpSrv := NewTestServer(t, engine, reg)

	resp := DoPut(t, httpSrv.URL+"/inbox/note.txt", WithContentType("text/plain"), WithContent([]byte("12345")))
	require.Equal(t, http.StatusOK, resp.StatusCode, "PUT status")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, http.MethodPut, seen.Method, "method")
	require.Equal(t, "/inbox/note.txt", seen.Path, "path")
	require.Equal(t, "inbox/note.txt", seen.Key, "key")
	require.Equal(t, "note.txt", seen.FileName, "file name is the base of the path")
	require.Equal(t, int64(5), seen.FileSize, "file size is the content length")

	_, ok := engine.object("archive/note.txt")
	require.True(t, ok, "hook should be able to rewrite the key")
	_, ok = engine.object("inbox/note.txt")
	require.False(t, ok, "original key should not be written")
}

func TestPutObject_UploadedHookOutcomeIsFinal(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.status["flaky.txt"] = http.StatusServiceUnavailable

	var (
		mu        sync.Mutex
		gotStatus int
		gotErr    error
	)
	observed := func() (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return gotStatus, gotErr
	}
	reg := hooks.NewRegistry(time.Second).
		Bind(hooks.Uploaded, hooks.Func(func(ctx context.Context, slot hooks.Slot, d *hooks.Domain) error {
			mu.Lock()
			gotStatus = d.Response.StatusCode
			gotErr = d.Err
			mu.Unlock()
			if d.Key == "good.txt" {
				return errors.New("post processing failed")
			}
			return nil
		}))
	_, httpSrv := NewTestServer(t, engine, reg)

	resp := DoPut(t, httpSrv.URL+"/flaky.txt", WithContent([]byte("data")))
	require.Equal(t, http.StatusOK, resp.StatusCode, "uploaded hook should be able to accept a failed transfer")

	status, err := observed()
	require.Equal(t, http.StatusServiceUnavailable, status, "hook should see the storage status")

	var statusErr *storage.StatusError
	require.ErrorAs(t, err, &statusErr, "hook should see the storage error")

	resp = DoPut(t, httpSrv.URL+"/good.txt", WithContent([]byte("data")))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, "uploaded hook error should fail the request")
	require.Contains(t, DecodeError(t, resp).Message, "post processing failed", "hook error message")
	status, err = observed()
	require.Equal(t, http.StatusOK, status, "hook should see the successful status")
	require.NoError(t, err, "hook should see no storage error")
}
