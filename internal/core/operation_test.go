package core_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/eteran/bucketd/internal/core"

	"github.com/stretchr/testify/require"
)

func TestOperationCompletesOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var first core.Outcome

	req := httptest.NewRequestWithContext(t.Context(), http.MethodPost, "/a", nil)
	op := core.NewOperation(req, "a", func(o core.Outcome) {
		calls.Add(1)
		first = o
	})

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if op.Complete(core.Failed(errors.New("boom"))) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), calls.Load(), "done should be called once")
	require.Equal(t, int32(1), wins.Load(), "only one Complete should win")
	require.True(t, op.Completed(), "operation should be completed")
	require.EqualError(t, first.Err, "boom", "outcome")

	require.False(t, op.Complete(core.NoContent()), "late completions are ignored")
}

func TestOperationFromRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequestWithContext(core.WithInternal(t.Context()), http.MethodPut, "/docs/a.txt", nil)
	req.Header.Set("Referer", "https://app.example.com/")

	op := core.NewOperation(req, "docs/a.txt", nil)
	require.Equal(t, http.MethodPut, op.Method, "method")
	require.Equal(t, "/docs/a.txt", op.Path, "path")
	require.Equal(t, "docs/a.txt", op.Key, "key")
	require.Equal(t, "https://app.example.com/", op.Referer, "referer")
	require.True(t, op.Internal, "internal flag")
	require.True(t, op.Complete(core.NoContent()), "nil done is allowed")
}
