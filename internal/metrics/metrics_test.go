package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/keeper/internal/rwlock"
	"github.com/Iron-Ham/keeper/internal/worker"
)

func TestCollector_ObservesLock(t *testing.T) {
	ctx := context.Background()
	c := New()
	lock := rwlock.New("grid", rwlock.WithObserver(c))

	require.NoError(t, lock.RLock(ctx))
	require.NoError(t, lock.RLock(ctx))
	require.Equal(t, 2.0, testutil.ToFloat64(c.activeReaders.WithLabelValues("grid")))
	lock.RUnlock()
	lock.RUnlock()
	require.Equal(t, 0.0, testutil.ToFloat64(c.activeReaders.WithLabelValues("grid")))

	require.NoError(t, lock.Lock(ctx))
	require.Equal(t, 1.0, testutil.ToFloat64(c.writerHeld.WithLabelValues("grid")))

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	require.Error(t, lock.RLock(waitCtx))
	lock.Unlock()

	require.Equal(t, 0.0, testutil.ToFloat64(c.writerHeld.WithLabelValues("grid")))
	require.Equal(t, 2.0, testutil.ToFloat64(c.acquisitions.WithLabelValues("grid", "read")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.acquisitions.WithLabelValues("grid", "write")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.abandoned.WithLabelValues("grid", "read")))
	require.Equal(t, 2, testutil.CollectAndCount(c.waitSeconds))
}

func TestCollector_WorkerRuns(t *testing.T) {
	c := New()
	c.WorkerRun("gardener", "mutator", nil, time.Millisecond)
	c.WorkerRun("gardener", "mutator", errors.New("boom"), time.Millisecond)
	c.RecordResults([]worker.Result{
		{Name: "reader-smith", Kind: worker.KindReader},
		{Name: "reader-smith", Kind: worker.KindReader},
	})

	require.Equal(t, 1.0, testutil.ToFloat64(c.workerRuns.WithLabelValues("gardener", "mutator", OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.workerRuns.WithLabelValues("gardener", "mutator", OutcomeError)))
	require.Equal(t, 2.0, testutil.ToFloat64(c.workerRuns.WithLabelValues("reader-smith", "reader", OutcomeOK)))
}

func TestServer_Handler(t *testing.T) {
	ctx := context.Background()
	c := New()
	lock := rwlock.New("directory", rwlock.WithObserver(c))
	require.NoError(t, lock.WithWrite(ctx, func() error { return nil }))

	srv := httptest.NewServer(NewServer(c, map[string]LockSource{"directory": lock}, nil).Handler())
	defer srv.Close()

	t.Run("metrics", func(t *testing.T) {
		body := get(t, srv.URL+"/metrics")
		require.Contains(t, body, `keeper_lock_acquisitions_total{lock="directory",mode="write"} 1`)
		require.Contains(t, body, "go_goroutines")
	})

	t.Run("healthz", func(t *testing.T) {
		require.Equal(t, "ok\n", get(t, srv.URL+"/healthz"))
	})

	t.Run("locks", func(t *testing.T) {
		var stats map[string]rwlock.Stats
		require.NoError(t, json.Unmarshal([]byte(get(t, srv.URL+"/locks")), &stats))
		require.Equal(t, uint64(1), stats["directory"].WriteAcquisitions)
		require.False(t, stats["directory"].Writer)
	})

	t.Run("unknown route", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/nope")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(New(), nil, nil).Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "server did not shut down")
	}
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
