package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestMetrics_RecordSwap(t *testing.T) {
	m := New()

	m.RecordSwap("completed", "", 150*time.Millisecond)
	m.RecordSwap("failed", "NO_FACE_IN_SOURCE", 20*time.Millisecond)
	m.RecordSwap("failed", "NO_FACE_IN_SOURCE", 30*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `faceswap_swaps_total{code="none",status="completed"} 1`)
	assert.Contains(t, body, `faceswap_swaps_total{code="NO_FACE_IN_SOURCE",status="failed"} 2`)
	assert.Contains(t, body, "faceswap_swap_duration_seconds_count 3")
}

func TestMetrics_InFlight(t *testing.T) {
	m := New()

	m.SwapStarted()
	m.SwapStarted()
	m.SwapFinished()

	assert.Contains(t, scrape(t, m), "faceswap_swaps_in_flight 1")
}

func TestMetrics_SetJobsWindowReplacesLabels(t *testing.T) {
	m := New()

	m.SetJobsWindow(map[string]int64{"completed": 4, "failed": 1})
	m.SetJobsWindow(map[string]int64{"completed": 7})

	body := scrape(t, m)
	assert.Contains(t, body, `faceswap_swap_jobs_last_24h{status="completed"} 7`)
	assert.NotContains(t, body, `faceswap_swap_jobs_last_24h{status="failed"}`)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("POST", "/swap_faces", "200", time.Second)
	m.RecordDownload("ok")
	m.RecordCleanupError()
	m.RecordFaces("source", 1)
	m.ObserveStage(StageAnalyze, 10*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `faceswap_http_requests_total{method="POST",route="/swap_faces",status_code="200"} 1`)
	assert.Contains(t, body, `faceswap_downloads_total{status="ok"} 1`)
	assert.Contains(t, body, "faceswap_scratch_cleanup_errors_total 1")
	assert.Contains(t, body, `faceswap_faces_detected_count{side="source"} 1`)
	assert.Contains(t, body, `faceswap_stage_duration_seconds_count{stage="analyze"} 1`)
}

type fakeStats struct {
	mu        sync.Mutex
	counts    map[string]int64
	countErr  error
	deleted   int64
	deleteAge time.Duration
	calls     int
}

func (f *fakeStats) CountByStatus(ctx context.Context, since time.Time) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.counts, f.countErr
}

func (f *fakeStats) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteAge = age
	return f.deleted, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAggregator_Aggregate(t *testing.T) {
	m := New()
	stats := &fakeStats{counts: map[string]int64{"completed": 3}, deleted: 2}

	NewAggregator(stats, m, discardLogger(), time.Minute, 48*time.Hour).aggregate(context.Background())

	assert.Equal(t, 48*time.Hour, stats.deleteAge)
	assert.Contains(t, scrape(t, m), `faceswap_swap_jobs_last_24h{status="completed"} 3`)
}

func TestAggregator_AggregateKeepsGaugesOnError(t *testing.T) {
	m := New()
	m.SetJobsWindow(map[string]int64{"completed": 5})
	stats := &fakeStats{countErr: errors.New("connection refused")}

	NewAggregator(stats, m, discardLogger(), time.Minute, 0).aggregate(context.Background())

	assert.Contains(t, scrape(t, m), `faceswap_swap_jobs_last_24h{status="completed"} 5`)
	assert.Zero(t, stats.deleteAge, "retention 0 disables cleanup")
}

func TestAggregator_StartStop(t *testing.T) {
	stats := &fakeStats{counts: map[string]int64{}}
	a := NewAggregator(stats, New(), discardLogger(), 10*time.Millisecond, 0)

	done := make(chan struct{})
	go func() {
		a.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		stats.mu.Lock()
		defer stats.mu.Unlock()
		return stats.calls >= 2
	}, time.Second, 5*time.Millisecond)

	a.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("aggregator did not stop")
	}
}
