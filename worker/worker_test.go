package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pageshot/models"
	"github.com/use-agent/pageshot/report"
	"github.com/use-agent/pageshot/store"
	"github.com/use-agent/pageshot/webhook"
)

func testPlan(dir string) *models.Plan {
	return &models.Plan{Name: "integration", OutputDir: dir, Steps: []models.Step{{Name: "a"}}}
}

func passing(_ context.Context, job *Job) (*models.RunReport, error) {
	return &models.RunReport{Plan: job.Plan.Name, Status: models.RunStatusPassed, OutputDir: job.Plan.OutputDir}, nil
}

func waitStatus(t *testing.T, st *store.Store, id, want string) models.RunJob {
	t.Helper()
	var job models.RunJob
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = st.Get(id)
		return ok && job.Status == want
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func TestWorker_RunsAndWritesReport(t *testing.T) {
	st := store.New(10, time.Hour)
	defer st.Close()
	dir := t.TempDir()

	w := New(passing, st, nil, 4)
	w.Start()
	defer w.Shutdown(context.Background())

	require.NoError(t, w.Submit(&Job{ID: "r1", Plan: testPlan(dir)}))

	job := waitStatus(t, st, "r1", models.JobPassed)
	require.NotNil(t, job.Report)
	assert.Nil(t, job.Error)
	assert.FileExists(t, filepath.Join(dir, report.FileName))
}

func TestWorker_FailedRun(t *testing.T) {
	st := store.New(10, time.Hour)
	defer st.Close()

	failing := func(_ context.Context, job *Job) (*models.RunReport, error) {
		ve := models.NewVerificationError(models.ErrCodeAssertionTimeout, "registration page", "assertion failed", context.DeadlineExceeded)
		return &models.RunReport{Plan: job.Plan.Name, Status: models.RunStatusFailed, OutputDir: job.Plan.OutputDir, Error: ve.ToDetail()}, ve
	}
	w := New(failing, st, nil, 4)
	w.Start()
	defer w.Shutdown(context.Background())

	require.NoError(t, w.Submit(&Job{ID: "r1", Plan: testPlan(t.TempDir())}))

	job := waitStatus(t, st, "r1", models.JobFailed)
	require.NotNil(t, job.Error)
	assert.Equal(t, models.ErrCodeAssertionTimeout, job.Error.Code)
	assert.Equal(t, "registration page", job.Error.Step)
}

func TestWorker_SerialFIFO(t *testing.T) {
	st := store.New(10, time.Hour)
	defer st.Close()

	var (
		mu      sync.Mutex
		order   []string
		running int
		maxSeen int
	)
	exec := func(_ context.Context, job *Job) (*models.RunReport, error) {
		mu.Lock()
		running++
		maxSeen = max(maxSeen, running)
		order = append(order, job.ID)
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return nil, nil
	}

	w := New(exec, st, nil, 8)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, w.Submit(&Job{ID: id, Plan: testPlan(t.TempDir())}))
	}
	w.Start()
	require.NoError(t, w.Shutdown(context.Background()))

	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	assert.Equal(t, 1, maxSeen)
}

func TestWorker_QueueFull(t *testing.T) {
	st := store.New(10, time.Hour)
	defer st.Close()

	release := make(chan struct{})
	blocking := func(ctx context.Context, job *Job) (*models.RunReport, error) {
		<-release
		return nil, nil
	}
	w := New(blocking, st, nil, 1)
	w.Start()
	defer func() {
		close(release)
		_ = w.Shutdown(context.Background())
	}()

	require.NoError(t, w.Submit(&Job{ID: "active", Plan: testPlan(t.TempDir())}))
	waitStatus(t, st, "active", models.JobRunning)
	require.NoError(t, w.Submit(&Job{ID: "waiting", Plan: testPlan(t.TempDir())}))

	err := w.Submit(&Job{ID: "rejected", Plan: testPlan(t.TempDir())})
	var ve *models.VerificationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, models.ErrCodeQueueFull, ve.Code)
	_, stored := st.Get("rejected")
	assert.False(t, stored)

	depth, capacity, busy := w.Stats()
	assert.Equal(t, 1, depth)
	assert.Equal(t, 1, capacity)
	assert.True(t, busy)
}

func TestWorker_StoreFullOfActiveRuns(t *testing.T) {
	st := store.New(1, time.Hour)
	defer st.Close()

	release := make(chan struct{})
	blocking := func(ctx context.Context, job *Job) (*models.RunReport, error) {
		<-release
		return passing(ctx, job)
	}
	w := New(blocking, st, nil, 4)
	w.Start()
	defer func() { _ = w.Shutdown(context.Background()) }()

	require.NoError(t, w.Submit(&Job{ID: "active", Plan: testPlan(t.TempDir())}))
	waitStatus(t, st, "active", models.JobRunning)

	err := w.Submit(&Job{ID: "rejected", Plan: testPlan(t.TempDir())})
	var ve *models.VerificationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, models.ErrCodeQueueFull, ve.Code)

	close(release)
	job := waitStatus(t, st, "active", models.JobPassed)
	assert.Equal(t, "active", job.ID)
}

func TestWorker_SubmitAfterShutdown(t *testing.T) {
	st := store.New(10, time.Hour)
	defer st.Close()

	w := New(passing, st, nil, 1)
	w.Start()
	require.NoError(t, w.Shutdown(context.Background()))

	assert.ErrorIs(t, w.Submit(&Job{ID: "late", Plan: testPlan(t.TempDir())}), ErrClosed)
}

func TestWorker_ShutdownCancelsActiveRun(t *testing.T) {
	st := store.New(10, time.Hour)
	defer st.Close()

	started := make(chan struct{})
	exec := func(ctx context.Context, job *Job) (*models.RunReport, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	w := New(exec, st, nil, 1)
	w.Start()
	require.NoError(t, w.Submit(&Job{ID: "slow", Plan: testPlan(t.TempDir())}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := w.Shutdown(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	job, _ := st.Get("slow")
	assert.Equal(t, models.JobFailed, job.Status)
}

func TestWorker_Webhook(t *testing.T) {
	st := store.New(10, time.Hour)
	defer st.Close()

	received := make(chan webhook.Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, webhook.Verify("secret", body, r.Header.Get(webhook.SignatureHeader)))
		var ev webhook.Event
		_ = json.Unmarshal(body, &ev)
		received <- ev
	}))
	defer srv.Close()

	w := New(passing, st, webhook.NewSender("secret"), 2)
	w.Start()
	defer w.Shutdown(context.Background())

	require.NoError(t, w.Submit(&Job{ID: "hooked", Plan: testPlan(t.TempDir()), WebhookURL: srv.URL}))

	select {
	case ev := <-received:
		assert.Equal(t, webhook.EventRunCompleted, ev.Type)
		assert.Equal(t, "hooked", ev.RunID)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestWorker_ReportWriteFailureIsNotFatal(t *testing.T) {
	st := store.New(10, time.Hour)
	defer st.Close()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	w := New(passing, st, nil, 1)
	w.Start()
	defer w.Shutdown(context.Background())

	// The output dir is a regular file, so report.Write fails.
	require.NoError(t, w.Submit(&Job{ID: "r", Plan: testPlan(blocker)}))
	waitStatus(t, st, "r", models.JobPassed)
}
