// Package worker executes submitted runs one at a time, in submission order.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/pageshot/models"
	"github.com/use-agent/pageshot/report"
	"github.com/use-agent/pageshot/store"
	"github.com/use-agent/pageshot/webhook"
)

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("worker: shut down")

// Job is a resolved plan waiting to run.
type Job struct {
	ID            string
	Plan          *models.Plan
	WebhookURL    string
	TextSnapshots bool
}

// Executor runs one job to completion.
type Executor func(ctx context.Context, job *Job) (*models.RunReport, error)

// Worker owns a bounded FIFO queue and a single goroutine draining it, so
// at most one browser session exists at a time.
type Worker struct {
	exec  Executor
	store *store.Store
	hooks *webhook.Sender // nil disables webhooks

	mu     sync.RWMutex
	queue  chan *Job
	closed bool

	busy   atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Worker. Call Start to begin processing.
func New(exec Executor, st *store.Store, hooks *webhook.Sender, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		exec:   exec,
		store:  st,
		hooks:  hooks,
		queue:  make(chan *Job, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the processing goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for job := range w.queue {
			w.process(job)
		}
	}()
}

// Submit records job as queued and enqueues it without blocking. A full
// queue, or a store holding only active runs, is reported as QUEUE_FULL and
// nothing is stored.
func (w *Worker) Submit(job *Job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}

	stored := w.store.Put(&models.RunJob{
		ID:         job.ID,
		Status:     models.JobQueued,
		Plan:       job.Plan,
		WebhookURL: job.WebhookURL,
		CreatedAt:  time.Now().Unix(),
	})
	if !stored {
		return models.NewVerificationError(models.ErrCodeQueueFull, "",
			"run store is full of active runs, retry later", nil)
	}

	select {
	case w.queue <- job:
		slog.Info("run queued", "run_id", job.ID, "plan", job.Plan.Name, "depth", len(w.queue))
		return nil
	default:
		w.store.Delete(job.ID)
		return models.NewVerificationError(models.ErrCodeQueueFull, "",
			"run queue is full, retry later", nil)
	}
}

// Stats reports the queue depth, its capacity and whether a run is active.
func (w *Worker) Stats() (depth, capacity int, busy bool) {
	return len(w.queue), cap(w.queue), w.busy.Load()
}

// Shutdown stops accepting runs and waits for queued ones to finish. When
// ctx ends first, the active run is canceled and the remaining queue fails
// fast.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-done
		return ctx.Err()
	}
}

func (w *Worker) process(job *Job) {
	w.busy.Store(true)
	defer w.busy.Store(false)

	log := slog.With("run_id", job.ID, "plan", job.Plan.Name)
	w.store.Update(job.ID, func(j *models.RunJob) { j.Status = models.JobRunning })
	log.Info("run started", "steps", len(job.Plan.Steps))

	rep, err := w.exec(w.ctx, job)

	if rep != nil {
		if path, werr := report.Write(rep); werr != nil {
			log.Warn("report not written", "error", werr)
		} else {
			log.Debug("report written", "path", path)
		}
	}

	status := models.JobPassed
	var detail *models.ErrorDetail
	if err != nil {
		status = models.JobFailed
		detail = models.AsVerificationError(err).ToDetail()
		log.Error("run failed", "error", err)
	} else {
		log.Info("run passed")
	}

	w.store.Update(job.ID, func(j *models.RunJob) {
		j.Status = status
		j.Report = rep
		j.Error = detail
	})

	if job.WebhookURL == "" || w.hooks == nil {
		return
	}
	eventType := webhook.EventRunCompleted
	if err != nil {
		eventType = webhook.EventRunFailed
	}
	w.hooks.DeliverAsync(job.WebhookURL, &webhook.Event{
		Type:      eventType,
		RunID:     job.ID,
		Timestamp: time.Now().Unix(),
		Data: models.RunStatusResponse{
			ID:     job.ID,
			Status: status,
			Plan:   job.Plan.Name,
			Report: rep,
			Error:  detail,
		},
	})
}
