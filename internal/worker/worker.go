// Package worker runs the polling loop that claims and executes ingestion
// jobs against the queue.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/avencia/ingestd/internal/ingest"
	"github.com/avencia/ingestd/internal/metrics"
	"github.com/avencia/ingestd/internal/models"
	"github.com/avencia/ingestd/internal/queue"
)

// Executor runs one claimed job to completion. The ingestion service
// implements it.
type Executor interface {
	Execute(ctx context.Context, job *models.Job) error
}

// Config tunes the worker loop.
type Config struct {
	// Concurrency is the maximum number of jobs executed at once.
	Concurrency int
	// PollInterval is the pause between claim cycles, busy or idle.
	PollInterval time.Duration
}

// DefaultConfig returns the standard worker configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:  2,
		PollInterval: 2 * time.Second,
	}
}

// Worker polls the queue and fans claimed jobs out to the executor. Each
// job goroutine is tracked; Stop lets in-flight jobs finish rather than
// cancelling them (a crashed worker's jobs are recovered via lease expiry).
type Worker struct {
	queue    *queue.Queue
	executor Executor
	cfg      Config
	metrics  *metrics.Collector

	mu       sync.Mutex
	inflight int
	wg       sync.WaitGroup
}

// New creates a worker. Zero config fields fall back to the defaults.
func New(q *queue.Queue, executor Executor, cfg Config, collector *metrics.Collector) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Worker{
		queue:    q,
		executor: executor,
		cfg:      cfg,
		metrics:  collector,
	}
}

// Run executes the scheduler loop until ctx is cancelled, then waits for
// in-flight jobs to finish. The cancellation check sits at the top of each
// cycle; there is no mid-job cancellation.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("worker started", "concurrency", w.cfg.Concurrency, "poll_interval", w.cfg.PollInterval)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopping, waiting for in-flight jobs")
			w.wg.Wait()
			w.logSnapshot()
			slog.Info("worker stopped")
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

// cycle claims up to the free concurrency slots and spawns supervised
// executions for each claimed job.
func (w *Worker) cycle(ctx context.Context) {
	free := w.freeSlots()
	for i := 0; i < free; i++ {
		job, err := w.queue.Claim(ctx)
		if err != nil {
			slog.Error("claim failed", "error", err)
			return
		}
		if job == nil {
			// Idle; wait for the next tick.
			return
		}
		w.spawn(ctx, job)
	}
}

func (w *Worker) freeSlots() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg.Concurrency - w.inflight
}

// spawn runs one job on a tracked goroutine and reports the outcome back
// to the queue. Never detached: panics are recovered and surface as job
// failures instead of killing the worker.
func (w *Worker) spawn(ctx context.Context, job *models.Job) {
	w.mu.Lock()
	w.inflight++
	w.mu.Unlock()
	w.wg.Add(1)

	// Stopping the worker cancels the claim cycle only. A claimed job runs
	// to completion on a detached context so its downloads, API calls and
	// outcome writes survive shutdown; Run waits on the WaitGroup.
	jobCtx := context.WithoutCancel(ctx)

	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			w.inflight--
			w.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("job execution panicked", "job_id", models.MustRecordIDString(job.ID), "panic", r)
				if err := w.queue.Fail(jobCtx, job, &panicError{value: r}); err != nil {
					slog.Error("failed to record panicked job", "job_id", models.MustRecordIDString(job.ID), "error", err)
				}
			}
		}()

		w.execute(jobCtx, job)
	}()
}

func (w *Worker) execute(ctx context.Context, job *models.Job) {
	jobID := models.MustRecordIDString(job.ID)
	slog.Info("executing job", "job_id", jobID, "source_id", job.SourceID, "kind", job.Kind, "attempt", job.Attempts+1)

	start := time.Now()
	err := w.executor.Execute(ctx, job)
	if err != nil {
		w.metrics.RecordFailure(metrics.OpJob, time.Since(start))
	} else {
		w.metrics.Record(metrics.OpJob, time.Since(start))
	}

	if err == nil {
		if cerr := w.queue.Complete(ctx, job); cerr != nil {
			slog.Error("failed to mark job done", "job_id", jobID, "error", cerr)
		}
		return
	}

	var qerr error
	if ingest.IsPermanent(err) {
		qerr = w.queue.Fail(ctx, job, err)
	} else {
		qerr = w.queue.RetryOrFail(ctx, job, err)
	}
	if qerr != nil {
		slog.Error("failed to record job outcome", "job_id", jobID, "error", qerr)
	}
}

// Metrics exposes the worker's runtime statistics collector.
func (w *Worker) Metrics() *metrics.Collector {
	return w.metrics
}

func (w *Worker) logSnapshot() {
	snap := w.metrics.Snapshot()
	if snap.Jobs == nil {
		return
	}
	slog.Info("worker runtime stats",
		"uptime_s", int64(snap.UptimeSeconds),
		"jobs", snap.Jobs.Count,
		"avg_job_ms", int64(snap.Jobs.AvgTimeMs),
		"max_job_ms", snap.Jobs.MaxTimeMs)
}
