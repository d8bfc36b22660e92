package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avencia/ingestd/internal/models"
	"github.com/google/uuid"
)

// Defaults for the retry policy. Delays for consecutive failures come out
// as 1, 2, 4, 8, 16 and then capped 30 minutes.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 1 * time.Minute
	DefaultCapDelay    = 30 * time.Minute
	DefaultLease       = 15 * time.Minute
)

// Config tunes the queue's retry and lease policy.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	CapDelay    time.Duration
	Lease       time.Duration
}

// DefaultConfig returns the standard policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		CapDelay:    DefaultCapDelay,
		Lease:       DefaultLease,
	}
}

// Queue coordinates ingestion jobs on top of a JobStore. It is an
// explicitly constructed component: multiple isolated instances can exist,
// each with its own store handle and policy.
type Queue struct {
	store JobStore
	cfg   Config
	now   func() time.Time
}

// New creates a queue with the given store and config. Zero config fields
// fall back to the defaults.
func New(store JobStore, cfg Config) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.CapDelay <= 0 {
		cfg.CapDelay = DefaultCapDelay
	}
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultLease
	}
	return &Queue{store: store, cfg: cfg, now: time.Now}
}

// Enqueue creates a pending job for the source with next_run_at = now.
// Enqueueing a source that already has an active job returns that job
// instead of creating a duplicate.
func (q *Queue) Enqueue(ctx context.Context, sourceID string, kind models.SourceKind) (*models.Job, error) {
	if !models.ValidKind(kind) {
		return nil, fmt.Errorf("enqueue %s: unknown source kind %q", sourceID, kind)
	}

	jobID := uuid.New().String()
	job, err := q.store.CreateOrGetActiveJob(ctx, jobID, sourceID, kind)
	if err != nil {
		return nil, err
	}

	if id := models.MustRecordIDString(job.ID); id != jobID {
		slog.Debug("enqueue joined existing active job", "source_id", sourceID, "job_id", id)
	} else {
		slog.Info("job enqueued", "source_id", sourceID, "job_id", id, "kind", kind)
	}
	return job, nil
}

// Claim atomically claims the next eligible job, reclaiming expired leases
// first so crashed workers' jobs become eligible again. Returns (nil, nil)
// when there is no work; callers treat that as idle, not as an error.
func (q *Queue) Claim(ctx context.Context) (*models.Job, error) {
	reclaimed, err := q.store.ReclaimExpiredJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("reclaim expired leases: %w", err)
	}
	if reclaimed > 0 {
		slog.Warn("reclaimed jobs from expired leases", "count", reclaimed)
	}

	return q.store.ClaimNextJob(ctx, q.cfg.Lease)
}

// Complete marks a claimed job as done and clears its lease.
func (q *Queue) Complete(ctx context.Context, job *models.Job) error {
	id := models.MustRecordIDString(job.ID)
	if err := q.store.MarkJobDone(ctx, id); err != nil {
		return err
	}
	slog.Info("job completed", "job_id", id, "source_id", job.SourceID, "attempts", job.Attempts)
	return nil
}

// RetryOrFail records a job failure. The attempt counter is incremented;
// once it reaches MaxAttempts the job fails terminally, otherwise it is
// rescheduled with exponential backoff.
func (q *Queue) RetryOrFail(ctx context.Context, job *models.Job, cause error) error {
	id := models.MustRecordIDString(job.ID)
	attempts := job.Attempts + 1
	errMsg := cause.Error()

	if attempts >= q.cfg.MaxAttempts {
		if err := q.store.MarkJobFailed(ctx, id, attempts, errMsg); err != nil {
			return err
		}
		slog.Error("job failed permanently", "job_id", id, "source_id", job.SourceID, "attempts", attempts, "error", cause)
		return nil
	}

	delay := q.Backoff(attempts)
	nextRunAt := q.now().Add(delay)
	if err := q.store.MarkJobPending(ctx, id, attempts, nextRunAt, errMsg); err != nil {
		return err
	}
	slog.Warn("job scheduled for retry", "job_id", id, "source_id", job.SourceID, "attempts", attempts, "delay", delay, "error", cause)
	return nil
}

// Fail marks a job failed terminally regardless of remaining attempts.
// Used for permanent errors that retrying cannot fix.
func (q *Queue) Fail(ctx context.Context, job *models.Job, cause error) error {
	id := models.MustRecordIDString(job.ID)
	attempts := job.Attempts + 1
	if err := q.store.MarkJobFailed(ctx, id, attempts, cause.Error()); err != nil {
		return err
	}
	slog.Error("job failed permanently", "job_id", id, "source_id", job.SourceID, "error", cause)
	return nil
}

// Backoff returns the delay before the given attempt number runs again:
// min(base * 2^(attempts-1), cap).
func (q *Queue) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := q.cfg.BaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= q.cfg.CapDelay {
			return q.cfg.CapDelay
		}
	}
	if delay > q.cfg.CapDelay {
		return q.cfg.CapDelay
	}
	return delay
}

// Cleanup deletes done/failed jobs older than the retention window.
func (q *Queue) Cleanup(ctx context.Context, olderThanDays int) (int, error) {
	if olderThanDays < 0 {
		return 0, fmt.Errorf("retention days must be >= 0, got %d", olderThanDays)
	}
	cutoff := q.now().AddDate(0, 0, -olderThanDays)
	n, err := q.store.DeleteTerminalJobsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("cleaned up terminal jobs", "count", n, "older_than_days", olderThanDays)
	}
	return n, nil
}

// JobStatus returns the polled view of a source's latest job, or nil if
// the source has never been enqueued.
func (q *Queue) JobStatus(ctx context.Context, sourceID string) (*models.JobStatusInfo, error) {
	job, err := q.store.LatestJobBySource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	return &models.JobStatusInfo{
		JobID:     models.MustRecordIDString(job.ID),
		Status:    job.Status,
		Attempts:  job.Attempts,
		NextRunAt: job.NextRunAt,
		LastError: job.LastError,
	}, nil
}

// Stats returns job counts by status.
func (q *Queue) Stats(ctx context.Context) (models.QueueStats, error) {
	return q.store.CountJobsByStatus(ctx)
}
