package db

import (
	"context"
	"fmt"
	"time"

	"github.com/avencia/ingestd/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// CreateOrGetActiveJob creates a pending job for the source, or returns the
// existing active job if one is already pending or processing (idempotent
// enqueue). Both statements run in one request so the whole operation is a
// single store transaction.
func (c *Client) CreateOrGetActiveJob(ctx context.Context, jobID, sourceID string, kind models.SourceKind) (*models.Job, error) {
	sql := `
		LET $existing = SELECT * FROM job
			WHERE source_id = $source_id AND status IN ["pending", "processing"]
			LIMIT 1;
		IF array::len($existing) > 0 {
			$existing
		} ELSE {
			CREATE type::record("job", $job_id) SET
				source_id = $source_id,
				kind = $kind,
				status = "pending",
				attempts = 0,
				next_run_at = time::now()
		};
	`

	results, err := surrealdb.Query[[]models.Job](ctx, c.db, sql, map[string]any{
		"job_id":    jobID,
		"source_id": sourceID,
		"kind":      string(kind),
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return nil, fmt.Errorf("enqueue job: no result returned")
	}
	last := (*results)[len(*results)-1].Result
	if len(last) == 0 {
		return nil, fmt.Errorf("enqueue job: no result returned")
	}
	return &last[0], nil
}

// ClaimNextJob atomically selects the oldest-eligible pending job and
// transitions it to processing with a fresh lease. A single guarded UPDATE
// keeps concurrent callers (including other worker processes) from
// claiming the same job twice. Returns nil when no job is eligible.
func (c *Client) ClaimNextJob(ctx context.Context, lease time.Duration) (*models.Job, error) {
	sql := `
		UPDATE (
			SELECT VALUE id FROM job
			WHERE status = "pending" AND next_run_at <= time::now()
			ORDER BY next_run_at ASC
			LIMIT 1
		) SET
			status = "processing",
			lease_expires_at = time::now() + <duration>$lease,
			updated_at = time::now()
		WHERE status = "pending"
		RETURN AFTER
	`

	results, err := surrealdb.Query[[]models.Job](ctx, c.db, sql, map[string]any{
		"lease": fmt.Sprintf("%ds", int(lease.Seconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		// No eligible work; not an error.
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// MarkJobDone sets a job to done and clears its lease.
func (c *Client) MarkJobDone(ctx context.Context, jobID string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("job", $id) SET
			status = "done",
			lease_expires_at = NONE,
			updated_at = time::now()
	`, map[string]any{"id": jobID})
	if err != nil {
		return fmt.Errorf("complete job: %w", wrapQueryError(err))
	}
	return nil
}

// MarkJobPending returns a job to pending for a later retry, recording the
// attempt count, backoff deadline and last error, and clearing the lease.
func (c *Client) MarkJobPending(ctx context.Context, jobID string, attempts int, nextRunAt time.Time, lastError string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("job", $id) SET
			status = "pending",
			attempts = $attempts,
			next_run_at = <datetime>$next_run_at,
			last_error = $last_error,
			lease_expires_at = NONE,
			updated_at = time::now()
	`, map[string]any{
		"id":          jobID,
		"attempts":    attempts,
		"next_run_at": nextRunAt.UTC().Format(time.RFC3339Nano),
		"last_error":  lastError,
	})
	if err != nil {
		return fmt.Errorf("retry job: %w", wrapQueryError(err))
	}
	return nil
}

// MarkJobFailed sets a job to failed terminally.
func (c *Client) MarkJobFailed(ctx context.Context, jobID string, attempts int, lastError string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("job", $id) SET
			status = "failed",
			attempts = $attempts,
			last_error = $last_error,
			lease_expires_at = NONE,
			updated_at = time::now()
	`, map[string]any{
		"id":         jobID,
		"attempts":   attempts,
		"last_error": lastError,
	})
	if err != nil {
		return fmt.Errorf("fail job: %w", wrapQueryError(err))
	}
	return nil
}

// ReclaimExpiredJobs returns any job stuck in processing past its lease
// back to pending. Guards against workers that crashed mid-job.
func (c *Client) ReclaimExpiredJobs(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]models.Job](ctx, c.db, `
		UPDATE job SET
			status = "pending",
			lease_expires_at = NONE,
			updated_at = time::now()
		WHERE status = "processing"
			AND lease_expires_at != NONE
			AND lease_expires_at < time::now()
		RETURN AFTER
	`, nil)
	if err != nil {
		return 0, fmt.Errorf("reclaim leases: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

// DeleteTerminalJobsBefore deletes done/failed jobs last updated before the
// cutoff. Returns the number of jobs deleted.
func (c *Client) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	results, err := surrealdb.Query[[]models.Job](ctx, c.db, `
		DELETE job
		WHERE status IN ["done", "failed"] AND updated_at < <datetime>$cutoff
		RETURN BEFORE
	`, map[string]any{
		"cutoff": cutoff.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup jobs: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

// LatestJobBySource returns the most recently created job for a source, or
// nil if the source has never been enqueued.
func (c *Client) LatestJobBySource(ctx context.Context, sourceID string) (*models.Job, error) {
	results, err := surrealdb.Query[[]models.Job](ctx, c.db, `
		SELECT * FROM job
		WHERE source_id = $source_id
		ORDER BY created_at DESC
		LIMIT 1
	`, map[string]any{"source_id": sourceID})
	if err != nil {
		return nil, fmt.Errorf("get job by source: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// GetJob returns one job by id, or ErrNotFound.
func (c *Client) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	results, err := surrealdb.Query[[]models.Job](ctx, c.db, `
		SELECT * FROM type::record("job", $id)
	`, map[string]any{"id": jobID})
	if err != nil {
		return nil, fmt.Errorf("get job: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// ListRecentJobs returns the most recently created jobs, newest first.
func (c *Client) ListRecentJobs(ctx context.Context, limit int) ([]models.Job, error) {
	results, err := surrealdb.Query[[]models.Job](ctx, c.db, `
		SELECT * FROM job
		ORDER BY created_at DESC
		LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

// statusCount is the GROUP BY row shape for job stats.
type statusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// CountJobsByStatus returns job counts grouped by status.
func (c *Client) CountJobsByStatus(ctx context.Context) (models.QueueStats, error) {
	results, err := surrealdb.Query[[]statusCount](ctx, c.db, `
		SELECT status, count() AS count FROM job GROUP BY status
	`, nil)
	if err != nil {
		return models.QueueStats{}, fmt.Errorf("queue stats: %w", wrapQueryError(err))
	}

	var stats models.QueueStats
	if results == nil || len(*results) == 0 {
		return stats, nil
	}
	for _, row := range (*results)[0].Result {
		switch models.JobStatus(row.Status) {
		case models.JobStatusPending:
			stats.Pending = row.Count
		case models.JobStatusProcessing:
			stats.Processing = row.Count
		case models.JobStatusDone:
			stats.Done = row.Count
		case models.JobStatusFailed:
			stats.Failed = row.Count
		}
	}
	return stats, nil
}
