// Package queue implements the durable ingestion job queue: idempotent
// enqueue, atomic claim with leases, retry backoff and terminal-job cleanup.
package queue

import (
	"context"
	"time"

	"github.com/avencia/ingestd/internal/models"
)

// JobStore is the persistence contract the queue runs on. The SurrealDB
// client implements it; tests use an in-memory store. Every mutation must
// be atomic on the store side. The claim operation in particular is a
// compare-and-set so that concurrent callers in any process never claim
// the same job twice.
type JobStore interface {
	// CreateOrGetActiveJob creates a pending job or returns the existing
	// active (pending/processing) job for the source.
	CreateOrGetActiveJob(ctx context.Context, jobID, sourceID string, kind models.SourceKind) (*models.Job, error)

	// ClaimNextJob atomically transitions the oldest eligible pending job
	// to processing with a lease. Returns (nil, nil) when no job is eligible.
	ClaimNextJob(ctx context.Context, lease time.Duration) (*models.Job, error)

	MarkJobDone(ctx context.Context, jobID string) error
	MarkJobPending(ctx context.Context, jobID string, attempts int, nextRunAt time.Time, lastError string) error
	MarkJobFailed(ctx context.Context, jobID string, attempts int, lastError string) error

	// ReclaimExpiredJobs returns processing jobs with expired leases to
	// pending, reporting how many were reclaimed.
	ReclaimExpiredJobs(ctx context.Context) (int, error)

	// DeleteTerminalJobsBefore purges done/failed jobs older than cutoff.
	DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error)

	LatestJobBySource(ctx context.Context, sourceID string) (*models.Job, error)
	CountJobsByStatus(ctx context.Context) (models.QueueStats, error)
}
