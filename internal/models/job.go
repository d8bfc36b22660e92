package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// JobStatus represents the state of a persisted ingestion job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// Active reports whether the status counts toward the one-active-job-per-source
// invariant.
func (s JobStatus) Active() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}

// Terminal reports whether the job can no longer run.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Job identifies one unit of ingestion work tied to a source.
type Job struct {
	ID             surrealmodels.RecordID `json:"id"`
	SourceID       string                 `json:"source_id"`
	Kind           SourceKind             `json:"kind"`
	Status         JobStatus              `json:"status"`
	Attempts       int                    `json:"attempts"`
	NextRunAt      time.Time              `json:"next_run_at"`
	LeaseExpiresAt *time.Time             `json:"lease_expires_at,omitempty"`
	LastError      *string                `json:"last_error,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// JobStatusInfo is the polled view of a source's ingestion job.
type JobStatusInfo struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Attempts  int       `json:"attempts"`
	NextRunAt time.Time `json:"next_run_at"`
	LastError *string   `json:"last_error,omitempty"`
}

// QueueStats holds job counts by status for operational visibility.
type QueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
}

// Total returns the total number of jobs across all statuses.
func (s QueueStats) Total() int {
	return s.Pending + s.Processing + s.Done + s.Failed
}
