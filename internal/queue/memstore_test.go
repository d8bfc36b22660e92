package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avencia/ingestd/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// memStore is an in-memory JobStore for queue tests. A single mutex around
// every operation gives the same atomicity the document store provides.
type memStore struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
	now  func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		jobs: make(map[string]*models.Job),
		now:  time.Now,
	}
}

func record(id string) surrealmodels.RecordID {
	return surrealmodels.RecordID{Table: "job", ID: id}
}

func (s *memStore) CreateOrGetActiveJob(_ context.Context, jobID, sourceID string, kind models.SourceKind) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.SourceID == sourceID && j.Status.Active() {
			cp := *j
			return &cp, nil
		}
	}

	now := s.now()
	job := &models.Job{
		ID:        record(jobID),
		SourceID:  sourceID,
		Kind:      kind,
		Status:    models.JobStatusPending,
		NextRunAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[jobID] = job
	cp := *job
	return &cp, nil
}

func (s *memStore) ClaimNextJob(_ context.Context, lease time.Duration) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var eligible []*models.Job
	for _, j := range s.jobs {
		if j.Status == models.JobStatusPending && !j.NextRunAt.After(now) {
			eligible = append(eligible, j)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	sort.Slice(eligible, func(i, k int) bool {
		return eligible[i].NextRunAt.Before(eligible[k].NextRunAt)
	})

	j := eligible[0]
	j.Status = models.JobStatusProcessing
	exp := now.Add(lease)
	j.LeaseExpiresAt = &exp
	j.UpdatedAt = now
	cp := *j
	return &cp, nil
}

func (s *memStore) MarkJobDone(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		j.Status = models.JobStatusDone
		j.LeaseExpiresAt = nil
		j.UpdatedAt = s.now()
	}
	return nil
}

func (s *memStore) MarkJobPending(_ context.Context, jobID string, attempts int, nextRunAt time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		j.Status = models.JobStatusPending
		j.Attempts = attempts
		j.NextRunAt = nextRunAt
		j.LastError = &lastError
		j.LeaseExpiresAt = nil
		j.UpdatedAt = s.now()
	}
	return nil
}

func (s *memStore) MarkJobFailed(_ context.Context, jobID string, attempts int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		j.Status = models.JobStatusFailed
		j.Attempts = attempts
		j.LastError = &lastError
		j.LeaseExpiresAt = nil
		j.UpdatedAt = s.now()
	}
	return nil
}

func (s *memStore) ReclaimExpiredJobs(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for _, j := range s.jobs {
		if j.Status == models.JobStatusProcessing && j.LeaseExpiresAt != nil && j.LeaseExpiresAt.Before(now) {
			j.Status = models.JobStatusPending
			j.LeaseExpiresAt = nil
			j.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteTerminalJobsBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, j := range s.jobs {
		if j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) LatestJobBySource(_ context.Context, sourceID string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Job
	for _, j := range s.jobs {
		if j.SourceID != sourceID {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *memStore) CountJobsByStatus(_ context.Context) (models.QueueStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats models.QueueStats
	for _, j := range s.jobs {
		switch j.Status {
		case models.JobStatusPending:
			stats.Pending++
		case models.JobStatusProcessing:
			stats.Processing++
		case models.JobStatusDone:
			stats.Done++
		case models.JobStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}
