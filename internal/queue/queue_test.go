package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avencia/ingestd/internal/models"
)

func TestEnqueue_IdempotentPerSource(t *testing.T) {
	ctx := context.Background()
	q := New(newMemStore(), DefaultConfig())

	first, err := q.Enqueue(ctx, "src-1", models.SourceKindVideo)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	second, err := q.Enqueue(ctx, "src-1", models.SourceKindVideo)
	if err != nil {
		t.Fatalf("second Enqueue failed: %v", err)
	}

	if models.MustRecordIDString(first.ID) != models.MustRecordIDString(second.ID) {
		t.Errorf("duplicate enqueue created a second active job: %v vs %v", first.ID, second.ID)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Pending != 1 {
		t.Errorf("expected 1 pending job, got %d", stats.Pending)
	}
}

func TestEnqueue_RejectsUnknownKind(t *testing.T) {
	q := New(newMemStore(), DefaultConfig())
	if _, err := q.Enqueue(context.Background(), "src-1", models.SourceKind("carrier-pigeon")); err == nil {
		t.Error("expected error for unknown source kind")
	}
}

func TestEnqueue_NewJobAfterTerminal(t *testing.T) {
	ctx := context.Background()
	q := New(newMemStore(), DefaultConfig())

	first, err := q.Enqueue(ctx, "src-1", models.SourceKindWeb)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	claimed, err := q.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("Claim failed: %v, job=%v", err, claimed)
	}
	if err := q.Complete(ctx, claimed); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	// A terminal job no longer blocks re-enqueue.
	second, err := q.Enqueue(ctx, "src-1", models.SourceKindWeb)
	if err != nil {
		t.Fatalf("re-enqueue failed: %v", err)
	}
	if models.MustRecordIDString(first.ID) == models.MustRecordIDString(second.ID) {
		t.Error("re-enqueue after completion should create a new job")
	}
}

func TestClaim_EmptyQueueIsIdle(t *testing.T) {
	q := New(newMemStore(), DefaultConfig())
	job, err := q.Claim(context.Background())
	if err != nil {
		t.Fatalf("Claim on empty queue returned error: %v", err)
	}
	if job != nil {
		t.Errorf("Claim on empty queue returned a job: %+v", job)
	}
}

func TestClaim_ConcurrentCallersNeverShareAJob(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	q := New(store, DefaultConfig())

	const jobs = 20
	const claimers = 8

	for i := 0; i < jobs; i++ {
		if _, err := q.Enqueue(ctx, sourceID(i), models.SourceKindDocument); err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
	}

	var (
		mu      sync.Mutex
		claimed = make(map[string]int)
		wg      sync.WaitGroup
	)
	for c := 0; c < claimers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := q.Claim(ctx)
				if err != nil {
					t.Errorf("Claim failed: %v", err)
					return
				}
				if job == nil {
					return
				}
				mu.Lock()
				claimed[models.MustRecordIDString(job.ID)]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != jobs {
		t.Errorf("expected %d distinct jobs claimed, got %d", jobs, len(claimed))
	}
	for id, n := range claimed {
		if n != 1 {
			t.Errorf("job %s claimed %d times", id, n)
		}
	}
}

func TestBackoff_Sequence(t *testing.T) {
	q := New(newMemStore(), DefaultConfig())

	want := []time.Duration{
		1 * time.Minute,
		2 * time.Minute,
		4 * time.Minute,
		8 * time.Minute,
		16 * time.Minute,
		30 * time.Minute, // capped
		30 * time.Minute,
	}
	var prev time.Duration
	for i, w := range want {
		got := q.Backoff(i + 1)
		if got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
		if got < prev {
			t.Errorf("backoff decreased at attempt %d: %v < %v", i+1, got, prev)
		}
		prev = got
	}
}

func TestRetryOrFail_RespectsMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	q := New(store, DefaultConfig())
	// Freeze time so rescheduled jobs stay eligible.
	q.now = func() time.Time { return time.Now().Add(-time.Hour) }

	if _, err := q.Enqueue(ctx, "src-1", models.SourceKindVideo); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	cause := errors.New("download timed out")
	failures := 0
	for {
		job, err := q.Claim(ctx)
		if err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if job == nil {
			break
		}
		failures++
		if failures > DefaultMaxAttempts {
			t.Fatalf("job ran %d times, max attempts is %d", failures, DefaultMaxAttempts)
		}
		if err := q.RetryOrFail(ctx, job, cause); err != nil {
			t.Fatalf("RetryOrFail failed: %v", err)
		}
	}

	if failures != DefaultMaxAttempts {
		t.Errorf("job executed %d times, want %d", failures, DefaultMaxAttempts)
	}

	status, err := q.JobStatus(ctx, "src-1")
	if err != nil {
		t.Fatalf("JobStatus failed: %v", err)
	}
	if status.Status != models.JobStatusFailed {
		t.Errorf("expected failed status, got %s", status.Status)
	}
	if status.Attempts != DefaultMaxAttempts {
		t.Errorf("attempts = %d, want %d", status.Attempts, DefaultMaxAttempts)
	}
	if status.LastError == nil || *status.LastError != cause.Error() {
		t.Errorf("last error = %v, want %q", status.LastError, cause.Error())
	}
}

func TestRetryOrFail_BacksOffBeforeNextRun(t *testing.T) {
	ctx := context.Background()
	q := New(newMemStore(), DefaultConfig())

	if _, err := q.Enqueue(ctx, "src-1", models.SourceKindWeb); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	job, err := q.Claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("Claim failed: %v, job=%v", err, job)
	}
	if err := q.RetryOrFail(ctx, job, errors.New("boom")); err != nil {
		t.Fatalf("RetryOrFail failed: %v", err)
	}

	// The retry is scheduled a minute out, so nothing is eligible now.
	again, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if again != nil {
		t.Errorf("job became eligible before its backoff elapsed: %+v", again)
	}
}

func TestFail_IsTerminalImmediately(t *testing.T) {
	ctx := context.Background()
	q := New(newMemStore(), DefaultConfig())

	if _, err := q.Enqueue(ctx, "src-1", models.SourceKindVideo); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	job, err := q.Claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("Claim failed: %v, job=%v", err, job)
	}
	if err := q.Fail(ctx, job, errors.New("unparsable locator")); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	status, err := q.JobStatus(ctx, "src-1")
	if err != nil {
		t.Fatalf("JobStatus failed: %v", err)
	}
	if status.Status != models.JobStatusFailed {
		t.Errorf("expected failed, got %s", status.Status)
	}
	if status.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retries for permanent errors)", status.Attempts)
	}
}

func TestClaim_ReclaimsExpiredLeases(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	q := New(store, Config{Lease: 1 * time.Millisecond})

	if _, err := q.Enqueue(ctx, "src-1", models.SourceKindVideo); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	first, err := q.Claim(ctx)
	if err != nil || first == nil {
		t.Fatalf("Claim failed: %v, job=%v", err, first)
	}

	// Simulate a crashed worker: the lease expires without completion.
	time.Sleep(5 * time.Millisecond)

	second, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim after lease expiry failed: %v", err)
	}
	if second == nil {
		t.Fatal("expected expired job to be reclaimed and re-claimed")
	}
	if models.MustRecordIDString(first.ID) != models.MustRecordIDString(second.ID) {
		t.Errorf("reclaimed job has unexpected identity: %v vs %v", first.ID, second.ID)
	}
}

func TestCleanup_PurgesOldTerminalJobs(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	q := New(store, DefaultConfig())

	if _, err := q.Enqueue(ctx, "src-1", models.SourceKindVideo); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	job, err := q.Claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("Claim failed: %v, job=%v", err, job)
	}
	if err := q.Complete(ctx, job); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	// Jobs completed just now are inside the retention window.
	n, err := q.Cleanup(ctx, 30)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Cleanup purged %d jobs inside the retention window", n)
	}

	// Retention of 0 days purges everything terminal.
	q.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err = q.Cleanup(ctx, 0)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Cleanup purged %d jobs, want 1", n)
	}
}

func TestJobStatus_UnknownSource(t *testing.T) {
	q := New(newMemStore(), DefaultConfig())
	status, err := q.JobStatus(context.Background(), "never-enqueued")
	if err != nil {
		t.Fatalf("JobStatus failed: %v", err)
	}
	if status != nil {
		t.Errorf("expected nil status for unknown source, got %+v", status)
	}
}

func sourceID(i int) string {
	return "src-" + string(rune('a'+i%26)) + "-" + string(rune('0'+i/26))
}
