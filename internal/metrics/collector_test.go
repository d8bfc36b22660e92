package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestCollectorRecord(t *testing.T) {
	c := NewCollector()
	c.Record(OpJob, 100*time.Millisecond)
	c.Record(OpJob, 300*time.Millisecond)
	c.RecordFailure(OpJob, 200*time.Millisecond)

	snap := c.Snapshot()
	if snap.Jobs == nil {
		t.Fatal("jobs snapshot is nil")
	}
	if snap.Jobs.Count != 3 {
		t.Errorf("count = %d, want 3", snap.Jobs.Count)
	}
	if snap.Jobs.Failures != 1 {
		t.Errorf("failures = %d, want 1", snap.Jobs.Failures)
	}
	if snap.Jobs.TotalTimeMs != 600 {
		t.Errorf("total = %d, want 600", snap.Jobs.TotalTimeMs)
	}
	if snap.Jobs.AvgTimeMs != 200 {
		t.Errorf("avg = %v, want 200", snap.Jobs.AvgTimeMs)
	}
	if snap.Jobs.MinTimeMs != 100 || snap.Jobs.MaxTimeMs != 300 {
		t.Errorf("min/max = %d/%d, want 100/300", snap.Jobs.MinTimeMs, snap.Jobs.MaxTimeMs)
	}
}

func TestSnapshotEmptyOpsAreNil(t *testing.T) {
	c := NewCollector()
	c.Record(OpDownload, time.Millisecond)

	snap := c.Snapshot()
	if snap.Download == nil {
		t.Error("download snapshot should be present")
	}
	for name, op := range map[string]*OperationSnapshot{
		"jobs":       snap.Jobs,
		"segment":    snap.Segment,
		"transcribe": snap.Transcribe,
		"embed":      snap.Embed,
	} {
		if op != nil {
			t.Errorf("%s snapshot should be nil with no data", name)
		}
	}
}

func TestCollectorConcurrentAccess(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Record(OpEmbed, time.Millisecond)
				c.Snapshot()
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.Embed == nil || snap.Embed.Count != 1000 {
		t.Errorf("embed snapshot = %+v, want count 1000", snap.Embed)
	}
}

func TestSnapshotUptime(t *testing.T) {
	c := NewCollector()
	if up := c.Snapshot().UptimeSeconds; up < 0 {
		t.Errorf("uptime = %v, want >= 0", up)
	}
}
