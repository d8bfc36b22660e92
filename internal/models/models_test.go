package models

import (
	"strings"
	"testing"
)

func TestNewChunkDraft(t *testing.T) {
	embedding := []float32{0.1, 0.2, 0.3, 0.4}

	d, err := NewChunkDraft(2, "some chunk text here", embedding, 4)
	if err != nil {
		t.Fatalf("NewChunkDraft returned error: %v", err)
	}
	if d.ChunkIndex != 2 {
		t.Errorf("index = %d, want 2", d.ChunkIndex)
	}
	if d.TokenCount != 4 {
		t.Errorf("token count = %d, want 4", d.TokenCount)
	}
	if d.StartTime != nil || d.EndTime != nil {
		t.Error("time range should be unset by default")
	}
}

func TestNewChunkDraftValidation(t *testing.T) {
	embedding := []float32{0.1, 0.2}

	tests := []struct {
		name      string
		index     int
		text      string
		embedding []float32
		wantDim   int
		errPart   string
	}{
		{"negative index", -1, "text", embedding, 2, "index must be >= 0"},
		{"empty text", 0, "", embedding, 2, "text is empty"},
		{"whitespace text", 0, "  \n\t ", embedding, 2, "text is empty"},
		{"dimension mismatch", 0, "text", embedding, 3, "dimension mismatch"},
		{"nil embedding", 0, "text", nil, 2, "dimension mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunkDraft(tt.index, tt.text, tt.embedding, tt.wantDim)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("error = %q, want it to mention %q", err, tt.errPart)
			}
		})
	}
}

func TestWithTimeRange(t *testing.T) {
	d, err := NewChunkDraft(0, "timed text", []float32{1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	d = d.WithTimeRange(300, 312.5)
	if d.StartTime == nil || *d.StartTime != 300 {
		t.Errorf("start = %v, want 300", d.StartTime)
	}
	if d.EndTime == nil || *d.EndTime != 312.5 {
		t.Errorf("end = %v, want 312.5", d.EndTime)
	}
}

func TestApproxTokenCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one two three", 3},
		{"spread\tacross\nlines  and   spaces", 5},
	}
	for _, tt := range tests {
		if got := ApproxTokenCount(tt.text); got != tt.want {
			t.Errorf("ApproxTokenCount(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		status   JobStatus
		active   bool
		terminal bool
	}{
		{JobStatusPending, true, false},
		{JobStatusProcessing, true, false},
		{JobStatusDone, false, true},
		{JobStatusFailed, false, true},
	}
	for _, tt := range tests {
		if got := tt.status.Active(); got != tt.active {
			t.Errorf("%s.Active() = %v, want %v", tt.status, got, tt.active)
		}
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestQueueStatsTotal(t *testing.T) {
	stats := QueueStats{Pending: 3, Processing: 1, Done: 10, Failed: 2}
	if got := stats.Total(); got != 16 {
		t.Errorf("Total() = %d, want 16", got)
	}
}

func TestValidKind(t *testing.T) {
	for _, k := range []SourceKind{SourceKindVideo, SourceKindWeb, SourceKindDocument, SourceKindFile} {
		if !ValidKind(k) {
			t.Errorf("ValidKind(%s) = false", k)
		}
	}
	if ValidKind(SourceKind("podcast")) {
		t.Error("ValidKind should reject unknown kinds")
	}
}
