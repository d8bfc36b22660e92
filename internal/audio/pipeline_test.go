package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avencia/ingestd/internal/transcribe"
)

type fakeSource struct {
	dir       string
	sizeBytes int
	path      string
}

func (f *fakeSource) DownloadAudio(_ context.Context, videoID string) (string, error) {
	path := filepath.Join(f.dir, videoID+".m4a")
	if err := os.WriteFile(path, make([]byte, f.sizeBytes), 0o644); err != nil {
		return "", err
	}
	f.path = path
	return path, nil
}

type fakeSegmenter struct {
	calls []Span
	paths []string
}

func (f *fakeSegmenter) Extract(_ context.Context, _, outPath string, start, length float64) error {
	f.calls = append(f.calls, Span{Index: len(f.calls), Start: start, Length: length})
	f.paths = append(f.paths, outPath)
	return os.WriteFile(outPath, []byte("seg"), 0o644)
}

// funcTranscriber returns a canned transcription per submitted file, in
// submission order keyed by the seg index embedded in the filename.
type funcTranscriber func(path string) (*transcribe.Transcription, error)

func (f funcTranscriber) Transcribe(_ context.Context, path string) (*transcribe.Transcription, error) {
	return f(path)
}

type fakeEmbedder struct {
	dim      int
	failText string

	mu    sync.Mutex
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failText != "" && text == f.failText {
		return nil, errors.New("embedding service unavailable")
	}
	vec := make([]float32, f.dim)
	vec[0] = float32(len(text))
	return vec, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func segs(texts ...string) []transcribe.Segment {
	out := make([]transcribe.Segment, len(texts))
	for i, text := range texts {
		out[i] = transcribe.Segment{
			Start: float64(i) * 10,
			End:   float64(i)*10 + 10,
			Text:  text,
		}
	}
	return out
}

func TestProcess_SingleSpanFlow(t *testing.T) {
	source := &fakeSource{dir: t.TempDir(), sizeBytes: 64}
	segmenter := &fakeSegmenter{}
	transcriber := funcTranscriber(func(path string) (*transcribe.Transcription, error) {
		return &transcribe.Transcription{Segments: segs("hello there", "second segment")}, nil
	})
	embedder := &fakeEmbedder{dim: 4}

	p := NewPipeline(source, segmenter, transcriber, embedder, DefaultPlanConfig(), nil)
	drafts, err := p.Process(context.Background(), "vid00000001", 120)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if len(segmenter.calls) != 0 {
		t.Errorf("segmenter invoked %d times for an unchunked file", len(segmenter.calls))
	}
	if len(drafts) != 2 {
		t.Fatalf("got %d drafts, want 2", len(drafts))
	}
	for i, d := range drafts {
		if d.ChunkIndex != i {
			t.Errorf("draft %d has chunk index %d", i, d.ChunkIndex)
		}
		if len(d.Embedding) != 4 {
			t.Errorf("draft %d embedding has dimension %d, want 4", i, len(d.Embedding))
		}
		if d.TokenCount != 2 {
			t.Errorf("draft %d token count = %d, want 2", i, d.TokenCount)
		}
	}
}

func TestProcess_ChunkedTimestampsAreAbsolute(t *testing.T) {
	source := &fakeSource{dir: t.TempDir(), sizeBytes: 64}
	segmenter := &fakeSegmenter{}
	transcriber := funcTranscriber(func(path string) (*transcribe.Transcription, error) {
		// every chunk reports the same relative segments
		return &transcribe.Transcription{Segments: segs("first words here", "more words here")}, nil
	})
	embedder := &fakeEmbedder{dim: 4}

	p := NewPipeline(source, segmenter, transcriber, embedder, DefaultPlanConfig(), nil)
	drafts, err := p.Process(context.Background(), "vid00000002", 1200)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if len(segmenter.calls) != 4 {
		t.Fatalf("segmenter invoked %d times, want 4", len(segmenter.calls))
	}
	if len(drafts) != 8 {
		t.Fatalf("got %d drafts, want 8", len(drafts))
	}

	for i, d := range drafts {
		if d.ChunkIndex != i {
			t.Errorf("draft %d has chunk index %d, want a globally increasing index", i, d.ChunkIndex)
		}
		chunk := i / 2
		rel := float64(i%2) * 10
		wantStart := float64(chunk)*300 + rel
		if d.StartTime == nil || *d.StartTime != wantStart {
			t.Errorf("draft %d start = %v, want %v", i, d.StartTime, wantStart)
		}
		if d.EndTime == nil || *d.EndTime != wantStart+10 {
			t.Errorf("draft %d end = %v, want %v", i, d.EndTime, wantStart+10)
		}
	}
}

func TestProcess_FiltersNoiseSegments(t *testing.T) {
	source := &fakeSource{dir: t.TempDir(), sizeBytes: 64}
	transcriber := funcTranscriber(func(path string) (*transcribe.Transcription, error) {
		return &transcribe.Transcription{Segments: segs("keep this one", "  a ", "", "ok", "and this")}, nil
	})
	embedder := &fakeEmbedder{dim: 4}

	p := NewPipeline(source, &fakeSegmenter{}, transcriber, embedder, DefaultPlanConfig(), nil)
	drafts, err := p.Process(context.Background(), "vid00000003", 60)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if len(drafts) != 2 {
		t.Fatalf("got %d drafts, want 2", len(drafts))
	}
	if drafts[0].Text != "keep this one" || drafts[1].Text != "and this" {
		t.Errorf("unexpected surviving texts: %q, %q", drafts[0].Text, drafts[1].Text)
	}
	if drafts[1].ChunkIndex != 1 {
		t.Errorf("indices not dense after filtering: second draft has index %d", drafts[1].ChunkIndex)
	}
	if embedder.calls != 2 {
		t.Errorf("embedder called %d times, filtered segments must not be embedded", embedder.calls)
	}
}

func TestProcess_EmbeddingFailureSkipsSegmentOnly(t *testing.T) {
	source := &fakeSource{dir: t.TempDir(), sizeBytes: 64}
	transcriber := funcTranscriber(func(path string) (*transcribe.Transcription, error) {
		return &transcribe.Transcription{Segments: segs("segment one", "segment two", "segment three")}, nil
	})
	embedder := &fakeEmbedder{dim: 4, failText: "segment two"}

	p := NewPipeline(source, &fakeSegmenter{}, transcriber, embedder, DefaultPlanConfig(), nil)
	drafts, err := p.Process(context.Background(), "vid00000004", 60)
	if err != nil {
		t.Fatalf("a single embedding failure must not fail the pipeline: %v", err)
	}

	if len(drafts) != 2 {
		t.Fatalf("got %d drafts, want 2", len(drafts))
	}
	if drafts[0].Text != "segment one" || drafts[1].Text != "segment three" {
		t.Errorf("unexpected surviving texts: %q, %q", drafts[0].Text, drafts[1].Text)
	}
	if drafts[0].ChunkIndex != 0 || drafts[1].ChunkIndex != 1 {
		t.Errorf("indices not dense after a skip: %d, %d", drafts[0].ChunkIndex, drafts[1].ChunkIndex)
	}
}

// trackingEmbedder records how many Embed calls overlap in time.
type trackingEmbedder struct {
	dim int

	mu          sync.Mutex
	inflight    int
	maxInflight int
}

func (f *trackingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()
	return make([]float32, f.dim), nil
}

func (f *trackingEmbedder) Dimension() int { return f.dim }

func TestProcess_EmbedsSegmentsConcurrently(t *testing.T) {
	source := &fakeSource{dir: t.TempDir(), sizeBytes: 64}
	transcriber := funcTranscriber(func(path string) (*transcribe.Transcription, error) {
		return &transcribe.Transcription{Segments: segs("segment one", "segment two", "segment three", "segment four")}, nil
	})
	embedder := &trackingEmbedder{dim: 4}

	p := NewPipeline(source, &fakeSegmenter{}, transcriber, embedder, DefaultPlanConfig(), nil)
	drafts, err := p.Process(context.Background(), "vid00000008", 60)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if len(drafts) != 4 {
		t.Fatalf("got %d drafts, want 4", len(drafts))
	}
	for i, d := range drafts {
		if d.ChunkIndex != i {
			t.Errorf("draft %d has chunk index %d, fan-out must not reorder chunks", i, d.ChunkIndex)
		}
	}
	if embedder.maxInflight < 2 {
		t.Errorf("max concurrent embeds = %d, segments should be embedded concurrently", embedder.maxInflight)
	}
}

func TestProcess_TranscriptionErrorFailsJob(t *testing.T) {
	source := &fakeSource{dir: t.TempDir(), sizeBytes: 64}
	transcriber := funcTranscriber(func(path string) (*transcribe.Transcription, error) {
		return nil, errors.New("whisper unavailable")
	})

	p := NewPipeline(source, &fakeSegmenter{}, transcriber, &fakeEmbedder{dim: 4}, DefaultPlanConfig(), nil)
	_, err := p.Process(context.Background(), "vid00000005", 60)
	if err == nil {
		t.Fatal("Process should fail when transcription fails")
	}
}

func TestProcess_RemovesTempFilesOnBothPaths(t *testing.T) {
	tests := []struct {
		name string
		fail bool
	}{
		{"success", false},
		{"transcription failure", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{dir: t.TempDir(), sizeBytes: 64}
			segmenter := &fakeSegmenter{}
			transcriber := funcTranscriber(func(path string) (*transcribe.Transcription, error) {
				if tt.fail {
					return nil, errors.New("whisper unavailable")
				}
				return &transcribe.Transcription{Segments: segs("some words")}, nil
			})

			p := NewPipeline(source, segmenter, transcriber, &fakeEmbedder{dim: 4}, DefaultPlanConfig(), nil)
			_, err := p.Process(context.Background(), "vid00000006", 900)
			if tt.fail && err == nil {
				t.Fatal("expected failure")
			}
			if !tt.fail && err != nil {
				t.Fatalf("Process returned error: %v", err)
			}

			for _, path := range append([]string{source.path}, segmenter.paths...) {
				if _, err := os.Stat(path); !os.IsNotExist(err) {
					t.Errorf("temp file %s not removed", path)
				}
			}
		})
	}
}

func TestProcess_SegmentNamesAreOrdered(t *testing.T) {
	source := &fakeSource{dir: t.TempDir(), sizeBytes: 64}
	segmenter := &fakeSegmenter{}
	transcriber := funcTranscriber(func(path string) (*transcribe.Transcription, error) {
		return &transcribe.Transcription{Segments: segs("ordered words")}, nil
	})

	p := NewPipeline(source, segmenter, transcriber, &fakeEmbedder{dim: 4}, DefaultPlanConfig(), nil)
	if _, err := p.Process(context.Background(), "vid00000007", 700); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	for i, path := range segmenter.paths {
		want := fmt.Sprintf("seg%03d", i)
		if !strings.Contains(filepath.Base(path), want) {
			t.Errorf("segment path %q missing %q", path, want)
		}
	}
}
