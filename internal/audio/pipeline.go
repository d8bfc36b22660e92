package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"

	"github.com/avencia/ingestd/internal/metrics"
	"github.com/avencia/ingestd/internal/models"
	"github.com/avencia/ingestd/internal/transcribe"
)

// minSegmentChars is the shortest trimmed segment text worth keeping.
// Anything below it is filler or transcription noise.
const minSegmentChars = 3

// embedConcurrency caps the embedding fan-out. Long videos yield hundreds
// of segments; the provider does not want them all at once.
const embedConcurrency = 8

// AudioSource downloads an audio track for a video id and returns the
// local file path.
type AudioSource interface {
	DownloadAudio(ctx context.Context, videoID string) (string, error)
}

// SegmentExtractor cuts a span out of an audio file.
type SegmentExtractor interface {
	Extract(ctx context.Context, inPath, outPath string, startSeconds, lengthSeconds float64) error
}

// Embedder turns a text segment into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Pipeline runs the full audio ingestion flow for one video: download,
// chunking decision, transcription fan-out, timestamp normalization,
// filtering, embedding and chunk assembly.
type Pipeline struct {
	source      AudioSource
	segmenter   SegmentExtractor
	transcriber transcribe.Transcriber
	embedder    Embedder
	planCfg     PlanConfig
	collector   *metrics.Collector
}

// NewPipeline constructs an audio pipeline. A nil collector means
// metrics are discarded into a fresh one.
func NewPipeline(source AudioSource, segmenter SegmentExtractor, transcriber transcribe.Transcriber, embedder Embedder, planCfg PlanConfig, collector *metrics.Collector) *Pipeline {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Pipeline{
		source:      source,
		segmenter:   segmenter,
		transcriber: transcriber,
		embedder:    embedder,
		planCfg:     planCfg,
		collector:   collector,
	}
}

// chunkResult pairs a transcription with the span it came from so
// timestamps can be shifted back onto the original media timeline.
type chunkResult struct {
	span Span
	tr   *transcribe.Transcription
	err  error
}

// Process ingests one video's audio and returns the assembled chunk
// drafts in chunk-index order. Temp files are removed on both the
// success and failure paths; removal failures are logged, not returned.
func (p *Pipeline) Process(ctx context.Context, videoID string, durationSeconds float64) ([]models.ChunkDraft, error) {
	var tempFiles []string
	defer func() {
		for _, path := range tempFiles {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				slog.Warn("temp file cleanup failed", "path", path, "error", err)
			}
		}
	}()

	start := time.Now()
	audioPath, err := p.source.DownloadAudio(ctx, videoID)
	if err != nil {
		p.collector.RecordFailure(metrics.OpDownload, time.Since(start))
		return nil, fmt.Errorf("download audio: %w", err)
	}
	p.collector.Record(metrics.OpDownload, time.Since(start))
	tempFiles = append(tempFiles, audioPath)

	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("stat audio file: %w", err)
	}

	plan := BuildPlan(info.Size(), durationSeconds, p.planCfg)
	slog.Info("audio plan built",
		"video_id", videoID,
		"size_bytes", info.Size(),
		"duration_s", durationSeconds,
		"chunked", plan.Chunked,
		"spans", len(plan.Spans))

	chunkPaths, extracted, err := p.materialize(ctx, audioPath, plan)
	tempFiles = append(tempFiles, extracted...)
	if err != nil {
		return nil, err
	}

	results, err := p.transcribeAll(ctx, chunkPaths, plan.Spans)
	if err != nil {
		return nil, err
	}

	return p.assemble(ctx, videoID, results)
}

// materialize produces one audio file per span. Unchunked audio is
// submitted as-is; chunked audio is cut with the segmenter.
func (p *Pipeline) materialize(ctx context.Context, audioPath string, plan Plan) (paths []string, extracted []string, err error) {
	if !plan.Chunked {
		return []string{audioPath}, nil, nil
	}

	dir := filepath.Dir(audioPath)
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))

	for _, span := range plan.Spans {
		outPath := filepath.Join(dir, fmt.Sprintf("%s-seg%03d.m4a", base, span.Index))

		segStart := time.Now()
		if err := p.segmenter.Extract(ctx, audioPath, outPath, span.Start, span.Length); err != nil {
			p.collector.RecordFailure(metrics.OpSegment, time.Since(segStart))
			return nil, extracted, fmt.Errorf("segment %d: %w", span.Index, err)
		}
		p.collector.Record(metrics.OpSegment, time.Since(segStart))

		extracted = append(extracted, outPath)
		paths = append(paths, outPath)
	}
	return paths, extracted, nil
}

// transcribeAll fans transcription out across all chunk files at once.
// The fan-out is bounded only by the chunk count of this one video, so
// a very long video spikes concurrent transcription calls accordingly.
func (p *Pipeline) transcribeAll(ctx context.Context, chunkPaths []string, spans []Span) ([]chunkResult, error) {
	results := make([]chunkResult, len(chunkPaths))

	pool, err := ants.NewPool(len(chunkPaths))
	if err != nil {
		return nil, fmt.Errorf("create transcription pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range chunkPaths {
		i := i
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			start := time.Now()
			tr, err := p.transcriber.Transcribe(ctx, chunkPaths[i])
			if err != nil {
				p.collector.RecordFailure(metrics.OpTranscribe, time.Since(start))
			} else {
				p.collector.Record(metrics.OpTranscribe, time.Since(start))
			}
			results[i] = chunkResult{span: spans[i], tr: tr, err: err}
		})
		if submitErr != nil {
			wg.Done()
			return nil, fmt.Errorf("submit transcription task: %w", submitErr)
		}
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("transcribe chunk %d: %w", r.span.Index, r.err)
		}
	}
	return results, nil
}

// segmentCandidate is one kept segment with its timestamps already
// shifted onto the original media timeline.
type segmentCandidate struct {
	text       string
	start, end float64
	chunk      int
	seg        transcribe.Segment
}

// assemble normalizes timestamps onto the original media timeline, drops
// noise segments, embeds the rest concurrently and numbers chunks globally
// across all audio chunks in sorted order. A single segment's embedding
// failure skips that segment rather than failing the whole video.
func (p *Pipeline) assemble(ctx context.Context, videoID string, results []chunkResult) ([]models.ChunkDraft, error) {
	var candidates []segmentCandidate
	for _, r := range results {
		for _, seg := range r.tr.Segments {
			text := strings.TrimSpace(seg.Text)
			if utf8.RuneCountInString(text) < minSegmentChars {
				continue
			}
			candidates = append(candidates, segmentCandidate{
				text:  text,
				start: r.span.Start + seg.Start,
				end:   r.span.Start + seg.End,
				chunk: r.span.Index,
				seg:   seg,
			})
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	embeddings, embedErrs, err := p.embedAll(ctx, candidates)
	if err != nil {
		return nil, err
	}

	var drafts []models.ChunkDraft
	chunkIndex := 0
	skipped := 0
	for i, c := range candidates {
		if embedErrs[i] != nil {
			slog.Warn("segment embedding failed, skipping",
				"video_id", videoID,
				"chunk", c.chunk,
				"segment_start", c.seg.Start,
				"error", embedErrs[i])
			skipped++
			continue
		}

		draft, err := models.NewChunkDraft(chunkIndex, c.text, embeddings[i], p.embedder.Dimension())
		if err != nil {
			return nil, fmt.Errorf("assemble chunk %d: %w", chunkIndex, err)
		}
		draft = draft.WithTimeRange(c.start, c.end)
		draft.Metadata = map[string]any{
			"avg_logprob":       c.seg.AvgLogProb,
			"no_speech_prob":    c.seg.NoSpeechProb,
			"compression_ratio": c.seg.CompressionRatio,
		}

		drafts = append(drafts, draft)
		chunkIndex++
	}

	if skipped > 0 {
		slog.Warn("segments skipped after embedding failures", "video_id", videoID, "skipped", skipped, "kept", len(drafts))
	}
	return drafts, nil
}

// embedAll fans embedding out over the candidates on a bounded pool.
// Results are indexed by candidate so assembly order stays deterministic.
func (p *Pipeline) embedAll(ctx context.Context, candidates []segmentCandidate) ([][]float32, []error, error) {
	embeddings := make([][]float32, len(candidates))
	embedErrs := make([]error, len(candidates))

	pool, err := ants.NewPool(min(len(candidates), embedConcurrency))
	if err != nil {
		return nil, nil, fmt.Errorf("create embedding pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range candidates {
		i := i
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			start := time.Now()
			embedding, err := p.embedder.Embed(ctx, candidates[i].text)
			if err != nil {
				p.collector.RecordFailure(metrics.OpEmbed, time.Since(start))
				embedErrs[i] = err
				return
			}
			p.collector.Record(metrics.OpEmbed, time.Since(start))
			embeddings[i] = embedding
		})
		if submitErr != nil {
			wg.Done()
			return nil, nil, fmt.Errorf("submit embedding task: %w", submitErr)
		}
	}
	wg.Wait()

	return embeddings, embedErrs, nil
}
