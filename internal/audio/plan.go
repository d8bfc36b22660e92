// Package audio orchestrates the audio ingestion pipeline: segmentation
// planning, transcription fan-out, timestamp normalization, filtering,
// embedding and chunk assembly.
package audio

// PlanConfig holds the thresholds for the chunking decision.
type PlanConfig struct {
	// ThresholdBytes is the file size at or above which audio is chunked.
	ThresholdBytes int64
	// ThresholdSeconds is the duration at or above which audio is chunked.
	ThresholdSeconds float64
	// ChunkSeconds is the fixed segment length used when chunking.
	ChunkSeconds float64
}

// DefaultPlanConfig matches the speech-to-text API's practical upload
// limits: files at or above 25 MiB or 10 minutes get split into
// 5-minute segments.
func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		ThresholdBytes:   25 * 1024 * 1024,
		ThresholdSeconds: 600,
		ChunkSeconds:     300,
	}
}

// Span is one planned audio segment. Start is the offset into the
// original file; Length may be shorter than ChunkSeconds for the final
// span.
type Span struct {
	Index  int
	Start  float64
	Length float64
}

// End returns the exclusive end offset of the span.
func (s Span) End() float64 {
	return s.Start + s.Length
}

// Plan describes how an audio file will be submitted for transcription.
type Plan struct {
	Chunked bool
	Spans   []Span
}

// BuildPlan decides whether an audio file needs chunking and lays out
// the spans. Spans are sequential and non-overlapping.
func BuildPlan(sizeBytes int64, durationSeconds float64, cfg PlanConfig) Plan {
	if cfg.ThresholdBytes <= 0 || cfg.ThresholdSeconds <= 0 || cfg.ChunkSeconds <= 0 {
		cfg = DefaultPlanConfig()
	}

	if sizeBytes < cfg.ThresholdBytes && durationSeconds < cfg.ThresholdSeconds {
		return Plan{
			Chunked: false,
			Spans:   []Span{{Index: 0, Start: 0, Length: durationSeconds}},
		}
	}

	var spans []Span
	for start := 0.0; start < durationSeconds; start += cfg.ChunkSeconds {
		length := cfg.ChunkSeconds
		if start+length > durationSeconds {
			length = durationSeconds - start
		}
		spans = append(spans, Span{Index: len(spans), Start: start, Length: length})
	}
	if len(spans) == 0 {
		spans = []Span{{Index: 0, Start: 0, Length: durationSeconds}}
	}

	return Plan{Chunked: true, Spans: spans}
}
