// Package transcribe defines the speech-to-text contract and an
// OpenAI-compatible Whisper HTTP client.
package transcribe

import "context"

// Segment is one time-stamped piece of transcribed speech. Start and End
// are relative to the submitted file, not the original media.
type Segment struct {
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Text             string  `json:"text"`
	AvgLogProb       float64 `json:"avg_logprob"`
	NoSpeechProb     float64 `json:"no_speech_prob"`
	CompressionRatio float64 `json:"compression_ratio"`
}

// Transcription is the full result for one audio file.
type Transcription struct {
	Text            string    `json:"text"`
	Segments        []Segment `json:"segments"`
	DurationSeconds float64   `json:"duration"`
}

// Transcriber converts one audio file into text with timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Transcription, error)
}
