package models

import (
	"fmt"
	"strings"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Chunk is a retrievable unit of text derived from a source, with an
// optional time range on the original media timeline and an embedding.
type Chunk struct {
	ID         surrealmodels.RecordID `json:"id"`
	SourceID   string                 `json:"source_id"`
	ChunkIndex int                    `json:"chunk_index"`
	Text       string                 `json:"text"`
	StartTime  *float64               `json:"start_time,omitempty"`
	EndTime    *float64               `json:"end_time,omitempty"`
	Embedding  []float32              `json:"embedding"`
	TokenCount int                    `json:"token_count"`
	Metadata   map[string]any         `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ChunkDraft is a chunk produced by a processor before persistence.
// Drafts carry no identity; the ingestion service assigns the source
// reference when batching them into the store.
type ChunkDraft struct {
	ChunkIndex int
	Text       string
	StartTime  *float64
	EndTime    *float64
	Embedding  []float32
	TokenCount int
	Metadata   map[string]any
}

// NewChunkDraft builds a validated draft. The embedding dimension is checked
// against wantDim so vectors of unexpected length never reach the store.
func NewChunkDraft(index int, text string, embedding []float32, wantDim int) (ChunkDraft, error) {
	if index < 0 {
		return ChunkDraft{}, fmt.Errorf("chunk index must be >= 0, got %d", index)
	}
	if strings.TrimSpace(text) == "" {
		return ChunkDraft{}, fmt.Errorf("chunk %d: text is empty", index)
	}
	if len(embedding) != wantDim {
		return ChunkDraft{}, fmt.Errorf("chunk %d: embedding dimension mismatch: got %d, want %d", index, len(embedding), wantDim)
	}
	return ChunkDraft{
		ChunkIndex: index,
		Text:       text,
		Embedding:  embedding,
		TokenCount: ApproxTokenCount(text),
	}, nil
}

// WithTimeRange sets the absolute time range in seconds on the original
// media timeline.
func (d ChunkDraft) WithTimeRange(start, end float64) ChunkDraft {
	d.StartTime = &start
	d.EndTime = &end
	return d
}

// ApproxTokenCount approximates token count as whitespace-delimited words.
func ApproxTokenCount(text string) int {
	return len(strings.Fields(text))
}
