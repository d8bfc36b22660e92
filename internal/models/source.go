// Package models defines data structures for the ingestd source pipeline.
package models

import (
	"fmt"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// SourceKind identifies the type of content behind a source.
type SourceKind string

const (
	SourceKindVideo    SourceKind = "video"
	SourceKindWeb      SourceKind = "web"
	SourceKindDocument SourceKind = "document"
	SourceKindFile     SourceKind = "file"
)

// ValidKind reports whether k is one of the known source kinds.
func ValidKind(k SourceKind) bool {
	switch k {
	case SourceKindVideo, SourceKindWeb, SourceKindDocument, SourceKindFile:
		return true
	}
	return false
}

// ProcessingStatus is the source-side ingestion state, independent of the
// job's own lifecycle.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingProcessing ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// ProcessingMetadata tracks the ingestion lifecycle on a source.
// Only the ingestion service mutates these fields.
type ProcessingMetadata struct {
	Status                ProcessingStatus `json:"status"`
	StartedAt             *time.Time       `json:"started_at,omitempty"`
	CompletedAt           *time.Time       `json:"completed_at,omitempty"`
	FailedAt              *time.Time       `json:"failed_at,omitempty"`
	ErrorMessage          *string          `json:"error_message,omitempty"`
	ChunksCount           int              `json:"chunks_count"`
	TotalProcessingTimeMs int64            `json:"total_processing_time_ms"`
}

// VideoMetadata holds platform metadata cached on a video source after the
// first successful fetch.
type VideoMetadata struct {
	VideoID         string  `json:"video_id"`
	Title           string  `json:"title,omitempty"`
	Channel         string  `json:"channel,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Source is the unit being ingested. Sources are owned by an external
// source-management flow; ingestion mutates Processing and kind metadata only.
type Source struct {
	ID         surrealmodels.RecordID `json:"id"`
	Kind       SourceKind             `json:"kind"`
	Locator    string                 `json:"locator"`
	Title      *string                `json:"title,omitempty"`
	Processing ProcessingMetadata     `json:"processing"`

	// Kind-specific metadata. Exactly one is set, matching Kind.
	Video *VideoMetadata `json:"video,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// RecordIDString safely extracts the string ID from a SurrealDB RecordID.
// Returns an error if the ID is not a string type.
func RecordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected ID type: %T (expected string)", id.ID)
	}
	return s, nil
}

// MustRecordIDString extracts the string ID, panicking if not a string.
// Use only when the ID is known to be a string (e.g., after DB operations).
func MustRecordIDString(id surrealmodels.RecordID) string {
	s, err := RecordIDString(id)
	if err != nil {
		panic(err)
	}
	return s
}
