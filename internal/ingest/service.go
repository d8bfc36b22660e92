package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avencia/ingestd/internal/db"
	"github.com/avencia/ingestd/internal/models"
)

// SourceStore is the persistence surface the service needs: source
// status transitions, kind metadata updates and chunk replacement.
// *db.Client satisfies it.
type SourceStore interface {
	GetSource(ctx context.Context, id string) (*models.Source, error)
	MarkSourceProcessing(ctx context.Context, id string, startedAt time.Time) error
	MarkSourceCompleted(ctx context.Context, id string, completedAt time.Time, chunksCount int, totalMs int64) error
	MarkSourceFailed(ctx context.Context, id string, failedAt time.Time, errMsg string) error
	UpdateSourceVideoMetadata(ctx context.Context, id string, meta models.VideoMetadata) error
	UpdateSourceTitle(ctx context.Context, id, title string) error
	ReplaceChunks(ctx context.Context, sourceID string, drafts []models.ChunkDraft) error
}

// Service runs one ingestion job end to end: load the source, mark it
// processing, dispatch to the kind's processor, persist the chunks and
// record the outcome on the source.
type Service struct {
	store    SourceStore
	registry *Registry
	now      func() time.Time
}

// NewService creates an ingestion service.
func NewService(store SourceStore, registry *Registry) *Service {
	return &Service{store: store, registry: registry, now: time.Now}
}

// Execute processes the job's source. The returned error carries the
// permanent marker where retrying cannot help; the worker maps that to
// an immediate job failure.
func (s *Service) Execute(ctx context.Context, job *models.Job) error {
	start := s.now()

	source, err := s.store.GetSource(ctx, job.SourceID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			// Nothing to mark failed; the source is gone.
			return Permanentf("source %s not found", job.SourceID)
		}
		return fmt.Errorf("load source %s: %w", job.SourceID, err)
	}

	if err := s.store.MarkSourceProcessing(ctx, job.SourceID, start); err != nil {
		return fmt.Errorf("mark source processing: %w", err)
	}

	result, err := s.process(ctx, source)
	if err != nil {
		s.markFailed(ctx, job.SourceID, err)
		return err
	}

	if err := s.persist(ctx, job.SourceID, result, start); err != nil {
		s.markFailed(ctx, job.SourceID, err)
		return err
	}

	slog.Info("source ingested",
		"source_id", job.SourceID,
		"kind", source.Kind,
		"chunks", len(result.Chunks),
		"duration_ms", s.now().Sub(start).Milliseconds())
	return nil
}

func (s *Service) process(ctx context.Context, source *models.Source) (*Result, error) {
	processor := s.registry.Lookup(source.Kind)
	if processor == nil {
		return nil, Permanentf("unsupported source kind: %s", source.Kind)
	}

	result, err := processor.Ingest(ctx, source)
	if err != nil {
		return nil, err
	}

	if err := validateChunkOrder(result.Chunks); err != nil {
		return nil, err
	}
	return result, nil
}

// persist replaces any prior chunks for the source, applies resolved
// metadata and marks the source completed. Re-ingestion of a completed
// source therefore swaps its chunk set wholesale instead of appending.
func (s *Service) persist(ctx context.Context, sourceID string, result *Result, start time.Time) error {
	if err := s.store.ReplaceChunks(ctx, sourceID, result.Chunks); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}

	s.applyMetadata(ctx, sourceID, result.Metadata)

	totalMs := s.now().Sub(start).Milliseconds()
	if err := s.store.MarkSourceCompleted(ctx, sourceID, s.now(), len(result.Chunks), totalMs); err != nil {
		return fmt.Errorf("mark source completed: %w", err)
	}
	return nil
}

// applyMetadata writes well-known processor metadata onto the source.
// These are enrichments; their failure is logged, not fatal.
func (s *Service) applyMetadata(ctx context.Context, sourceID string, metadata map[string]any) {
	if vm, ok := metadata[MetaVideo].(models.VideoMetadata); ok {
		if err := s.store.UpdateSourceVideoMetadata(ctx, sourceID, vm); err != nil {
			slog.Warn("video metadata update failed", "source_id", sourceID, "error", err)
		}
	}
	if title, ok := metadata[MetaTitle].(string); ok && title != "" {
		if err := s.store.UpdateSourceTitle(ctx, sourceID, title); err != nil {
			slog.Warn("title update failed", "source_id", sourceID, "error", err)
		}
	}
}

func (s *Service) markFailed(ctx context.Context, sourceID string, cause error) {
	if err := s.store.MarkSourceFailed(ctx, sourceID, s.now(), cause.Error()); err != nil {
		slog.Error("mark source failed errored", "source_id", sourceID, "error", err)
	}
}

// validateChunkOrder checks that chunk indices are dense and ascending
// from zero. Processors assign indices during assembly; a gap here
// means lost data, not a transient fault.
func validateChunkOrder(chunks []models.ChunkDraft) error {
	for i, c := range chunks {
		if c.ChunkIndex != i {
			return Permanentf("chunk index %d at position %d: indices must be dense from 0", c.ChunkIndex, i)
		}
	}
	return nil
}
