package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avencia/ingestd/internal/media"
	"github.com/avencia/ingestd/internal/models"
)

// MetadataFetcher retrieves video metadata without downloading media.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, videoID string) (*media.Metadata, error)
}

// AudioPipeline turns one video's audio into embedded chunk drafts.
type AudioPipeline interface {
	Process(ctx context.Context, videoID string, durationSeconds float64) ([]models.ChunkDraft, error)
}

// VideoProcessor ingests video sources: locator parsing, metadata
// lookup and the full audio pipeline.
type VideoProcessor struct {
	fetcher  MetadataFetcher
	pipeline AudioPipeline
}

func NewVideoProcessor(fetcher MetadataFetcher, pipeline AudioPipeline) *VideoProcessor {
	return &VideoProcessor{fetcher: fetcher, pipeline: pipeline}
}

func (p *VideoProcessor) Kind() models.SourceKind {
	return models.SourceKindVideo
}

func (p *VideoProcessor) Ingest(ctx context.Context, source *models.Source) (*Result, error) {
	if err := requireKind(source, models.SourceKindVideo); err != nil {
		return nil, err
	}

	videoID, err := media.ParseVideoID(source.Locator)
	if err != nil {
		// An unparsable locator never becomes parsable on retry.
		return nil, Permanent(err)
	}

	vm, err := p.videoMetadata(ctx, source, videoID)
	if err != nil {
		return nil, err
	}

	chunks, err := p.pipeline.Process(ctx, videoID, vm.DurationSeconds)
	if err != nil {
		return nil, fmt.Errorf("audio pipeline: %w", err)
	}

	return &Result{
		Chunks: chunks,
		Metadata: map[string]any{
			MetaVideo: *vm,
			MetaTitle: vm.Title,
		},
	}, nil
}

// videoMetadata reuses metadata cached on the source from an earlier
// attempt and fetches it otherwise.
func (p *VideoProcessor) videoMetadata(ctx context.Context, source *models.Source, videoID string) (*models.VideoMetadata, error) {
	if cached := source.Video; cached != nil && cached.VideoID == videoID && cached.DurationSeconds > 0 {
		slog.Debug("using cached video metadata", "video_id", videoID)
		return cached, nil
	}

	meta, err := p.fetcher.FetchMetadata(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("fetch video metadata: %w", err)
	}

	return &models.VideoMetadata{
		VideoID:         videoID,
		Title:           meta.Title,
		Channel:         meta.Channel,
		DurationSeconds: meta.DurationSeconds,
	}, nil
}

var _ Processor = (*VideoProcessor)(nil)
