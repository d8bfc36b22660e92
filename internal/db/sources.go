package db

import (
	"context"
	"fmt"
	"time"

	"github.com/avencia/ingestd/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// GetSource retrieves a source by ID. Returns ErrNotFound if it does not
// exist; a job referencing a missing source is a permanent failure.
func (c *Client) GetSource(ctx context.Context, id string) (*models.Source, error) {
	results, err := surrealdb.Query[[]models.Source](ctx, c.db, `
		SELECT * FROM type::record("source", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get source: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// CreateSource inserts a source record in pending state. Source creation
// belongs to source management; this exists for the enqueue CLI and tests.
func (c *Client) CreateSource(ctx context.Context, id string, kind models.SourceKind, locator string) (*models.Source, error) {
	results, err := surrealdb.Query[[]models.Source](ctx, c.db, `
		CREATE type::record("source", $id) SET
			kind = $kind,
			locator = $locator,
			processing = { status: "pending" }
	`, map[string]any{
		"id":      id,
		"kind":    string(kind),
		"locator": locator,
	})
	if err != nil {
		return nil, fmt.Errorf("create source: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create source: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// MarkSourceProcessing sets the source's processing state at job start.
func (c *Client) MarkSourceProcessing(ctx context.Context, id string, startedAt time.Time) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("source", $id) SET
			processing.status = "processing",
			processing.started_at = <datetime>$started_at,
			processing.error_message = NONE
	`, map[string]any{
		"id":         id,
		"started_at": startedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("mark source processing: %w", wrapQueryError(err))
	}
	return nil
}

// MarkSourceCompleted records a successful ingestion on the source.
func (c *Client) MarkSourceCompleted(ctx context.Context, id string, completedAt time.Time, chunksCount int, totalMs int64) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("source", $id) SET
			processing.status = "completed",
			processing.completed_at = <datetime>$completed_at,
			processing.chunks_count = $chunks_count,
			processing.total_processing_time_ms = $total_ms,
			processing.error_message = NONE
	`, map[string]any{
		"id":           id,
		"completed_at": completedAt.UTC().Format(time.RFC3339Nano),
		"chunks_count": chunksCount,
		"total_ms":     totalMs,
	})
	if err != nil {
		return fmt.Errorf("mark source completed: %w", wrapQueryError(err))
	}
	return nil
}

// MarkSourceFailed records a failed ingestion on the source.
func (c *Client) MarkSourceFailed(ctx context.Context, id string, failedAt time.Time, errMsg string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("source", $id) SET
			processing.status = "failed",
			processing.failed_at = <datetime>$failed_at,
			processing.error_message = $error_message
	`, map[string]any{
		"id":            id,
		"failed_at":     failedAt.UTC().Format(time.RFC3339Nano),
		"error_message": errMsg,
	})
	if err != nil {
		return fmt.Errorf("mark source failed: %w", wrapQueryError(err))
	}
	return nil
}

// UpdateSourceVideoMetadata caches platform metadata on a video source
// after the first successful fetch, and mirrors the title onto the source.
func (c *Client) UpdateSourceVideoMetadata(ctx context.Context, id string, meta models.VideoMetadata) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("source", $id) SET
			video = $video,
			title = $title
	`, map[string]any{
		"id": id,
		"video": map[string]any{
			"video_id":         meta.VideoID,
			"title":            meta.Title,
			"channel":          meta.Channel,
			"duration_seconds": meta.DurationSeconds,
		},
		"title": meta.Title,
	})
	if err != nil {
		return fmt.Errorf("update video metadata: %w", wrapQueryError(err))
	}
	return nil
}

// UpdateSourceTitle merges a processor-resolved title onto the source.
func (c *Client) UpdateSourceTitle(ctx context.Context, id, title string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("source", $id) SET title = $title
	`, map[string]any{"id": id, "title": title})
	if err != nil {
		return fmt.Errorf("update source title: %w", wrapQueryError(err))
	}
	return nil
}
