package db

import (
	"context"
	"fmt"

	"github.com/avencia/ingestd/internal/models"
	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ReplaceChunks deletes any existing chunks for the source and inserts the
// new batch in one request, so re-ingestion replaces rather than appends.
// Chunks are created in a single batch per successful job and never
// partially updated.
func (c *Client) ReplaceChunks(ctx context.Context, sourceID string, drafts []models.ChunkDraft) error {
	rows := make([]map[string]any, len(drafts))
	for i, d := range drafts {
		row := map[string]any{
			"id":          surrealmodels.RecordID{Table: "chunk", ID: uuid.New().String()},
			"source_id":   sourceID,
			"chunk_index": d.ChunkIndex,
			"text":        d.Text,
			"embedding":   d.Embedding,
			"token_count": d.TokenCount,
		}
		if d.StartTime != nil {
			row["start_time"] = *d.StartTime
		}
		if d.EndTime != nil {
			row["end_time"] = *d.EndTime
		}
		if d.Metadata != nil {
			row["metadata"] = d.Metadata
		}
		rows[i] = row
	}

	sql := `
		DELETE chunk WHERE source_id = $source_id;
		INSERT INTO chunk $rows;
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"source_id": sourceID,
		"rows":      rows,
	})
	if err != nil {
		return fmt.Errorf("replace chunks: %w", wrapQueryError(err))
	}
	return nil
}

// GetChunks returns all chunks for a source ordered by chunk index.
func (c *Client) GetChunks(ctx context.Context, sourceID string) ([]models.Chunk, error) {
	results, err := surrealdb.Query[[]models.Chunk](ctx, c.db, `
		SELECT * FROM chunk WHERE source_id = $source_id ORDER BY chunk_index ASC
	`, map[string]any{"source_id": sourceID})
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Chunk{}, nil
	}
	return (*results)[0].Result, nil
}

// CountChunks returns the number of chunks stored for a source.
func (c *Client) CountChunks(ctx context.Context, sourceID string) (int, error) {
	results, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, c.db, `
		SELECT count() AS count FROM chunk WHERE source_id = $source_id GROUP ALL
	`, map[string]any{"source_id": sourceID})
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}
