package ingest

import (
	"context"

	"github.com/avencia/ingestd/internal/models"
)

// Result is what a processor hands back to the service: the chunk drafts
// to persist and any source metadata resolved along the way (title,
// duration, channel).
type Result struct {
	Chunks   []models.ChunkDraft
	Metadata map[string]any
}

// Well-known Result.Metadata keys the service persists onto the source.
const (
	// MetaTitle carries a resolved source title (string).
	MetaTitle = "title"
	// MetaVideo carries resolved video metadata (models.VideoMetadata).
	MetaVideo = "video"
)

// Processor turns one source into chunks plus metadata. Implementations
// must reject sources whose kind does not match their own, even though
// routing is the registry's job.
type Processor interface {
	// Kind returns the source kind this processor handles.
	Kind() models.SourceKind

	// Ingest processes the source. Errors wrapped with Permanent are not
	// retried by the queue.
	Ingest(ctx context.Context, source *models.Source) (*Result, error)
}

// requireKind rejects a source routed to the wrong processor. A kind
// mismatch is a routing bug, not something a retry can fix.
func requireKind(source *models.Source, want models.SourceKind) error {
	if source.Kind != want {
		return Permanentf("source %s has kind %q, want %q",
			models.MustRecordIDString(source.ID), source.Kind, want)
	}
	return nil
}
