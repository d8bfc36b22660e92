package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/avencia/ingestd/internal/models"
	"github.com/avencia/ingestd/internal/parser"
)

// FileProcessor ingests generic files as plain text, whatever their
// extension. Binary content is rejected permanently.
type FileProcessor struct {
	embedder Embedder
	chunkCfg parser.ChunkConfig
}

func NewFileProcessor(embedder Embedder, chunkCfg parser.ChunkConfig) *FileProcessor {
	return &FileProcessor{embedder: embedder, chunkCfg: chunkCfg}
}

func (p *FileProcessor) Kind() models.SourceKind {
	return models.SourceKindFile
}

func (p *FileProcessor) Ingest(ctx context.Context, source *models.Source) (*Result, error) {
	if err := requireKind(source, models.SourceKindFile); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(source.Locator)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Permanent(err)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	if bytes.ContainsRune(data, 0) || !utf8.Valid(data) {
		return nil, Permanentf("%s is not a text file", source.Locator)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, Permanentf("%s is empty", source.Locator)
	}

	drafts, err := embedChunks(ctx, p.embedder, parser.ChunkText(text, p.chunkCfg))
	if err != nil {
		return nil, err
	}

	return &Result{
		Chunks: drafts,
		Metadata: map[string]any{
			MetaTitle: filepath.Base(source.Locator),
		},
	}, nil
}

var _ Processor = (*FileProcessor)(nil)
