package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/avencia/ingestd/internal/models"
	"github.com/avencia/ingestd/internal/parser"
)

// DocumentProcessor ingests structured document files (pdf, docx, text
// formats) through the parser registry.
type DocumentProcessor struct {
	parsers  *parser.Registry
	embedder Embedder
	chunkCfg parser.ChunkConfig
}

func NewDocumentProcessor(parsers *parser.Registry, embedder Embedder, chunkCfg parser.ChunkConfig) *DocumentProcessor {
	if parsers == nil {
		parsers = parser.DefaultRegistry()
	}
	return &DocumentProcessor{parsers: parsers, embedder: embedder, chunkCfg: chunkCfg}
}

func (p *DocumentProcessor) Kind() models.SourceKind {
	return models.SourceKindDocument
}

func (p *DocumentProcessor) Ingest(ctx context.Context, source *models.Source) (*Result, error) {
	if err := requireKind(source, models.SourceKindDocument); err != nil {
		return nil, err
	}

	docParser, err := p.parsers.ForPath(source.Locator)
	if err != nil {
		return nil, Permanent(err)
	}

	f, err := os.Open(source.Locator)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Permanent(err)
		}
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	doc, err := docParser.Parse(ctx, f)
	if err != nil {
		// A file that fails to parse will fail the same way next time.
		return nil, Permanent(fmt.Errorf("parse %s: %w", source.Locator, err))
	}

	drafts, err := embedChunks(ctx, p.embedder, parser.ChunkText(doc.Text, p.chunkCfg))
	if err != nil {
		return nil, err
	}

	title := filepath.Base(source.Locator)
	if t, ok := doc.Metadata["title"].(string); ok && t != "" {
		title = t
	}

	return &Result{
		Chunks: drafts,
		Metadata: map[string]any{
			MetaTitle: title,
		},
	}, nil
}

var _ Processor = (*DocumentProcessor)(nil)
