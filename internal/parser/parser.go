// Package parser extracts text from document files and splits it into
// embeddable chunks.
package parser

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Document is the extracted text of one file plus format metadata.
type Document struct {
	Text     string
	Metadata map[string]any
}

// Parser extracts text from one document format.
type Parser interface {
	Parse(ctx context.Context, reader io.Reader) (*Document, error)
	Extensions() []string
}

// Registry maps file extensions to parsers.
type Registry struct {
	byExt map[string]Parser
}

// NewRegistry builds a registry from the given parsers. Later parsers
// win on extension collisions.
func NewRegistry(parsers ...Parser) *Registry {
	byExt := make(map[string]Parser)
	for _, p := range parsers {
		for _, ext := range p.Extensions() {
			byExt[strings.ToLower(ext)] = p
		}
	}
	return &Registry{byExt: byExt}
}

// DefaultRegistry covers the formats the ingestion service accepts.
func DefaultRegistry() *Registry {
	return NewRegistry(NewTextParser(), NewMarkdownParser(), NewPDFParser(), NewDOCXParser())
}

// ForPath returns the parser for a file path's extension.
func (r *Registry) ForPath(path string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	p, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported document format: %q", ext)
	}
	return p, nil
}

// SupportedExtensions lists all registered extensions.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}
