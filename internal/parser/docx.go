package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// DOCXParser extracts text from Word documents. The docx library only
// reads from disk, so input is spooled through a temp file.
type DOCXParser struct{}

func NewDOCXParser() *DOCXParser {
	return &DOCXParser{}
}

func (p *DOCXParser) Parse(_ context.Context, reader io.Reader) (*Document, error) {
	tmp, err := os.CreateTemp("", "ingestd-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("spool docx: %w", err)
	}
	tmp.Close()

	doc, err := docx.ReadDocxFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	defer doc.Close()

	text := strings.TrimSpace(doc.Editable().GetContent())
	if text == "" {
		return nil, fmt.Errorf("no text content found in DOCX")
	}

	return &Document{
		Text:     text,
		Metadata: map[string]any{"format": "docx"},
	}, nil
}

func (p *DOCXParser) Extensions() []string {
	return []string{".docx"}
}

var _ Parser = (*DOCXParser)(nil)
