package parser

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// TextParser handles plain-text formats.
type TextParser struct{}

func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Parse(_ context.Context, reader io.Reader) (*Document, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("no text content found")
	}

	return &Document{
		Text:     text,
		Metadata: map[string]any{"format": "text"},
	}, nil
}

func (p *TextParser) Extensions() []string {
	return []string{".txt", ".log", ".csv"}
}

var _ Parser = (*TextParser)(nil)
