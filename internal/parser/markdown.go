package parser

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MarkdownParser strips YAML frontmatter and surfaces it as metadata, so
// titles and tags authored in the document survive into the chunk store.
type MarkdownParser struct{}

func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

var h1Pattern = regexp.MustCompile(`(?m)^#\s+(.+)$`)

func (p *MarkdownParser) Parse(_ context.Context, reader io.Reader) (*Document, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	frontmatter, body := splitFrontmatter(string(data))
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("no text content found")
	}

	meta := map[string]any{"format": "markdown"}
	if len(frontmatter) > 0 {
		meta["frontmatter"] = frontmatter
	}
	if title := markdownTitle(frontmatter, body); title != "" {
		meta["title"] = title
	}

	return &Document{Text: body, Metadata: meta}, nil
}

func (p *MarkdownParser) Extensions() []string {
	return []string{".md", ".markdown"}
}

// splitFrontmatter separates a leading YAML frontmatter block from the
// document body. Malformed YAML is ignored rather than failing the parse.
func splitFrontmatter(content string) (map[string]any, string) {
	if !strings.HasPrefix(content, "---\n") {
		return nil, content
	}
	end := strings.Index(content[4:], "\n---")
	if end < 0 {
		return nil, content
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(content[4:4+end]), &fm); err != nil {
		fm = nil
	}
	body := strings.TrimPrefix(content[4+end+4:], "\n")
	return fm, body
}

// markdownTitle prefers a frontmatter title over the first h1 heading.
func markdownTitle(fm map[string]any, body string) string {
	if title, ok := fm["title"].(string); ok && title != "" {
		return title
	}
	if match := h1Pattern.FindStringSubmatch(body); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

var _ Parser = (*MarkdownParser)(nil)
