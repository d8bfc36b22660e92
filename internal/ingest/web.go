package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/avencia/ingestd/internal/models"
	"github.com/avencia/ingestd/internal/parser"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// WebProcessor ingests web page sources: fetch, HTML text extraction,
// chunking and embedding.
type WebProcessor struct {
	client   *http.Client
	embedder Embedder
	chunkCfg parser.ChunkConfig
}

func NewWebProcessor(client *http.Client, embedder Embedder, chunkCfg parser.ChunkConfig) *WebProcessor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebProcessor{client: client, embedder: embedder, chunkCfg: chunkCfg}
}

func (p *WebProcessor) Kind() models.SourceKind {
	return models.SourceKindWeb
}

func (p *WebProcessor) Ingest(ctx context.Context, source *models.Source) (*Result, error) {
	if err := requireKind(source, models.SourceKindWeb); err != nil {
		return nil, err
	}

	text, title, err := p.fetch(ctx, source.Locator)
	if err != nil {
		return nil, err
	}

	drafts, err := embedChunks(ctx, p.embedder, parser.ChunkText(text, p.chunkCfg))
	if err != nil {
		return nil, err
	}

	result := &Result{Chunks: drafts, Metadata: map[string]any{}}
	if title != "" {
		result.Metadata[MetaTitle] = title
	}
	return result, nil
}

func (p *WebProcessor) fetch(ctx context.Context, url string) (text, title string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", Permanentf("build request for %q: %v", url, err)
	}
	req.Header.Set("User-Agent", "ingestd/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch %q: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// The page is not coming back; retrying wastes attempts.
		return "", "", Permanentf("fetch %q: status %d", url, resp.StatusCode)
	default:
		return "", "", fmt.Errorf("fetch %q: status %d", url, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("parse html from %q: %w", url, err)
	}

	text, title = extractText(doc)
	if strings.TrimSpace(text) == "" {
		return "", "", Permanentf("no text content at %q", url)
	}
	return text, title, nil
}

// skipElements never contribute visible text.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"svg":      true,
}

// blockElements terminate a paragraph in the extracted text.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "tr": true, "br": true, "blockquote": true, "pre": true,
}

// extractText walks the parsed document collecting visible text and the
// page title. Block elements become paragraph breaks.
func extractText(doc *html.Node) (text, title string) {
	var sb strings.Builder
	var inBody bool

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipElements[n.Data] {
				return
			}
			if n.Data == "title" && title == "" {
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
			if n.Data == "body" {
				inBody = true
			}
		}

		if n.Type == html.TextNode && inBody {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] && inBody {
			sb.WriteString("\n\n")
		}
	}
	walk(doc)

	return collapseBlankRuns(sb.String()), title
}

// collapseBlankRuns trims trailing spaces per paragraph and squeezes
// runs of blank lines down to one separator.
func collapseBlankRuns(s string) string {
	parts := strings.Split(s, "\n\n")
	kept := parts[:0]
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, "\n\n")
}

// embedChunks builds drafts for text chunks, embedding each one. Unlike
// audio segments, a text chunk's embedding failure fails the whole job:
// text ingestion is cheap to retry in full.
func embedChunks(ctx context.Context, embedder Embedder, texts []string) ([]models.ChunkDraft, error) {
	drafts := make([]models.ChunkDraft, 0, len(texts))
	for i, text := range texts {
		embedding, err := embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		draft, err := models.NewChunkDraft(i, text, embedding, embedder.Dimension())
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

var _ Processor = (*WebProcessor)(nil)
