package services

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"
)

const (
	ExtractorMarkup      = "markup"
	ExtractorReadability = "readability"
)

// ContentExtractor turns a fetched HTML document into plain text
type ContentExtractor interface {
	Extract(body []byte, pageURL *url.URL) (string, error)
}

// NewContentExtractor returns the extractor registered under name
func NewContentExtractor(name string) (ContentExtractor, error) {
	switch name {
	case "", ExtractorMarkup:
		return MarkupExtractor{}, nil
	case ExtractorReadability:
		return ReadabilityExtractor{}, nil
	}
	return nil, fmt.Errorf("unknown content extractor %q", name)
}

// MarkupExtractor drops page chrome (scripts, styles, navigation, header,
// footer) and keeps all remaining text with whitespace collapsed.
type MarkupExtractor struct{}

func (MarkupExtractor) Extract(body []byte, _ *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, header, footer").Remove()

	return collapseWhitespace(doc.Text()), nil
}

// ReadabilityExtractor keeps only the main article content
type ReadabilityExtractor struct{}

func (ReadabilityExtractor) Extract(body []byte, pageURL *url.URL) (string, error) {
	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL: pageURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}
	if result == nil {
		return "", nil
	}

	text := collapseWhitespace(result.ContentText)
	if title := strings.TrimSpace(result.Metadata.Title); title != "" && text != "" {
		text = title + "\n\n" + text
	}
	return text, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most limit characters, marking the cut with "..."
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
