// Package extract turns raw page markup into the fetch payload: title,
// markdown content, and an optional filtered variant with low-signal blocks
// pruned away.
package extract

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/sitesnap/internal/crawler"
)

// noTitle is the sentinel recorded when a page has no usable <title>.
const noTitle = "No Title"

// Extractor converts fetched markup into crawler.FetchPayload values.
// It is safe for concurrent use.
type Extractor struct {
	conv *md.Converter
}

// New constructs an Extractor.
func New() *Extractor {
	return &Extractor{conv: md.NewConverter("", true, nil)}
}

// Extract parses markup, removes the excluded structural regions, and
// converts the remaining body to markdown. When cfg.MinBlockWords > 0 it
// also produces the filtered variant.
func (e *Extractor) Extract(markup string, cfg crawler.FetchConfig) (crawler.FetchPayload, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return crawler.FetchPayload{}, fmt.Errorf("parse markup: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = noTitle
	}

	for _, tag := range cfg.ExcludedTags {
		doc.Find(tag).Remove()
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	content := strings.TrimSpace(e.conv.Convert(body))

	return crawler.FetchPayload{
		Title:           title,
		Content:         content,
		FilteredContent: filterContent(content, cfg),
		RawMarkup:       markup,
	}, nil
}

// filterContent keeps only markdown blocks holding at least MinBlockWords
// words. If what survives falls under the page word-count threshold the
// variant is discarded so callers fall back to the full content.
func filterContent(content string, cfg crawler.FetchConfig) string {
	if cfg.MinBlockWords <= 0 {
		return ""
	}
	var kept []string
	total := 0
	for _, block := range strings.Split(content, "\n\n") {
		words := len(strings.Fields(block))
		if words >= cfg.MinBlockWords {
			kept = append(kept, block)
			total += words
		}
	}
	if total < cfg.WordCountThreshold {
		return ""
	}
	return strings.Join(kept, "\n\n")
}
