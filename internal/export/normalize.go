// Package export turns crawl results into tabular files. Content is run
// through Normalize so markdown and leftover markup never leak into cells.
package export

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	mdImagePattern    = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLinkPattern     = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdMarkerPattern   = regexp.MustCompile("(\\*\\*|__|\\*|_|#+\\s*|`|>|- )")
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Normalize reduces markup or markdown to flat plain text: tags are
// stripped with a single space between former element boundaries, markdown
// images are dropped, links keep their text, emphasis/heading/list/quote/
// code markers are removed, and all whitespace collapses to single spaces.
// Empty input yields "". Normalize is idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	text := stripTags(s)
	// Images before links: a link pattern would otherwise swallow the
	// bracketed part of an image and leave the bang behind.
	text = mdImagePattern.ReplaceAllString(text, "")
	text = mdLinkPattern.ReplaceAllString(text, "$1")
	text = mdMarkerPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// stripTags extracts the visible text of s, separating text that sat in
// different elements with a space so words never concatenate.
func stripTags(s string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var parts []string
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(parts, " ")
		case html.TextToken:
			if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
				parts = append(parts, text)
			}
		}
	}
}
