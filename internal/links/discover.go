// Package links extracts same-origin outlinks from page markup.
package links

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Discoverer finds crawlable anchor targets in raw HTML.
type Discoverer struct{}

// NewDiscoverer constructs a Discoverer.
func NewDiscoverer() *Discoverer {
	return &Discoverer{}
}

// Discover returns the absolute URLs of anchors in markup that share
// baseURL's origin, deduplicated in first-seen order and truncated to limit
// entries (limit < 0 means unlimited). Root-relative hrefs are resolved
// against baseURL; hrefs that are neither absolute nor root-relative
// (fragments, mailto:, javascript:, bare relative paths) are discarded.
// Malformed markup yields an empty result, never an error.
func (Discoverer) Discover(markup, baseURL string, limit int) []string {
	if limit == 0 {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var found []string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return true
		}
		resolved, ok := resolve(base, href)
		if !ok || !sameOrigin(base, resolved) {
			return true
		}
		abs := resolved.String()
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		found = append(found, abs)
		return limit < 0 || len(found) < limit
	})
	return found
}

func resolve(base *url.URL, href string) (*url.URL, bool) {
	if strings.HasPrefix(href, "/") {
		u, err := base.Parse(href)
		if err != nil {
			return nil, false
		}
		return u, true
	}
	u, err := url.Parse(href)
	if err != nil || !u.IsAbs() {
		return nil, false
	}
	return u, true
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}
