// Package sitelist reads batch-crawl targets from a line-oriented text
// source. Each line may hold arbitrary text around a URL; the first
// URL-shaped substring wins, and lines without one are skipped.
package sitelist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Parse extracts one URL per line from r.
func Parse(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if match := urlPattern.FindString(scanner.Text()); match != "" {
			urls = append(urls, match)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan site list: %w", err)
	}
	return urls, nil
}

// Load reads the site list at path. A missing file yields an empty list
// rather than an error, matching the batch endpoint's "empty list"
// validation.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open site list: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}
