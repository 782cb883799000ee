// Package crawler implements the two-phase crawl engine: core types, the
// session state that tracks a run in flight, and the orchestrator that
// sequences root fetch, link discovery, and sub-page fetches.
package crawler

import (
	"strings"
	"time"
)

// PageStatus records the outcome of a single page fetch.
type PageStatus string

// Page outcome values persisted with each result.
const (
	PageStatusSuccess PageStatus = "success"
	PageStatusError   PageStatus = "error"
)

// PageResult is the outcome record for one fetched URL. When Status is
// PageStatusError, Content holds the failure description and WordCount is 0.
type PageResult struct {
	URL       string     `json:"url"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	WordCount int        `json:"word_count"`
	Timestamp time.Time  `json:"timestamp"`
	Status    PageStatus `json:"status"`
	RawMarkup string     `json:"full_html,omitempty"`
}

// CrawlRun is the complete, ordered result of one crawl invocation and the
// unit of snapshot persistence. Pages are in fetch order, root first.
type CrawlRun struct {
	RootURL    string       `json:"root_url"`
	StartedAt  time.Time    `json:"crawl_timestamp"`
	PageBudget int          `json:"page_budget"`
	TotalPages int          `json:"total_pages"`
	Pages      []PageResult `json:"results"`
}

// CrawlProgress is the live progress snapshot of the active (or most
// recently finished) run.
type CrawlProgress struct {
	IsRunning       bool    `json:"is_running"`
	TotalPages      int     `json:"total_pages"`
	CurrentPage     int     `json:"current_page"`
	PercentComplete float64 `json:"progress"`
}

// ResultSummary aggregates the accumulated results of the in-flight or last
// completed run for the status/results facade.
type ResultSummary struct {
	Pages        []PageResult `json:"results"`
	TotalCount   int          `json:"total_pages"`
	SuccessCount int          `json:"successful_pages"`
	ErrorCount   int          `json:"error_pages"`
}

// FetchConfig carries the extraction knobs passed to the page-fetch
// collaborator for every page of a run.
type FetchConfig struct {
	// ExcludedTags names structural regions (nav, footer, ...) removed
	// before content extraction.
	ExcludedTags []string
	// MinBlockWords is the block-level pruning threshold for the filtered
	// content variant; zero disables filtering entirely.
	MinBlockWords int
	// WordCountThreshold is the minimum surviving word count below which
	// the filtered variant is discarded.
	WordCountThreshold int
	// UseCache lets the fetcher reuse previously downloaded responses.
	UseCache bool
}

// WithoutFilter returns a copy of the config with content filtering
// disabled, the simpler configuration batch crawls run with.
func (c FetchConfig) WithoutFilter() FetchConfig {
	c.MinBlockWords = 0
	return c
}

// FetchPayload is the success payload returned by a PageFetcher.
type FetchPayload struct {
	Title           string
	Content         string
	FilteredContent string
	RawMarkup       string
}

// BestContent prefers the filtered variant when the fetcher produced one.
func (p FetchPayload) BestContent() string {
	if p.FilteredContent != "" {
		return p.FilteredContent
	}
	return p.Content
}

// WordCount counts whitespace-separated tokens in the chosen content.
func (p FetchPayload) WordCount() int {
	return len(strings.Fields(p.BestContent()))
}
