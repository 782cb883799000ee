package crawler

import "errors"

// Sentinel errors surfaced to callers. Per-page fetch faults are never
// propagated; they are recorded as error PageResults instead.
var (
	// ErrCrawlInProgress rejects a crawl request while another run is
	// active. No state is mutated.
	ErrCrawlInProgress = errors.New("crawl already in progress")

	// ErrSnapshotNotFound reports a missing snapshot key.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrEmptySiteList rejects a batch crawl with no input URLs.
	ErrEmptySiteList = errors.New("site list is empty")
)
