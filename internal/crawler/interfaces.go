package crawler

import (
	"context"
	"time"
)

// PageFetcher fetches and extracts a single page. Implementations report
// failures through the error return; the orchestrator converts them into
// error PageResults without aborting the run.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, cfg FetchConfig) (FetchPayload, error)
}

// LinkDiscoverer extracts same-origin absolute links from raw markup,
// deduplicated and in discovery order, truncated to limit entries.
type LinkDiscoverer interface {
	Discover(markup, baseURL string, limit int) []string
}

// SnapshotInfo describes one persisted snapshot for listings.
type SnapshotInfo struct {
	Key      string    `json:"filename"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// SnapshotStore persists completed crawl runs. Keys embed the origin host
// and a creation timestamp so they are unique, sortable by creation time,
// and prefix-matchable by origin.
type SnapshotStore interface {
	// Save writes run as a new snapshot and returns its key. Repeated
	// saves for the same origin never overwrite earlier snapshots.
	Save(ctx context.Context, origin string, run CrawlRun) (string, error)
	// LoadLatest returns the most recent snapshot for origin, or
	// found=false when none exists.
	LoadLatest(ctx context.Context, origin string) (run CrawlRun, found bool, err error)
	// List returns metadata for all snapshots, newest first.
	List(ctx context.Context) ([]SnapshotInfo, error)
	// LoadByKey returns the snapshot stored under key, or an error
	// wrapping ErrSnapshotNotFound.
	LoadByKey(ctx context.Context, key string) (CrawlRun, error)
	// Clear deletes every snapshot; it is a no-op on an empty store.
	Clear(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
