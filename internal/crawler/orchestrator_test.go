package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string]FetchPayload
	errs     map[string]error
	calls    []string
	// block, when set, is closed by the test to release in-flight fetches.
	block chan struct{}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, _ FetchConfig) (FetchPayload, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if err, ok := f.errs[url]; ok {
		return FetchPayload{}, err
	}
	if payload, ok := f.payloads[url]; ok {
		return payload, nil
	}
	return FetchPayload{Title: "Page", Content: "some page content", RawMarkup: "<html></html>"}, nil
}

func (f *fakeFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeDiscoverer struct {
	links []string
	// capture of the last call
	markup  string
	baseURL string
	limit   int
}

func (d *fakeDiscoverer) Discover(markup, baseURL string, limit int) []string {
	d.markup = markup
	d.baseURL = baseURL
	d.limit = limit
	if limit >= 0 && len(d.links) > limit {
		return d.links[:limit]
	}
	return d.links
}

type fakeStore struct {
	mu     sync.Mutex
	saved  []CrawlRun
	latest *CrawlRun
	err    error
}

func (s *fakeStore) Save(_ context.Context, origin string, run CrawlRun) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, run)
	return fmt.Sprintf("%s_%d.json", origin, len(s.saved)), nil
}

func (s *fakeStore) LoadLatest(_ context.Context, _ string) (CrawlRun, bool, error) {
	if s.latest != nil {
		return *s.latest, true, nil
	}
	return CrawlRun{}, false, nil
}

func (s *fakeStore) List(_ context.Context) ([]SnapshotInfo, error) { return nil, nil }

func (s *fakeStore) LoadByKey(_ context.Context, _ string) (CrawlRun, error) {
	return CrawlRun{}, ErrSnapshotNotFound
}

func (s *fakeStore) Clear(_ context.Context) error { return nil }

func (s *fakeStore) savedRuns() []CrawlRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CrawlRun(nil), s.saved...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestOrchestrator(fetcher *fakeFetcher, discoverer *fakeDiscoverer, store *fakeStore) *Orchestrator {
	return NewOrchestrator(fetcher, discoverer, store, &fakeClock{now: time.Unix(1000, 0)}, Config{
		DefaultPageBudget: 10,
		Fetch:             FetchConfig{MinBlockWords: 10, WordCountThreshold: 50},
	}, nil)
}

func TestRunSiteCrawlHappyPath(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{payloads: map[string]FetchPayload{
		"https://example.com": {
			Title:           "Home",
			Content:         "raw body text",
			FilteredContent: "filtered body text",
			RawMarkup:       "<html><a href=\"/a\">a</a></html>",
		},
	}}
	discoverer := &fakeDiscoverer{links: []string{"https://example.com/a", "https://example.com/b"}}
	store := &fakeStore{}
	o := newTestOrchestrator(fetcher, discoverer, store)

	run, err := o.RunSiteCrawl(context.Background(), "https://example.com", 5)
	require.NoError(t, err)

	require.Equal(t, "https://example.com", run.RootURL)
	require.Equal(t, 5, run.PageBudget)
	require.Equal(t, 3, run.TotalPages)
	require.Len(t, run.Pages, 3)
	require.Equal(t, "https://example.com", run.Pages[0].URL)
	require.Equal(t, "Home", run.Pages[0].Title)
	require.Equal(t, "filtered body text", run.Pages[0].Content)
	require.Equal(t, 3, run.Pages[0].WordCount)
	require.Equal(t, PageStatusSuccess, run.Pages[0].Status)

	// Discovery sees the root markup and a limit of budget minus the root.
	require.Equal(t, "<html><a href=\"/a\">a</a></html>", discoverer.markup)
	require.Equal(t, "https://example.com", discoverer.baseURL)
	require.Equal(t, 4, discoverer.limit)

	require.Equal(t, []string{"https://example.com", "https://example.com/a", "https://example.com/b"}, fetcher.fetched())

	saved := store.savedRuns()
	require.Len(t, saved, 1)
	require.Equal(t, run.RootURL, saved[0].RootURL)
	require.Len(t, saved[0].Pages, 3)

	progress := o.Progress()
	require.False(t, progress.IsRunning)
	require.InDelta(t, 100.0, progress.PercentComplete, 0.001)
}

func TestRunSiteCrawlIsolatesPageFailures(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		errs: map[string]error{"https://example.com/b": errors.New("connection refused")},
	}
	discoverer := &fakeDiscoverer{links: []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}}
	store := &fakeStore{}
	o := newTestOrchestrator(fetcher, discoverer, store)

	run, err := o.RunSiteCrawl(context.Background(), "https://example.com", 4)
	require.NoError(t, err)

	require.Len(t, run.Pages, 4)
	bad := run.Pages[2]
	require.Equal(t, "https://example.com/b", bad.URL)
	require.Equal(t, PageStatusError, bad.Status)
	require.Equal(t, "Error", bad.Title)
	require.Equal(t, "failed to crawl: connection refused", bad.Content)
	require.Zero(t, bad.WordCount)

	for _, i := range []int{0, 1, 3} {
		require.Equal(t, PageStatusSuccess, run.Pages[i].Status)
	}

	summary := o.Results()
	require.Equal(t, 4, summary.TotalCount)
	require.Equal(t, 3, summary.SuccessCount)
	require.Equal(t, 1, summary.ErrorCount)
}

func TestRunSiteCrawlRootFailureSkipsDiscovery(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		errs: map[string]error{"https://example.com": errors.New("timeout")},
	}
	discoverer := &fakeDiscoverer{links: []string{"https://example.com/a"}}
	store := &fakeStore{}
	o := newTestOrchestrator(fetcher, discoverer, store)

	run, err := o.RunSiteCrawl(context.Background(), "https://example.com", 5)
	require.NoError(t, err)

	require.Len(t, run.Pages, 1)
	require.Equal(t, PageStatusError, run.Pages[0].Status)
	require.Empty(t, discoverer.markup)
	require.Equal(t, []string{"https://example.com"}, fetcher.fetched())

	// The failed run still persists.
	require.Len(t, store.savedRuns(), 1)
}

func TestRunSiteCrawlRejectsBadTargets(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(&fakeFetcher{}, &fakeDiscoverer{}, &fakeStore{})

	for _, target := range []string{"", "ftp://example.com", "not a url", "http://"} {
		_, err := o.RunSiteCrawl(context.Background(), target, 5)
		require.Error(t, err, "target %q", target)
	}
}

func TestRunSiteCrawlSurvivesSaveFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{err: errors.New("disk full")}
	o := newTestOrchestrator(&fakeFetcher{}, &fakeDiscoverer{}, store)

	run, err := o.RunSiteCrawl(context.Background(), "https://example.com", 2)
	require.NoError(t, err)
	require.Len(t, run.Pages, 1)
	require.False(t, o.Progress().IsRunning)
}

func TestStartSiteCrawlReturnsCachedRun(t *testing.T) {
	t.Parallel()

	cached := CrawlRun{RootURL: "https://example.com", TotalPages: 2}
	fetcher := &fakeFetcher{}
	o := newTestOrchestrator(fetcher, &fakeDiscoverer{}, &fakeStore{latest: &cached})

	res, err := o.StartSiteCrawl(context.Background(), "https://example.com/page", 5)
	require.NoError(t, err)
	require.NotNil(t, res.Cached)
	require.Equal(t, cached.RootURL, res.Cached.RootURL)
	require.Empty(t, res.SessionID)
	require.Empty(t, fetcher.fetched())
}

func TestStartSiteCrawlRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	fetcher := &fakeFetcher{block: block}
	o := newTestOrchestrator(fetcher, &fakeDiscoverer{}, &fakeStore{})

	res, err := o.StartSiteCrawl(context.Background(), "https://example.com", 3)
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)

	_, err = o.StartSiteCrawl(context.Background(), "https://other.org", 3)
	require.ErrorIs(t, err, ErrCrawlInProgress)

	// The rejected request must not disturb the running session.
	require.True(t, o.Progress().IsRunning)

	close(block)
	require.Eventually(t, func() bool {
		return !o.Progress().IsRunning
	}, 2*time.Second, 10*time.Millisecond)

	// A new crawl is admitted once the first one ends.
	fetcher2 := &fakeFetcher{}
	o2 := newTestOrchestrator(fetcher2, &fakeDiscoverer{}, &fakeStore{})
	_, err = o2.RunSiteCrawl(context.Background(), "https://example.com", 2)
	require.NoError(t, err)
	_, err = o2.RunSiteCrawl(context.Background(), "https://example.com", 2)
	require.NoError(t, err)
}

func TestRunListCrawlFetchesEveryURL(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		errs: map[string]error{"https://two.example.org": errors.New("dns failure")},
	}
	discoverer := &fakeDiscoverer{links: []string{"https://example.com/never"}}
	store := &fakeStore{}
	o := newTestOrchestrator(fetcher, discoverer, store)

	urls := []string{"https://one.example.org", "https://two.example.org", "https://three.example.org"}
	run, err := o.RunListCrawl(context.Background(), urls)
	require.NoError(t, err)

	require.Len(t, run.Pages, 3)
	require.Equal(t, urls, fetcher.fetched())
	require.Equal(t, PageStatusError, run.Pages[1].Status)

	// Batch mode never discovers links.
	require.Empty(t, discoverer.markup)

	// The run persists under the first URL.
	require.Equal(t, "https://one.example.org", run.RootURL)
	require.Len(t, store.savedRuns(), 1)
}

func TestRunListCrawlEmptyList(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(&fakeFetcher{}, &fakeDiscoverer{}, &fakeStore{})
	_, err := o.RunListCrawl(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptySiteList)
}

func TestProgressBeforeAnyRun(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(&fakeFetcher{}, &fakeDiscoverer{}, &fakeStore{})
	require.Equal(t, CrawlProgress{}, o.Progress())
	require.Equal(t, ResultSummary{}, o.Results())
}

func TestZeroBudgetUsesDefault(t *testing.T) {
	t.Parallel()

	discoverer := &fakeDiscoverer{}
	o := newTestOrchestrator(&fakeFetcher{}, discoverer, &fakeStore{})

	run, err := o.RunSiteCrawl(context.Background(), "https://example.com", 0)
	require.NoError(t, err)
	require.Equal(t, 10, run.PageBudget)
	require.Equal(t, 9, discoverer.limit)
}
