package crawler

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitesnap/internal/metrics"
)

// Config controls Orchestrator behavior.
type Config struct {
	// DefaultPageBudget applies when a crawl request does not name one.
	DefaultPageBudget int
	// Fetch is the extraction configuration used for site crawls. Batch
	// crawls use Fetch.WithoutFilter().
	Fetch FetchConfig
}

// Orchestrator drives the two-phase crawl sequence: fetch the root page,
// discover its same-origin links, fetch each link with per-page fault
// isolation, then hand the finished run to the snapshot store. At most one
// run is active at a time; concurrent requests fail fast with
// ErrCrawlInProgress.
type Orchestrator struct {
	fetcher    PageFetcher
	discoverer LinkDiscoverer
	store      SnapshotStore
	clock      Clock
	cfg        Config
	logger     *zap.Logger

	admission sessionGuard
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(
	fetcher PageFetcher,
	discoverer LinkDiscoverer,
	store SnapshotStore,
	clock Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultPageBudget <= 0 {
		cfg.DefaultPageBudget = 30
	}
	return &Orchestrator{
		fetcher:    fetcher,
		discoverer: discoverer,
		store:      store,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// StartResult reports how a crawl request was handled: a new run was
// admitted (SessionID set) or a cached run satisfied it (Cached set).
type StartResult struct {
	SessionID string
	Cached    *CrawlRun
}

// StartSiteCrawl admits a site crawl and runs it in the background,
// returning a session handle immediately. If the snapshot store already
// holds a run for the target's origin, that run is returned instead and no
// crawl starts.
func (o *Orchestrator) StartSiteCrawl(ctx context.Context, rootURL string, pageBudget int) (StartResult, error) {
	if pageBudget <= 0 {
		pageBudget = o.cfg.DefaultPageBudget
	}
	if err := ValidateTarget(rootURL); err != nil {
		return StartResult{}, err
	}

	if origin, err := Origin(rootURL); err == nil {
		cached, found, loadErr := o.store.LoadLatest(ctx, origin)
		if loadErr != nil {
			o.logger.Warn("cache lookup failed", zap.String("origin", origin), zap.Error(loadErr))
		} else if found {
			return StartResult{Cached: &cached}, nil
		}
	}

	sess, err := o.admission.begin(o.newSession(rootURL, pageBudget))
	if err != nil {
		return StartResult{}, err
	}
	// The run owns its own context: mid-run cancellation is unsupported,
	// and the triggering request returns before the crawl ends.
	go o.runSite(context.Background(), sess, rootURL, pageBudget)
	return StartResult{SessionID: sess.ID()}, nil
}

// StartListCrawl admits a batch crawl over the given URLs and runs it in
// the background.
func (o *Orchestrator) StartListCrawl(_ context.Context, urls []string) (StartResult, error) {
	if len(urls) == 0 {
		return StartResult{}, ErrEmptySiteList
	}
	sess, err := o.admission.begin(o.newSession(urls[0], len(urls)))
	if err != nil {
		return StartResult{}, err
	}
	go o.runList(context.Background(), sess, urls)
	return StartResult{SessionID: sess.ID()}, nil
}

// RunSiteCrawl performs a site crawl synchronously and returns the
// completed run. Preconditions: rootURL is a well-formed http(s) URL,
// pageBudget >= 1 (zero selects the configured default), and no other run
// is active.
func (o *Orchestrator) RunSiteCrawl(ctx context.Context, rootURL string, pageBudget int) (CrawlRun, error) {
	if pageBudget <= 0 {
		pageBudget = o.cfg.DefaultPageBudget
	}
	if err := ValidateTarget(rootURL); err != nil {
		return CrawlRun{}, err
	}
	sess, err := o.admission.begin(o.newSession(rootURL, pageBudget))
	if err != nil {
		return CrawlRun{}, err
	}
	return o.runSite(ctx, sess, rootURL, pageBudget), nil
}

// RunListCrawl performs a batch crawl synchronously: no link discovery,
// every URL fetched directly with the filter-free configuration.
func (o *Orchestrator) RunListCrawl(ctx context.Context, urls []string) (CrawlRun, error) {
	if len(urls) == 0 {
		return CrawlRun{}, ErrEmptySiteList
	}
	sess, err := o.admission.begin(o.newSession(urls[0], len(urls)))
	if err != nil {
		return CrawlRun{}, err
	}
	return o.runList(ctx, sess, urls), nil
}

// Progress returns the progress snapshot of the active or most recent run.
// It always succeeds; before any run it reports the quiescent zero state.
func (o *Orchestrator) Progress() CrawlProgress {
	sess := o.admission.current()
	if sess == nil {
		return CrawlProgress{}
	}
	return sess.Progress()
}

// Results summarizes the pages accumulated by the active or most recent
// run.
func (o *Orchestrator) Results() ResultSummary {
	sess := o.admission.current()
	if sess == nil {
		return ResultSummary{}
	}
	return sess.Results()
}

func (o *Orchestrator) newSession(rootURL string, pageBudget int) *Session {
	return NewSession(uuid.NewString(), rootURL, pageBudget, o.clock.Now())
}

func (o *Orchestrator) runSite(ctx context.Context, sess *Session, rootURL string, pageBudget int) CrawlRun {
	defer o.admission.finish(sess)
	start := o.clock.Now()

	o.crawlSite(ctx, sess, rootURL, pageBudget)

	run := sess.Run()
	o.persist(ctx, run)
	metrics.RecordRun("site", o.clock.Now().Sub(start))
	o.logger.Info("site crawl completed",
		zap.String("session_id", sess.ID()),
		zap.String("root_url", rootURL),
		zap.Int("pages", len(run.Pages)),
	)
	return run
}

func (o *Orchestrator) runList(ctx context.Context, sess *Session, urls []string) CrawlRun {
	defer o.admission.finish(sess)
	start := o.clock.Now()

	sess.SetTotal(len(urls))
	cfg := o.cfg.Fetch.WithoutFilter()
	for _, target := range urls {
		sess.Advance()
		sess.Append(o.fetchPage(ctx, target, cfg))
	}

	run := sess.Run()
	o.persist(ctx, run)
	metrics.RecordRun("list", o.clock.Now().Sub(start))
	o.logger.Info("batch crawl completed",
		zap.String("session_id", sess.ID()),
		zap.Int("pages", len(run.Pages)),
	)
	return run
}

// crawlSite runs the two fetch tiers. A failing root fetch yields zero
// discovered links and still completes the run with a single-page result.
func (o *Orchestrator) crawlSite(ctx context.Context, sess *Session, rootURL string, pageBudget int) {
	root := o.fetchPage(ctx, rootURL, o.cfg.Fetch)
	sess.Append(root)

	var outlinks []string
	if root.Status == PageStatusSuccess {
		outlinks = o.discoverer.Discover(root.RawMarkup, rootURL, pageBudget-1)
	}

	sess.SetTotal(len(outlinks) + 1)
	sess.Advance()

	for _, link := range outlinks {
		sess.Advance()
		sess.Append(o.fetchPage(ctx, link, o.cfg.Fetch))
	}
}

// fetchPage fetches one URL and converts any collaborator failure into an
// error PageResult. This is the single decision point of the isolate-and-
// continue policy.
func (o *Orchestrator) fetchPage(ctx context.Context, target string, cfg FetchConfig) PageResult {
	payload, err := o.fetcher.Fetch(ctx, target, cfg)
	now := o.clock.Now()
	if err != nil {
		o.logger.Warn("page fetch failed", zap.String("url", target), zap.Error(err))
		metrics.RecordPage(string(PageStatusError))
		return PageResult{
			URL:       target,
			Title:     "Error",
			Content:   fmt.Sprintf("failed to crawl: %v", err),
			Timestamp: now,
			Status:    PageStatusError,
		}
	}
	metrics.RecordPage(string(PageStatusSuccess))
	return PageResult{
		URL:       target,
		Title:     payload.Title,
		Content:   payload.BestContent(),
		WordCount: payload.WordCount(),
		Timestamp: now,
		Status:    PageStatusSuccess,
		RawMarkup: payload.RawMarkup,
	}
}

// persist hands the finished run to the snapshot store. Storage failures
// are logged, never fatal; the run stays readable through Results.
func (o *Orchestrator) persist(ctx context.Context, run CrawlRun) {
	origin, err := Origin(run.RootURL)
	if err != nil {
		o.logger.Error("derive snapshot origin failed", zap.String("root_url", run.RootURL), zap.Error(err))
		return
	}
	key, err := o.store.Save(ctx, origin, run)
	if err != nil {
		o.logger.Error("snapshot save failed", zap.String("origin", origin), zap.Error(err))
		return
	}
	o.logger.Info("snapshot saved", zap.String("key", key), zap.Int("pages", len(run.Pages)))
}

// sessionGuard enforces the single-active-run invariant and retains the
// last session for the status/results facade.
type sessionGuard struct {
	mu      sync.Mutex
	running bool
	session *Session
}

func (g *sessionGuard) begin(sess *Session) (*Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return nil, ErrCrawlInProgress
	}
	g.running = true
	g.session = sess
	return sess, nil
}

func (g *sessionGuard) finish(sess *Session) {
	sess.Finish()
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()
}

func (g *sessionGuard) current() *Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session
}
