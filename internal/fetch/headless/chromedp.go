// Package headless implements the page-fetch collaborator with a headless
// Chrome renderer, for sites whose content only materializes after script
// execution.
package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/sitesnap/internal/crawler"
	"github.com/JakeFAU/sitesnap/internal/fetch/extract"
)

// Config controls the renderer.
type Config struct {
	UserAgent   string
	NavTimeout  time.Duration
	MaxParallel int
}

// Fetcher implements crawler.PageFetcher by rendering the page in a
// dedicated browser tab and extracting the resulting DOM.
type Fetcher struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	sem             chan struct{}
	cfg             Config
	extractor       *extract.Extractor
}

// New launches the shared browser and warms it up.
func New(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 25 * time.Second
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Fetcher{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		sem:             make(chan struct{}, cfg.MaxParallel),
		cfg:             cfg,
		extractor:       extract.New(),
	}, nil
}

// Close tears down the browser and allocator contexts.
func (f *Fetcher) Close() {
	if f == nil {
		return
	}
	f.browserCancel()
	f.allocatorCancel()
}

// Fetch renders rawURL in a fresh tab and extracts the DOM snapshot.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, cfg crawler.FetchConfig) (crawler.FetchPayload, error) {
	select {
	case f.sem <- struct{}{}:
		defer func() { <-f.sem }()
	case <-ctx.Done():
		return crawler.FetchPayload{}, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()
	taskCtx, cancelTask := context.WithTimeout(tabCtx, f.cfg.NavTimeout)
	defer cancelTask()

	var markup string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(f.cfg.UserAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return crawler.FetchPayload{}, fmt.Errorf("render %s: %w", rawURL, err)
	}
	return f.extractor.Extract(markup, cfg)
}
