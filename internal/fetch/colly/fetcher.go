// Package collyfetch implements the page-fetch collaborator with a Colly
// collector and the shared extraction pipeline.
package collyfetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/sitesnap/internal/crawler"
	"github.com/JakeFAU/sitesnap/internal/fetch/extract"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// CacheDir enables Colly's response cache when a fetch asks for it.
	CacheDir string
}

// Fetcher implements crawler.PageFetcher over plain HTTP.
type Fetcher struct {
	cfg       Config
	base      *colly.Collector
	extractor *extract.Extractor
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:       cfg,
		base:      c,
		extractor: extract.New(),
	}
}

// Fetch executes a single HTTP GET and extracts the page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, cfg crawler.FetchConfig) (crawler.FetchPayload, error) {
	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	if cfg.UseCache {
		collector.CacheDir = f.cfg.CacheDir
	}

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := f.visit(ctx, collector, rawURL); err != nil {
		return crawler.FetchPayload{}, err
	}
	if fetchErr != nil {
		return crawler.FetchPayload{}, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
	}
	return f.extractor.Extract(string(body), cfg)
}

func (f *Fetcher) visit(ctx context.Context, collector *colly.Collector, rawURL string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", rawURL, err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
