// Command sitesnap runs the crawl service HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitesnap/internal/api"
	"github.com/JakeFAU/sitesnap/internal/clock/system"
	"github.com/JakeFAU/sitesnap/internal/config"
	"github.com/JakeFAU/sitesnap/internal/crawler"
	collyfetch "github.com/JakeFAU/sitesnap/internal/fetch/colly"
	"github.com/JakeFAU/sitesnap/internal/fetch/headless"
	"github.com/JakeFAU/sitesnap/internal/links"
	"github.com/JakeFAU/sitesnap/internal/logging"
	"github.com/JakeFAU/sitesnap/internal/metrics"
	"github.com/JakeFAU/sitesnap/internal/sitelist"
	"github.com/JakeFAU/sitesnap/internal/store/badgerstore"
	fsstore "github.com/JakeFAU/sitesnap/internal/store/fs"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "sitesnap: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	metrics.Init()
	clk := system.New()

	var store crawler.SnapshotStore
	switch cfg.Storage.Backend {
	case config.BackendBadger:
		badgerStore, err := badgerstore.New(cfg.Storage.Dir, clk)
		if err != nil {
			return fmt.Errorf("open badger store: %w", err)
		}
		defer func() { _ = badgerStore.Close() }()
		store = badgerStore
	default:
		fsStore, err := fsstore.New(cfg.Storage.Dir, clk)
		if err != nil {
			return fmt.Errorf("open snapshot dir: %w", err)
		}
		store = fsStore
	}

	var fetcher crawler.PageFetcher
	if cfg.Headless.Enabled {
		headlessFetcher, err := headless.New(headless.Config{
			UserAgent:   cfg.Crawler.UserAgent,
			NavTimeout:  cfg.NavTimeout(),
			MaxParallel: cfg.Headless.MaxParallel,
		})
		if err != nil {
			return fmt.Errorf("start headless browser: %w", err)
		}
		defer headlessFetcher.Close()
		fetcher = headlessFetcher
	} else {
		fetcher = collyfetch.New(collyfetch.Config{
			UserAgent: cfg.Crawler.UserAgent,
			Timeout:   cfg.FetchTimeout(),
			CacheDir:  cfg.Fetch.CacheDir,
		})
	}

	orchestrator := crawler.NewOrchestrator(
		fetcher,
		links.NewDiscoverer(),
		store,
		clk,
		crawler.Config{
			DefaultPageBudget: cfg.Crawler.DefaultPageBudget,
			Fetch: crawler.FetchConfig{
				ExcludedTags:       cfg.Fetch.ExcludedTags,
				MinBlockWords:      cfg.Fetch.MinBlockWords,
				WordCountThreshold: cfg.Fetch.WordCountThreshold,
				UseCache:           cfg.Fetch.CacheEnabled,
			},
		},
		logger,
	)

	loadSites := func() ([]string, error) {
		return sitelist.Load(cfg.Crawler.SiteListPath)
	}

	handler := api.NewServer(orchestrator, store, loadSites, clk, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
