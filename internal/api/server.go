// Package api exposes the HTTP interface for the crawl service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitesnap/internal/crawler"
	"github.com/JakeFAU/sitesnap/internal/export"
	"github.com/JakeFAU/sitesnap/internal/metrics"
)

// CrawlService is the orchestrator surface the handlers depend on.
type CrawlService interface {
	StartSiteCrawl(ctx context.Context, rootURL string, pageBudget int) (crawler.StartResult, error)
	StartListCrawl(ctx context.Context, urls []string) (crawler.StartResult, error)
	Progress() crawler.CrawlProgress
	Results() crawler.ResultSummary
}

// SiteListLoader returns the batch crawl targets, or nil when no list exists.
type SiteListLoader func() ([]string, error)

// Server routes HTTP requests to the crawl orchestrator and snapshot store.
type Server struct {
	router    chi.Router
	service   CrawlService
	store     crawler.SnapshotStore
	loadSites SiteListLoader
	clock     crawler.Clock
	logger    *zap.Logger
}

// NewServer builds the router with all crawl, cache, and export routes mounted.
func NewServer(service CrawlService, store crawler.SnapshotStore, loadSites SiteListLoader, clock crawler.Clock, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:    chi.NewRouter(),
		service:   service,
		store:     store,
		loadSites: loadSites,
		clock:     clock,
		logger:    logger,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(s.requestID)
	s.router.Use(s.logRequests)
	s.router.Use(s.recoverPanic)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/crawl", s.handleCrawl)
		r.Post("/crawl/batch", s.handleCrawlBatch)
		r.Get("/status", s.handleStatus)
		r.Get("/results", s.handleResults)
		r.Get("/download/csv", s.handleDownloadCSV)
		r.Get("/download/xlsx", s.handleDownloadXLSX)
		r.Get("/cache/list", s.handleCacheList)
		r.Get("/cache/load/{key}", s.handleCacheLoad)
		r.Post("/cache/clear", s.handleCacheClear)
	})
}

type crawlRequest struct {
	URL        string `json:"url"`
	PageBudget int    `json:"page_budget"`
	UseCache   *bool  `json:"use_cache"`
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	res, err := s.service.StartSiteCrawl(r.Context(), req.URL, req.PageBudget)
	if err != nil {
		s.startError(w, err)
		return
	}
	if res.Cached != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"message":     "loaded from cache",
			"cached_data": res.Cached,
			"use_cache":   true,
		})
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"message":    "crawl started",
		"session_id": res.SessionID,
		"url":        req.URL,
	})
}

func (s *Server) handleCrawlBatch(w http.ResponseWriter, r *http.Request) {
	urls, err := s.loadSites()
	if err != nil {
		s.logger.Error("site list load failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not read site list")
		return
	}
	if len(urls) == 0 {
		s.writeError(w, http.StatusBadRequest, "site list is empty")
		return
	}

	res, err := s.service.StartListCrawl(r.Context(), urls)
	if err != nil {
		s.startError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"message":        "batch crawl started",
		"session_id":     res.SessionID,
		"total_websites": len(urls),
	})
}

// startError maps orchestrator admission failures onto HTTP status codes.
func (s *Server) startError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, crawler.ErrCrawlInProgress):
		s.writeError(w, http.StatusConflict, "a crawl is already running")
	case errors.Is(err, crawler.ErrEmptySiteList):
		s.writeError(w, http.StatusBadRequest, "site list is empty")
	default:
		s.writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Progress())
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Results())
}

func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	summary := s.service.Results()
	if len(summary.Pages) == 0 {
		s.writeError(w, http.StatusBadRequest, "no crawl results available")
		return
	}

	filename := fmt.Sprintf("crawl_results_%s.csv", s.clock.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.WriteCSV(w, summary.Pages); err != nil {
		s.logger.Error("csv export failed", zap.Error(err))
	}
}

func (s *Server) handleDownloadXLSX(w http.ResponseWriter, r *http.Request) {
	summary := s.service.Results()
	if len(summary.Pages) == 0 {
		s.writeError(w, http.StatusBadRequest, "no crawl results available")
		return
	}

	filename := fmt.Sprintf("crawl_results_%s.xlsx", s.clock.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.WriteXLSX(w, summary.Pages); err != nil {
		s.logger.Error("xlsx export failed", zap.Error(err))
	}
}

func (s *Server) handleCacheList(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("cache list failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not list cache")
		return
	}
	if infos == nil {
		infos = []crawler.SnapshotInfo{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cache_files": infos})
}

func (s *Server) handleCacheLoad(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	run, err := s.store.LoadByKey(r.Context(), key)
	if err != nil {
		if errors.Is(err, crawler.ErrSnapshotNotFound) {
			s.writeError(w, http.StatusNotFound, "cache file not found")
			return
		}
		s.logger.Error("cache load failed", zap.String("key", key), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not load cache file")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		s.logger.Error("cache clear failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not clear cache")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"message": "cache cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		id, _ := r.Context().Value(requestIDKey).(string)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("request_id", id),
		)
	})
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in handler", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
