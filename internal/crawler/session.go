package crawler

import (
	"sync"
	"time"
)

// Session owns the progress and accumulating results of one crawl run.
// The running crawl mutates it; request handlers read consistent snapshots
// through the accessor methods. All methods are safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	id       string
	progress CrawlProgress
	run      CrawlRun
}

// NewSession creates a session in the fresh running state: zero pages done,
// total unknown until the root fetch resolves.
func NewSession(id, rootURL string, pageBudget int, startedAt time.Time) *Session {
	return &Session{
		id: id,
		progress: CrawlProgress{
			IsRunning: true,
		},
		run: CrawlRun{
			RootURL:    rootURL,
			StartedAt:  startedAt,
			PageBudget: pageBudget,
		},
	}
}

// ID returns the session identifier handed back to the caller that
// triggered the run.
func (s *Session) ID() string {
	return s.id
}

// SetTotal fixes the page total once it is known (after link discovery, or
// up front in batch mode).
func (s *Session) SetTotal(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.TotalPages = n
	s.recomputePercent()
}

// Advance moves the 1-based page cursor forward before the next fetch.
func (s *Session) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.CurrentPage++
	s.recomputePercent()
}

// Append records a completed page, success or error, in fetch order.
func (s *Session) Append(page PageResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Pages = append(s.run.Pages, page)
}

// Finish forces the terminal progress state. It runs on every completion
// path, including top-level faults.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.IsRunning = false
	s.progress.PercentComplete = 100
}

// Progress returns a copy of the current progress state.
func (s *Session) Progress() CrawlProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// Results summarizes the pages accumulated so far.
func (s *Session) Results() ResultSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary := ResultSummary{
		Pages:      append([]PageResult(nil), s.run.Pages...),
		TotalCount: len(s.run.Pages),
	}
	for _, p := range s.run.Pages {
		if p.Status == PageStatusSuccess {
			summary.SuccessCount++
		} else {
			summary.ErrorCount++
		}
	}
	return summary
}

// Run returns an independent copy of the accumulated run, finalized with
// its page total.
func (s *Session) Run() CrawlRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run := s.run
	run.Pages = append([]PageResult(nil), s.run.Pages...)
	run.TotalPages = len(run.Pages)
	return run
}

func (s *Session) recomputePercent() {
	if s.progress.TotalPages <= 0 {
		s.progress.PercentComplete = 0
		return
	}
	s.progress.PercentComplete = float64(s.progress.CurrentPage) / float64(s.progress.TotalPages) * 100
}
