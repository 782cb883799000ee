// Package fsstore persists crawl snapshots as one JSON file each in a
// cache directory. Keys look like "<host>_<timestamp>.json" so they sort by
// creation time and prefix-match by origin.
package fsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/JakeFAU/sitesnap/internal/crawler"
)

// keyTimestampLayout is nanosecond-precision so concurrent-second saves
// still produce distinct, sortable keys.
const keyTimestampLayout = "20060102_150405.000000000"

var invalidKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Store is a filesystem-backed crawler.SnapshotStore.
type Store struct {
	dir   string
	clock crawler.Clock
}

// New validates the cache directory (creating it if needed) and returns a
// Store.
func New(dir string, clock crawler.Clock) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create cache directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat cache directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("cache path %s is not a directory", dir)
	}
	return &Store{dir: dir, clock: clock}, nil
}

// Save writes run under a fresh key derived from the origin host and the
// creation instant. Existing snapshots are never overwritten; a key
// collision bumps the timestamp and retries.
func (s *Store) Save(_ context.Context, origin string, run crawler.CrawlRun) (string, error) {
	host := hostLabel(origin)
	run.TotalPages = len(run.Pages)
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	ts := s.clock.Now().UTC()
	for {
		key := fmt.Sprintf("%s_%s.json", host, ts.Format(keyTimestampLayout))
		path := filepath.Join(s.dir, key)
		if _, statErr := os.Stat(path); statErr == nil {
			ts = ts.Add(time.Nanosecond)
			continue
		}
		if writeErr := os.WriteFile(path, data, 0o600); writeErr != nil {
			return "", fmt.Errorf("write snapshot: %w", writeErr)
		}
		return key, nil
	}
}

// LoadLatest returns the newest snapshot whose key carries origin's host,
// or found=false when there is none.
func (s *Store) LoadLatest(ctx context.Context, origin string) (crawler.CrawlRun, bool, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return crawler.CrawlRun{}, false, err
	}
	prefix := hostLabel(origin) + "_"
	for _, info := range infos {
		if strings.HasPrefix(info.Key, prefix) {
			run, loadErr := s.LoadByKey(ctx, info.Key)
			if loadErr != nil {
				return crawler.CrawlRun{}, false, loadErr
			}
			return run, true, nil
		}
	}
	return crawler.CrawlRun{}, false, nil
}

// List returns metadata for every snapshot, newest first.
func (s *Store) List(_ context.Context) ([]crawler.SnapshotInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read cache directory: %w", err)
	}
	var infos []crawler.SnapshotInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		fi, statErr := entry.Info()
		if statErr != nil {
			return nil, fmt.Errorf("stat snapshot %s: %w", entry.Name(), statErr)
		}
		created, ok := keyCreation(entry.Name())
		if !ok {
			created = fi.ModTime().UTC()
		}
		infos = append(infos, crawler.SnapshotInfo{
			Key:      entry.Name(),
			Size:     fi.Size(),
			Created:  created,
			Modified: fi.ModTime().UTC(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Created.After(infos[j].Created)
	})
	return infos, nil
}

// LoadByKey reads one snapshot. A missing or traversal-shaped key reports
// crawler.ErrSnapshotNotFound.
func (s *Store) LoadByKey(_ context.Context, key string) (crawler.CrawlRun, error) {
	if key == "" || filepath.Base(key) != key {
		return crawler.CrawlRun{}, fmt.Errorf("key %q: %w", key, crawler.ErrSnapshotNotFound)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return crawler.CrawlRun{}, fmt.Errorf("key %q: %w", key, crawler.ErrSnapshotNotFound)
		}
		return crawler.CrawlRun{}, fmt.Errorf("read snapshot: %w", err)
	}
	var run crawler.CrawlRun
	if err := json.Unmarshal(data, &run); err != nil {
		return crawler.CrawlRun{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return run, nil
}

// Clear removes every snapshot file. It is a no-op on an empty store.
func (s *Store) Clear(_ context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read cache directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove snapshot %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// hostLabel reduces an origin to a filename-safe host label.
func hostLabel(origin string) string {
	host := origin
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	host = strings.ToLower(strings.TrimSuffix(host, "/"))
	return invalidKeyChars.ReplaceAllString(host, "_")
}

// keyCreation recovers the creation instant embedded in a snapshot key.
func keyCreation(key string) (time.Time, bool) {
	base := strings.TrimSuffix(key, ".json")
	parts := strings.Split(base, "_")
	if len(parts) < 2 {
		return time.Time{}, false
	}
	stamp := parts[len(parts)-2] + "_" + parts[len(parts)-1]
	ts, err := time.Parse(keyTimestampLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
