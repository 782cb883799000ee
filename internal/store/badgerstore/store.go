// Package badgerstore persists crawl snapshots in a BadgerDB key-value
// store. Keys carry the same "<host>_<timestamp>.json" shape as the
// filesystem backend so the two are interchangeable.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/JakeFAU/sitesnap/internal/crawler"
)

const (
	snapshotKeyPrefix  = "snap/"
	keyTimestampLayout = "20060102_150405.000000000"
)

var invalidKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// errKeyExists signals a timestamp collision inside the Save retry loop.
var errKeyExists = errors.New("snapshot key exists")

// Store is a Badger-backed crawler.SnapshotStore.
type Store struct {
	db    *badger.DB
	clock crawler.Clock
}

// New opens (or creates) the database under dir.
func New(dir string, clock crawler.Clock) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database at %s: %w", dir, err)
	}
	return &Store{db: db, clock: clock}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger database: %w", err)
	}
	return nil
}

// Save writes run under a fresh timestamped key, never overwriting an
// existing snapshot.
func (s *Store) Save(_ context.Context, origin string, run crawler.CrawlRun) (string, error) {
	host := hostLabel(origin)
	run.TotalPages = len(run.Pages)
	data, err := json.Marshal(run)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	ts := s.clock.Now().UTC()
	for {
		key := fmt.Sprintf("%s_%s.json", host, ts.Format(keyTimestampLayout))
		dbKey := []byte(snapshotKeyPrefix + key)
		err := s.db.Update(func(txn *badger.Txn) error {
			if _, getErr := txn.Get(dbKey); getErr == nil {
				return errKeyExists
			} else if !errors.Is(getErr, badger.ErrKeyNotFound) {
				return getErr
			}
			return txn.Set(dbKey, data)
		})
		if errors.Is(err, errKeyExists) {
			ts = ts.Add(time.Nanosecond)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("write snapshot: %w", err)
		}
		return key, nil
	}
}

// LoadLatest returns the newest snapshot for origin, or found=false.
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

// List returns metadata for every snapshot, newest first. Badger keeps no
// per-key modification time, so Modified mirrors the creation instant
// embedded in the key.
func (s *Store) List(_ context.Context) ([]crawler.SnapshotInfo, error) {
	var infos []crawler.SnapshotInfo
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(snapshotKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), snapshotKeyPrefix)
			created, ok := keyCreation(key)
			if !ok {
				created = time.Time{}
			}
			infos = append(infos, crawler.SnapshotInfo{
				Key:      key,
				Size:     item.ValueSize(),
				Created:  created,
				Modified: created,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Created.After(infos[j].Created)
	})
	return infos, nil
}

// LoadByKey reads one snapshot; a missing key reports
// crawler.ErrSnapshotNotFound.
func (s *Store) LoadByKey(_ context.Context, key string) (crawler.CrawlRun, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get([]byte(snapshotKeyPrefix + key))
		if getErr != nil {
			return getErr
		}
		data, getErr = item.ValueCopy(nil)
		return getErr
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return crawler.CrawlRun{}, fmt.Errorf("key %q: %w", key, crawler.ErrSnapshotNotFound)
	}
	if err != nil {
		return crawler.CrawlRun{}, fmt.Errorf("read snapshot: %w", err)
	}
	var run crawler.CrawlRun
	if err := json.Unmarshal(data, &run); err != nil {
		return crawler.CrawlRun{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return run, nil
}

// Clear drops every snapshot key. It is a no-op on an empty store.
func (s *Store) Clear(_ context.Context) error {
	if err := s.db.DropPrefix([]byte(snapshotKeyPrefix)); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	return nil
}

func hostLabel(origin string) string {
	host := origin
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	host = strings.ToLower(strings.TrimSuffix(host, "/"))
	return invalidKeyChars.ReplaceAllString(host, "_")
}

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
