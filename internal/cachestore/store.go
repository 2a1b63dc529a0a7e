package cachestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

// ErrMiss is returned when an entry is absent, expired, or unreadable.
var ErrMiss = crerr.New("cache miss")

const defaultFilePattern = "%s_%s.json"

// Entry is the on-disk wrapper around a cached payload. Data holds the exact
// payload returned by the vendor; the wrapper is added only by this store.
type Entry struct {
	Timestamp   int64          `json:"timestamp"`
	LastUpdated string         `json:"last_updated"`
	Data        any            `json:"data"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(e.Timestamp, 0))
}

// TTLPolicy maps symbolic TTL classes to expiry durations. A zero duration
// means always stale (refresh on every read); a negative duration never
// expires. Unknown classes fall back to Default.
type TTLPolicy struct {
	Default time.Duration
	Classes map[string]time.Duration
}

func (p TTLPolicy) For(class string) time.Duration {
	if class != "" {
		if ttl, ok := p.Classes[class]; ok {
			return ttl
		}
	}
	return p.Default
}

// Store is a filesystem-backed payload cache rooted at a single directory,
// one file per (prefix, identifier) pair. Writes go through a sibling temp
// file and a rename, so concurrent readers see either the old entry or the
// new one, never a torn file.
type Store struct {
	root        string
	policy      TTLPolicy
	filePattern string
	logger      *logging.Logger
	now         func() time.Time
}

func New(root string, policy TTLPolicy, logger *logging.Logger) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("cache root path is required")
	}
	if policy.Default == 0 && len(policy.Classes) == 0 {
		return nil, fmt.Errorf("cache ttl policy is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root %s: %w", root, err)
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Store{
		root:        root,
		policy:      policy,
		filePattern: defaultFilePattern,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Get returns the cached payload for (prefix, identifier) when present and
// fresh under the given TTL class. Corrupt files count as misses and are
// overwritten by the next Set.
func (s *Store) Get(prefix, identifier, class string) (any, error) {
	entry, err := s.read(prefix, identifier)
	if err != nil {
		return nil, err
	}
	if s.expired(entry, s.policy.For(class)) {
		return nil, fmt.Errorf("%w: expired %s/%s class=%s", ErrMiss, prefix, identifier, class)
	}
	return entry.Data, nil
}

// GetClassified reads the entry and derives the TTL class from the cached
// payload itself, for fetchers whose expiry depends on payload contents
// (e.g. active vs historical players, live vs final games).
func (s *Store) GetClassified(prefix, identifier string, classify func(data any) string) (any, error) {
	entry, err := s.read(prefix, identifier)
	if err != nil {
		return nil, err
	}
	class := ""
	if classify != nil {
		class = classify(entry.Data)
	}
	if s.expired(entry, s.policy.For(class)) {
		return nil, fmt.Errorf("%w: expired %s/%s class=%s", ErrMiss, prefix, identifier, class)
	}
	return entry.Data, nil
}

// Set writes the payload wrapped with the current timestamp. The write is
// temp-file-then-rename atomic; a leftover temp file after a failed write is
// logged and removed best-effort.
func (s *Store) Set(prefix, identifier string, data any, metadata map[string]any) error {
	now := s.now()
	entry := Entry{
		Timestamp:   now.Unix(),
		LastUpdated: now.Format(time.RFC3339),
		Data:        data,
		Metadata:    metadata,
	}

	raw, err := sonic.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry %s/%s: %w", prefix, identifier, err)
	}

	path := s.path(prefix, identifier)
	tmp, err := os.CreateTemp(s.root, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create cache temp file for %s/%s: %w", prefix, identifier, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		s.removeTemp(tmpName)
		return fmt.Errorf("write cache entry %s/%s: %w", prefix, identifier, err)
	}
	if err := tmp.Close(); err != nil {
		s.removeTemp(tmpName)
		return fmt.Errorf("close cache temp file for %s/%s: %w", prefix, identifier, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		s.removeTemp(tmpName)
		return fmt.Errorf("rename cache entry %s/%s: %w", prefix, identifier, err)
	}
	return nil
}

// Clear removes a single entry when identifier is set, otherwise every entry
// under the prefix older than olderThan (zero removes all).
func (s *Store) Clear(prefix, identifier string, olderThan time.Duration) (int, error) {
	if identifier != "" {
		err := os.Remove(s.path(prefix, identifier))
		if err != nil {
			if os.IsNotExist(err) {
				return 0, nil
			}
			return 0, fmt.Errorf("remove cache entry %s/%s: %w", prefix, identifier, err)
		}
		return 1, nil
	}

	pattern := filepath.Join(s.root, fmt.Sprintf(s.filePattern, sanitize(prefix), "*"))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, fmt.Errorf("glob cache entries for prefix %s: %w", prefix, err)
	}

	removed := 0
	cutoff := s.now().Add(-olderThan)
	for _, path := range matches {
		if olderThan > 0 {
			entry, readErr := s.readPath(path)
			if readErr == nil && time.Unix(entry.Timestamp, 0).After(cutoff) {
				continue
			}
		}
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("remove cache entry %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}

func (s *Store) read(prefix, identifier string) (Entry, error) {
	path := s.path(prefix, identifier)
	entry, err := s.readPath(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, fmt.Errorf("%w: absent %s/%s", ErrMiss, prefix, identifier)
		}
		s.logger.Warn("unreadable cache entry treated as miss", "path", path, "error", err)
		return Entry{}, fmt.Errorf("%w: unreadable %s/%s", ErrMiss, prefix, identifier)
	}
	return entry, nil
}

func (s *Store) readPath(path string) (Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	if err := sonic.Unmarshal(raw, &entry); err != nil {
		return Entry{}, fmt.Errorf("decode cache entry %s: %w", path, err)
	}
	return entry, nil
}

func (s *Store) expired(entry Entry, ttl time.Duration) bool {
	if ttl < 0 {
		return false
	}
	return entry.Age(s.now()) >= ttl
}

func (s *Store) path(prefix, identifier string) string {
	return filepath.Join(s.root, fmt.Sprintf(s.filePattern, sanitize(prefix), sanitize(identifier)))
}

func (s *Store) removeTemp(name string) {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove cache temp file failed", "path", name, "error", err)
	}
}

func sanitize(part string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", "..", "-", " ", "_")
	return replacer.Replace(strings.ToLower(strings.TrimSpace(part)))
}
