package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

// Tracker is a durable per-task record of completed and failed item ids,
// backed by a single JSON file under the cache root. A task re-run skips ids
// already completed; a corrupt file restarts the task from scratch rather
// than hard-failing.
//
// Single-writer: the batch job owning the task name. Concurrent jobs with
// distinct task names are independent.
type Tracker struct {
	mu     sync.Mutex
	path   string
	task   string
	logger *logging.Logger

	completed map[string]struct{}
	failed    map[string]string
	startedAt string
}

type fileState struct {
	CompletedIDs []string          `json:"completed_ids"`
	FailedIDs    map[string]string `json:"failed_ids"`
	Metadata     fileMetadata      `json:"metadata"`
}

type fileMetadata struct {
	StartedAt   string `json:"started_at"`
	LastUpdated string `json:"last_updated"`
}

type Stats struct {
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// NewTracker loads (or initializes) progress for the given task name.
func NewTracker(root, task string, logger *logging.Logger) (*Tracker, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, fmt.Errorf("progress task name is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create progress root %s: %w", root, err)
	}
	if logger == nil {
		logger = logging.Default()
	}

	t := &Tracker{
		path:      filepath.Join(root, fmt.Sprintf("batch_%s_progress.json", task)),
		task:      task,
		logger:    logger,
		completed: make(map[string]struct{}),
		failed:    make(map[string]string),
		startedAt: time.Now().Format(time.RFC3339),
	}
	t.load()
	return t, nil
}

func (t *Tracker) load() {
	raw, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("progress file unreadable, starting fresh", "task", t.task, "path", t.path, "error", err)
		}
		return
	}

	var state fileState
	if err := sonic.Unmarshal(raw, &state); err != nil {
		t.logger.Warn("progress file corrupt, starting fresh", "task", t.task, "path", t.path, "error", err)
		return
	}

	for _, id := range state.CompletedIDs {
		t.completed[id] = struct{}{}
	}
	for id, msg := range state.FailedIDs {
		if _, done := t.completed[id]; done {
			continue
		}
		t.failed[id] = msg
	}
	if state.Metadata.StartedAt != "" {
		t.startedAt = state.Metadata.StartedAt
	}
}

// MarkCompleted records a success. A previously failed id moves to
// completed; an id is never in both sets.
func (t *Tracker) MarkCompleted(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed[id] = struct{}{}
	delete(t.failed, id)
}

// MarkFailed records an error for an id unless it already completed.
func (t *Tracker) MarkFailed(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, done := t.completed[id]; done {
		return
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	t.failed[id] = msg
}

func (t *Tracker) IsCompleted(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.completed[id]
	return ok
}

// PendingIDs returns the subset of ids not yet completed, preserving input
// order so resumed runs are deterministic.
func (t *Tracker) PendingIDs(all []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(all))
	for _, id := range all {
		if _, done := t.completed[id]; !done {
			out = append(out, id)
		}
	}
	return out
}

func (t *Tracker) FailedIDs() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]string, len(t.failed))
	for id, msg := range t.failed {
		out[id] = msg
	}
	return out
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{
		Completed: len(t.completed),
		Failed:    len(t.failed),
	}
	s.Total = s.Completed + s.Failed
	if s.Total > 0 {
		s.Percent = 100 * float64(s.Completed) / float64(s.Total)
	}
	return s
}

// Save atomically replaces the progress file.
func (t *Tracker) Save() error {
	t.mu.Lock()
	state := fileState{
		CompletedIDs: make([]string, 0, len(t.completed)),
		FailedIDs:    make(map[string]string, len(t.failed)),
		Metadata: fileMetadata{
			StartedAt:   t.startedAt,
			LastUpdated: time.Now().Format(time.RFC3339),
		},
	}
	for id := range t.completed {
		state.CompletedIDs = append(state.CompletedIDs, id)
	}
	for id, msg := range t.failed {
		state.FailedIDs[id] = msg
	}
	t.mu.Unlock()

	sort.Strings(state.CompletedIDs)

	raw, err := sonic.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode progress for task %s: %w", t.task, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create progress temp file for task %s: %w", t.task, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write progress for task %s: %w", t.task, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close progress temp file for task %s: %w", t.task, err)
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename progress file for task %s: %w", t.task, err)
	}
	return nil
}

// Reset clears in-memory state and removes the progress file.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	t.completed = make(map[string]struct{})
	t.failed = make(map[string]string)
	t.startedAt = time.Now().Format(time.RFC3339)
	t.mu.Unlock()

	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove progress file for task %s: %w", t.task, err)
	}
	return nil
}
