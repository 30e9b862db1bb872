package service

import (
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/texmtlx/internal/models"
)

// DefaultCacheExt is the texture-cache extension written by the converter.
const DefaultCacheExt = ".tx"

// TaskStatus represents the state of a conversion task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// ConversionTask is one source image to be converted to the texture cache.
// Tasks are never retried.
type ConversionTask struct {
	ID          string
	Source      string
	Dest        string
	Status      TaskStatus
	Output      string // converter stdout/stderr
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time

	mu sync.RWMutex
}

// CachePath returns src with its extension replaced by cacheExt.
func CachePath(src, cacheExt string) string {
	if cacheExt == "" {
		cacheExt = DefaultCacheExt
	}
	return strings.TrimSuffix(src, path.Ext(filepath.ToSlash(src))) + cacheExt
}

// NewConversionTask creates a pending task converting src next to itself.
func NewConversionTask(src, cacheExt string) *ConversionTask {
	return &ConversionTask{
		ID:     uuid.New().String()[:8], // Short ID for convenience
		Source: src,
		Dest:   CachePath(src, cacheExt),
		Status: TaskPending,
	}
}

// NewConversionTasks creates one task per source path.
func NewConversionTasks(sources []string, cacheExt string) []*ConversionTask {
	tasks := make([]*ConversionTask, 0, len(sources))
	for _, src := range sources {
		tasks = append(tasks, NewConversionTask(src, cacheExt))
	}
	return tasks
}

// TasksForSets creates tasks for every file of the named materials, or of
// all materials when names is empty. Files shared by several sets are
// converted once.
func TasksForSets(sets map[string]*models.MaterialTextureSet, names []string, cacheExt string) []*ConversionTask {
	if len(names) == 0 {
		names = SortedNames(sets)
	}
	seen := make(map[string]struct{})
	var sources []string
	for _, name := range names {
		set, ok := sets[name]
		if !ok {
			continue
		}
		for _, f := range set.Files() {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			sources = append(sources, f)
		}
	}
	return NewConversionTasks(sources, cacheExt)
}

func (t *ConversionTask) markRunning(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = TaskRunning
	t.StartedAt = at
}

func (t *ConversionTask) finish(output string, err error, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Output = output
	t.CompletedAt = &at
	if err != nil {
		t.Status = TaskFailed
		t.Error = err.Error()
		return
	}
	t.Status = TaskSucceeded
}

// Snapshot returns a thread-safe copy of task state.
func (t *ConversionTask) Snapshot() ConversionTask {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return ConversionTask{
		ID:          t.ID,
		Source:      t.Source,
		Dest:        t.Dest,
		Status:      t.Status,
		Output:      t.Output,
		Error:       t.Error,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}
