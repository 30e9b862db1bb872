package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raphaelgruber/texmtlx/internal/events"
	"github.com/raphaelgruber/texmtlx/internal/metrics"
	"github.com/raphaelgruber/texmtlx/internal/models"
	"github.com/raphaelgruber/texmtlx/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConverter records concurrency and fails sources containing "bad".
type fakeConverter struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
	delay    time.Duration
}

func (f *fakeConverter) Convert(ctx context.Context, src, dst string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.calls.Add(1)
	time.Sleep(f.delay)
	if strings.Contains(src, "bad") {
		return "cannot decode " + src, errors.New("exit status 1")
	}
	return "", nil
}

func TestComputeConcurrency(t *testing.T) {
	tests := []struct {
		cpus    int
		reserve float64
		want    int
	}{
		{8, 0.15, 6},
		{16, 0.15, 13},
		{1, 0.15, 1},
		{0, 0.15, 1},
		{4, 0.5, 2},
		{4, 0, 4},
		{10, 2, 8}, // out of range falls back to the default reserve
	}
	for _, tt := range tests {
		if got := ComputeConcurrency(tt.cpus, tt.reserve); got != tt.want {
			t.Errorf("ComputeConcurrency(%d, %v) = %d, want %d", tt.cpus, tt.reserve, got, tt.want)
		}
	}
}

func TestCachePath(t *testing.T) {
	tests := []struct {
		src, ext, want string
	}{
		{"/tex/a_Albedo.png", ".tx", "/tex/a_Albedo.tx"},
		{"/tex/a_Albedo_1001.tiff", "", "/tex/a_Albedo_1001.tx"},
		{"/tex.v2/a_Albedo.exr", ".rat", "/tex.v2/a_Albedo.rat"},
	}
	for _, tt := range tests {
		if got := CachePath(tt.src, tt.ext); got != tt.want {
			t.Errorf("CachePath(%q, %q) = %q, want %q", tt.src, tt.ext, got, tt.want)
		}
	}
}

func TestConvertPartialFailure(t *testing.T) {
	conv := &fakeConverter{delay: 5 * time.Millisecond}
	var mu sync.Mutex
	var completions []int
	sink := events.Funcs{OnTask: func(e events.TaskEvent) {
		if e.Phase == events.PhaseStarted {
			return
		}
		mu.Lock()
		completions = append(completions, e.Completed)
		mu.Unlock()
		assert.Equal(t, 10, e.Total)
	}}
	collector := metrics.NewCollector()

	var sources []string
	for i := range 10 {
		name := fmt.Sprintf("/tex/m%d_Albedo.png", i)
		if i == 3 || i == 7 {
			name = fmt.Sprintf("/tex/bad%d_Albedo.png", i)
		}
		sources = append(sources, name)
	}
	tasks := NewConversionTasks(sources, ".tx")

	report := NewConversionPipeline(conv, sink, collector).Convert(context.Background(), tasks, 3)

	assert.Equal(t, 8, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 10, report.Total())
	assert.Len(t, report.Results, 10)
	assert.Equal(t, []string{"/tex/bad3_Albedo.png", "/tex/bad7_Albedo.png"}, report.FailedSources())
	assert.Equal(t, int32(10), conv.calls.Load(), "failed tasks are not retried")
	assert.LessOrEqual(t, conv.peak.Load(), int32(3))

	// one event per completion, counts strictly increasing
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, completions)

	for _, task := range tasks {
		snap := task.Snapshot()
		assert.True(t, snap.Status.Terminal(), "task %s not terminal", snap.ID)
		assert.NotNil(t, snap.CompletedAt)
	}
	bad := report.Results["/tex/bad3_Albedo.png"]
	assert.False(t, bad.Succeeded)
	assert.Contains(t, bad.Output, "cannot decode")
	assert.Equal(t, "/tex/bad3_Albedo.tx", bad.Dest)

	snap := collector.Snapshot()
	require.NotNil(t, snap.Convert)
	assert.Equal(t, int64(10), snap.Convert.Count)
	assert.Equal(t, int64(2), snap.Convert.Failures)
}

func TestConvertLimitClamped(t *testing.T) {
	conv := &fakeConverter{delay: 2 * time.Millisecond}
	tasks := NewConversionTasks([]string{"/t/a_Albedo.png", "/t/b_Albedo.png", "/t/c_Albedo.png"}, ".tx")

	report := NewConversionPipeline(conv, events.Nop{}, nil).Convert(context.Background(), tasks, 0)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, int32(1), conv.peak.Load(), "limit below 1 runs a single worker")
}

func TestConvertEmpty(t *testing.T) {
	report := NewConversionPipeline(&fakeConverter{}, nil, nil).Convert(context.Background(), nil, 4)
	assert.Zero(t, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.Empty(t, report.Results)
}

func TestTasksForSets(t *testing.T) {
	sets := map[string]*models.MaterialTextureSet{
		"rock": {Name: "rock", Textures: map[taxonomy.Role][]string{
			taxonomy.RoleColor:     {"/t/rock_Albedo.png"},
			taxonomy.RoleRoughness: {"/t/rock_Rough.png"},
		}},
		"moss": {Name: "moss", Textures: map[taxonomy.Role][]string{
			taxonomy.RoleColor: {"/t/moss_Albedo.png"},
		}},
	}

	tasks := TasksForSets(sets, []string{"rock"}, ".tx")
	require.Len(t, tasks, 2)
	assert.Equal(t, "/t/rock_Albedo.png", tasks[0].Source)
	assert.Equal(t, "/t/rock_Albedo.tx", tasks[0].Dest)
	assert.Equal(t, TaskPending, tasks[0].Status)
	assert.Len(t, tasks[0].ID, 8)

	assert.Len(t, TasksForSets(sets, nil, ".tx"), 3)
	assert.Empty(t, TasksForSets(sets, []string{"unknown"}, ".tx"))
}
