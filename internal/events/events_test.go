package events

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiAndFuncs(t *testing.T) {
	var tasks []Phase
	var stages []Stage
	f := Funcs{
		OnTask:     func(e TaskEvent) { tasks = append(tasks, e.Phase) },
		OnMaterial: func(e MaterialEvent) { stages = append(stages, e.Stage) },
	}

	m := Multi{f, Nop{}, Funcs{}, f}
	m.Task(TaskEvent{Phase: PhaseSucceeded})
	m.Material(MaterialEvent{Stage: StageMaterialized})

	assert.Equal(t, []Phase{PhaseSucceeded, PhaseSucceeded}, tasks)
	assert.Equal(t, []Stage{StageMaterialized, StageMaterialized}, stages)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	s := NewLogSink(logger)

	s.Task(TaskEvent{TaskID: "ab12cd34", Source: "/t/a_Albedo.png", Phase: PhaseStarted})
	assert.Empty(t, buf.String(), "started events log at debug")

	s.Task(TaskEvent{TaskID: "ab12cd34", Source: "/t/a_Albedo.png", Phase: PhaseFailed, Output: "boom", Completed: 1, Total: 2})
	out := buf.String()
	assert.Contains(t, out, "conversion failed")
	assert.Contains(t, out, "output=boom")
	assert.Contains(t, out, "progress=1")

	buf.Reset()
	s.Material(MaterialEvent{Material: "tires", Stage: StageFailed, Err: errors.New("locked")})
	assert.Contains(t, buf.String(), "material=tires")
	assert.Contains(t, buf.String(), "error=locked")
}
