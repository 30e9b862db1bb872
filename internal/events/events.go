// Package events carries observational progress events out of the
// conversion pipeline and the material builder.
package events

import (
	"log/slog"
	"time"
)

// Phase is the lifecycle step a conversion task has reached.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// TaskEvent reports one conversion task transition. Completed and Total
// count finished tasks in the batch.
type TaskEvent struct {
	TaskID    string
	Source    string
	Phase     Phase
	Completed int
	Total     int
	Output    string // converter output on failure
	Time      time.Time
}

// Stage is a material build step.
type Stage string

const (
	StageSynthesized  Stage = "synthesized"
	StageMaterialized Stage = "materialized"
	StageFailed       Stage = "failed"
)

// MaterialEvent reports a material build step.
type MaterialEvent struct {
	Material string
	Stage    Stage
	Nodes    int
	Err      error
	Time     time.Time
}

// Sink receives events. Implementations are called from a single goroutine
// at a time.
type Sink interface {
	Task(TaskEvent)
	Material(MaterialEvent)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Task(TaskEvent)         {}
func (Nop) Material(MaterialEvent) {}

// Funcs adapts plain functions to Sink. Nil fields are skipped.
type Funcs struct {
	OnTask     func(TaskEvent)
	OnMaterial func(MaterialEvent)
}

func (f Funcs) Task(e TaskEvent) {
	if f.OnTask != nil {
		f.OnTask(e)
	}
}

func (f Funcs) Material(e MaterialEvent) {
	if f.OnMaterial != nil {
		f.OnMaterial(e)
	}
}

// Multi forwards every event to each sink in order.
type Multi []Sink

func (m Multi) Task(e TaskEvent) {
	for _, s := range m {
		s.Task(e)
	}
}

func (m Multi) Material(e MaterialEvent) {
	for _, s := range m {
		s.Material(e)
	}
}

// LogSink writes events as structured log lines.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging to logger, or slog.Default() if nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) Task(e TaskEvent) {
	attrs := []any{
		"task_id", e.TaskID,
		"source", e.Source,
		"progress", e.Completed,
		"total", e.Total,
	}
	switch e.Phase {
	case PhaseStarted:
		l.logger.Debug("conversion started", attrs...)
	case PhaseSucceeded:
		l.logger.Info("converted texture", attrs...)
	case PhaseFailed:
		attrs = append(attrs, "output", e.Output)
		l.logger.Error("conversion failed", attrs...)
	}
}

func (l *LogSink) Material(e MaterialEvent) {
	switch e.Stage {
	case StageFailed:
		l.logger.Error("material build failed", "material", e.Material, "error", e.Err)
	case StageMaterialized:
		l.logger.Info("material created", "material", e.Material, "nodes", e.Nodes)
	default:
		l.logger.Debug("material synthesized", "material", e.Material, "nodes", e.Nodes)
	}
}
