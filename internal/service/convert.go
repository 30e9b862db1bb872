package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/raphaelgruber/texmtlx/internal/events"
	"github.com/raphaelgruber/texmtlx/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// DefaultReserve is the share of CPUs left idle during conversion.
const DefaultReserve = 0.15

// Converter converts one image to the texture cache. Convert blocks until
// the conversion finishes and returns the tool's captured output.
type Converter interface {
	Convert(ctx context.Context, src, dst string) (string, error)
}

// ComputeConcurrency returns the worker count for a batch:
// floor(numCPU * (1 - reserve)), never below 1.
func ComputeConcurrency(numCPU int, reserve float64) int {
	if reserve < 0 || reserve >= 1 {
		reserve = DefaultReserve
	}
	n := int(float64(numCPU) * (1 - reserve))
	return max(n, 1)
}

// Outcome is the result of one conversion task.
type Outcome struct {
	TaskID    string
	Dest      string
	Succeeded bool
	Output    string
	Err       error
	Duration  time.Duration
}

// ConversionReport summarizes a batch. Results is keyed by source path.
type ConversionReport struct {
	Succeeded int
	Failed    int
	Results   map[string]Outcome
	Tasks     []*ConversionTask
}

// Total returns the number of tasks in the batch.
func (r *ConversionReport) Total() int {
	return len(r.Tasks)
}

// FailedSources lists the sources whose conversion failed, in task order.
func (r *ConversionReport) FailedSources() []string {
	var out []string
	for _, t := range r.Tasks {
		if o, ok := r.Results[t.Source]; ok && !o.Succeeded {
			out = append(out, t.Source)
		}
	}
	return out
}

// ConversionPipeline runs conversion batches on a bounded worker pool.
type ConversionPipeline struct {
	converter Converter
	events    events.Sink
	metrics   *metrics.Collector
}

// NewConversionPipeline creates a pipeline. A nil sink logs events through
// slog; a nil collector disables timing.
func NewConversionPipeline(c Converter, sink events.Sink, m *metrics.Collector) *ConversionPipeline {
	if sink == nil {
		sink = events.NewLogSink(nil)
	}
	return &ConversionPipeline{converter: c, events: sink, metrics: m}
}

// workerMsg is what workers hand to the aggregator.
type workerMsg struct {
	task    *ConversionTask
	started bool
	output  string
	err     error
	elapsed time.Duration
}

// Convert runs every task with at most limit conversions in flight and
// returns once all tasks are terminal. Failures never stop the batch and are
// not retried. Workers only run the converter; task state, counters, metrics
// and events are updated by the calling goroutine alone.
func (p *ConversionPipeline) Convert(ctx context.Context, tasks []*ConversionTask, limit int) *ConversionReport {
	report := &ConversionReport{
		Results: make(map[string]Outcome, len(tasks)),
		Tasks:   tasks,
	}
	if len(tasks) == 0 {
		return report
	}
	limit = min(max(limit, 1), len(tasks))

	slog.Info("starting conversion", "tasks", len(tasks), "workers", limit)

	queue := make(chan *ConversionTask)
	msgs := make(chan workerMsg)

	var g errgroup.Group
	for range limit {
		g.Go(func() error {
			for task := range queue {
				msgs <- workerMsg{task: task, started: true}
				start := time.Now()
				out, err := p.converter.Convert(ctx, task.Source, task.Dest)
				msgs <- workerMsg{task: task, output: out, err: err, elapsed: time.Since(start)}
			}
			return nil
		})
	}

	go func() {
		for _, t := range tasks {
			queue <- t
		}
		close(queue)
	}()

	go func() {
		_ = g.Wait()
		close(msgs)
	}()

	total := len(tasks)
	completed := 0
	for m := range msgs {
		now := time.Now()
		if m.started {
			m.task.markRunning(now)
			p.events.Task(events.TaskEvent{
				TaskID: m.task.ID, Source: m.task.Source, Phase: events.PhaseStarted,
				Completed: completed, Total: total, Time: now,
			})
			continue
		}

		completed++
		m.task.finish(m.output, m.err, now)

		outcome := Outcome{
			TaskID:    m.task.ID,
			Dest:      m.task.Dest,
			Succeeded: m.err == nil,
			Output:    m.output,
			Err:       m.err,
			Duration:  m.elapsed,
		}
		report.Results[m.task.Source] = outcome

		phase := events.PhaseSucceeded
		if m.err != nil {
			phase = events.PhaseFailed
			report.Failed++
			if p.metrics != nil {
				p.metrics.RecordFailure(metrics.OpConvert, m.elapsed)
			}
		} else {
			report.Succeeded++
			if p.metrics != nil {
				p.metrics.RecordTiming(metrics.OpConvert, m.elapsed)
			}
		}

		ev := events.TaskEvent{
			TaskID: m.task.ID, Source: m.task.Source, Phase: phase,
			Completed: completed, Total: total, Time: now,
		}
		if m.err != nil {
			ev.Output = m.output
			if ev.Output == "" {
				ev.Output = m.err.Error()
			}
		}
		p.events.Task(ev)
	}

	slog.Info("conversion finished", "succeeded", report.Succeeded, "failed", report.Failed)
	return report
}
