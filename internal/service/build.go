package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/raphaelgruber/texmtlx/internal/events"
	"github.com/raphaelgruber/texmtlx/internal/graph"
	"github.com/raphaelgruber/texmtlx/internal/metrics"
	"github.com/raphaelgruber/texmtlx/internal/models"
	"github.com/raphaelgruber/texmtlx/internal/sink"
	"github.com/raphaelgruber/texmtlx/internal/taxonomy"
)

// ErrNoConverter is returned when cache conversion is requested without a
// converter.
var ErrNoConverter = errors.New("cache conversion requested but no converter configured")

// BuildService turns material texture sets into materials in a library.
type BuildService struct {
	tax      *taxonomy.Taxonomy
	sink     sink.Sink
	pipeline *ConversionPipeline
	events   events.Sink
	metrics  *metrics.Collector
}

// NewBuildService creates a build service. conv may be nil when cache
// conversion is never requested; ev and m may be nil.
func NewBuildService(tax *taxonomy.Taxonomy, s sink.Sink, conv Converter, ev events.Sink, m *metrics.Collector) *BuildService {
	if ev == nil {
		ev = events.NewLogSink(nil)
	}
	b := &BuildService{tax: tax, sink: s, events: ev, metrics: m}
	if conv != nil {
		b.pipeline = NewConversionPipeline(conv, ev, m)
	}
	return b
}

// BuildOptions configures a build.
type BuildOptions struct {
	// Materials to build; empty builds every set
	Materials []string
	// Library is the parent path materials are created under
	Library string
	// ConvertToCache converts sources to the texture cache first and points
	// image nodes at the cache files
	ConvertToCache bool
	// CacheExt defaults to ".tx"
	CacheExt string
	// JobRoot prefix is replaced by JobToken in file paths
	JobRoot  string
	JobToken string
	// Workers caps concurrent conversions; 0 derives it from the CPU count
	Workers int
	// Reserve is the CPU share left idle when Workers is 0
	Reserve float64
	// DryRun synthesizes graphs without writing to the sink
	DryRun bool
	// Converted is a batch the caller already ran for these materials; it
	// replaces the conversion step
	Converted *ConversionReport
}

// BuildResult summarizes a build.
type BuildResult struct {
	Selected   []string
	Created    []string
	Failed     int
	Graphs     map[string]*graph.MaterialGraph
	Conversion *ConversionReport
	Errors     []string
}

// Build converts (optionally) and materializes the selected sets. A failing
// material is recorded and the rest continue.
func (b *BuildService) Build(ctx context.Context, sets map[string]*models.MaterialTextureSet, opts BuildOptions) (*BuildResult, error) {
	if opts.ConvertToCache && opts.Converted == nil && b.pipeline == nil {
		return nil, ErrNoConverter
	}
	if opts.CacheExt == "" {
		opts.CacheExt = DefaultCacheExt
	}

	result := &BuildResult{Graphs: make(map[string]*graph.MaterialGraph)}

	names := opts.Materials
	if len(names) == 0 {
		names = SortedNames(sets)
	} else {
		names = slices.Clone(names)
		slices.Sort(names)
		names = slices.Compact(names)
	}
	for _, name := range names {
		if _, ok := sets[name]; !ok {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: unknown material", name))
			continue
		}
		result.Selected = append(result.Selected, name)
	}

	if opts.ConvertToCache && len(result.Selected) > 0 {
		result.Conversion = opts.Converted
		if result.Conversion == nil {
			workers := opts.Workers
			if workers <= 0 {
				workers = ComputeConcurrency(runtime.NumCPU(), opts.Reserve)
			}
			tasks := TasksForSets(sets, result.Selected, opts.CacheExt)
			result.Conversion = b.pipeline.Convert(ctx, tasks, workers)
		}
		for _, src := range result.Conversion.FailedSources() {
			// Image nodes keep pointing at the expected cache file.
			slog.Warn("conversion failed, material will reference a missing cache file",
				"source", src, "dest", CachePath(src, opts.CacheExt))
		}
	}

	engine := graph.NewEngine(b.tax, graph.Options{
		ConvertToCache: opts.ConvertToCache,
		CacheExt:       opts.CacheExt,
		JobRoot:        opts.JobRoot,
		JobToken:       opts.JobToken,
	})

	for _, name := range result.Selected {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			result.Failed++
			continue
		}
		if err := b.buildOne(ctx, engine, sets[name], opts, result); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			b.events.Material(events.MaterialEvent{
				Material: name, Stage: events.StageFailed, Err: err, Time: time.Now(),
			})
		}
	}

	slog.Info("build finished",
		"selected", len(result.Selected), "created", len(result.Created), "failed", result.Failed)
	return result, nil
}

func (b *BuildService) buildOne(ctx context.Context, engine *graph.Engine, set *models.MaterialTextureSet, opts BuildOptions, result *BuildResult) error {
	start := time.Now()
	g, err := engine.Synthesize(set)
	if err != nil {
		b.recordFailure(metrics.OpSynthesize, start)
		return err
	}
	b.record(metrics.OpSynthesize, start)
	result.Graphs[set.Name] = g
	b.events.Material(events.MaterialEvent{
		Material: set.Name, Stage: events.StageSynthesized, Nodes: len(g.Nodes), Time: time.Now(),
	})

	if opts.DryRun || b.sink == nil {
		return nil
	}

	start = time.Now()
	if _, err := sink.Materialize(ctx, b.sink, opts.Library, g); err != nil {
		b.recordFailure(metrics.OpMaterialize, start)
		return err
	}
	b.record(metrics.OpMaterialize, start)
	result.Created = append(result.Created, g.Name)
	b.events.Material(events.MaterialEvent{
		Material: set.Name, Stage: events.StageMaterialized, Nodes: len(g.Nodes), Time: time.Now(),
	})
	return nil
}

func (b *BuildService) record(op string, start time.Time) {
	if b.metrics != nil {
		b.metrics.RecordTiming(op, time.Since(start))
	}
}

func (b *BuildService) recordFailure(op string, start time.Time) {
	if b.metrics != nil {
		b.metrics.RecordFailure(op, time.Since(start))
	}
}
