package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/raphaelgruber/texmtlx/internal/converter"
	"github.com/raphaelgruber/texmtlx/internal/events"
	"github.com/raphaelgruber/texmtlx/internal/metrics"
	"github.com/raphaelgruber/texmtlx/internal/service"
	"github.com/spf13/cobra"
)

var (
	convertRecursive bool
	convertWorkers   int
	convertTool      string
)

var convertCmd = &cobra.Command{
	Use:   "convert <dir>...",
	Short: "Convert texture files to the .tx cache",
	Long: `Convert every texture file in the given folders to the texture cache,
writing <name>.tx next to each source. Existing .tx files are skipped as
sources. Conversions run in parallel, leaving a share of the CPUs idle
($TEXMTLX_RESERVE, default 0.15).

The converter defaults to imaketx from $HB, or $TEXMTLX_CONVERTER.

Examples:
  texmtlx convert ./tex
  texmtlx convert ./tex --recursive --workers 4
  texmtlx convert ./tex --converter /opt/hfs/bin/imaketx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().BoolVarP(&convertRecursive, "recursive", "r", false, "include subfolders")
	convertCmd.Flags().IntVarP(&convertWorkers, "workers", "w", 0, "max parallel conversions (default from CPU count)")
	convertCmd.Flags().StringVar(&convertTool, "converter", "", "path to the converter executable")
}

// newConverter resolves the converter executable from the flag, the
// environment, or the host install.
func newConverter(flagPath string) (*converter.Exec, error) {
	path := flagPath
	if path == "" {
		path = cfg.ConverterPath
	}
	if path == "" {
		path = converter.DefaultPath()
	}
	return converter.New(path)
}

// workerLimit returns the requested worker count or the CPU-derived default.
func workerLimit(requested int) int {
	if requested > 0 {
		return requested
	}
	return service.ComputeConcurrency(runtime.NumCPU(), cfg.Reserve)
}

// signalContext cancels on interrupt so running conversions are killed.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runConvert(cmd *cobra.Command, args []string) error {
	conv, err := newConverter(convertTool)
	if err != nil {
		return err
	}

	dirs, err := absDirs(args)
	if err != nil {
		return err
	}
	scanner := newScanner()
	seen := make(map[string]bool)
	var sources []string
	for _, dir := range dirs {
		files, err := scanner.CollectFiles(dir, convertRecursive)
		if err != nil {
			return err
		}
		for _, f := range files {
			if !seen[f] {
				seen[f] = true
				sources = append(sources, f)
			}
		}
	}
	if len(sources) == 0 {
		fmt.Println("No texture files found.")
		return nil
	}

	ctx, stop := signalContext()
	defer stop()

	tasks := service.NewConversionTasks(sources, cfg.CacheExt)
	limit := workerLimit(convertWorkers)
	fmt.Printf("Converting %d files with %d workers using %s\n", len(tasks), limit, conv.Path())

	report, err := runConversion(ctx, len(tasks), nil,
		func(ctx context.Context, sink events.Sink) *service.ConversionReport {
			return service.NewConversionPipeline(conv, sink, collector).Convert(ctx, tasks, limit)
		})
	if err != nil {
		return err
	}
	printTimings()
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", report.Failed, report.Total())
	}
	return nil
}

// printTimings prints per-operation timings in verbose mode.
func printTimings() {
	if !verbose {
		return
	}
	snap := collector.Snapshot()
	rows := []struct {
		name string
		op   *metrics.OperationSnapshot
	}{
		{metrics.OpScan, snap.Scan},
		{metrics.OpConvert, snap.Convert},
		{metrics.OpSynthesize, snap.Synthesize},
		{metrics.OpMaterialize, snap.Materialize},
	}
	fmt.Println("\nTimings:")
	for _, r := range rows {
		if r.op == nil {
			continue
		}
		fmt.Printf("  %-12s n=%d failed=%d avg=%.1fms max=%dms\n",
			r.name, r.op.Count, r.op.Failures, r.op.AvgTimeMs, r.op.MaxTimeMs)
	}
}
