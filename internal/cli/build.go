package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/texmtlx/internal/events"
	"github.com/raphaelgruber/texmtlx/internal/service"
	"github.com/spf13/cobra"
)

var (
	buildRecursive bool
	buildMaterials []string
	buildTx        bool
	buildWorkers   int
	buildTool      string
	buildDryRun    bool
)

var buildCmd = &cobra.Command{
	Use:   "build <dir>...",
	Short: "Build MaterialX materials in the material library",
	Long: `Scan the given folders and create one MaterialX material per texture
set under the material library. An existing material of the same name is
replaced.

With --tx every selected texture is first converted to the .tx cache and
image nodes read the cache files. A failed conversion is reported but the
material still points at the expected .tx path.

Examples:
  texmtlx build ./tex
  texmtlx build ./tex --materials tires,rims
  texmtlx build ./tex --tx --workers 6
  texmtlx build ./tex --sink sqlite --library /stage/materiallibrary
  texmtlx build ./tex --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVarP(&buildRecursive, "recursive", "r", false, "include subfolders")
	buildCmd.Flags().StringSliceVarP(&buildMaterials, "materials", "m", nil, "build only these materials")
	buildCmd.Flags().BoolVar(&buildTx, "tx", false, "convert textures to the .tx cache first")
	buildCmd.Flags().IntVarP(&buildWorkers, "workers", "w", 0, "max parallel conversions (default from CPU count)")
	buildCmd.Flags().StringVar(&buildTool, "converter", "", "path to the converter executable")
	buildCmd.Flags().BoolVar(&buildDryRun, "dry-run", false, "synthesize without writing to the library")
}

func runBuild(cmd *cobra.Command, args []string) error {
	var conv service.Converter
	if buildTx {
		c, err := newConverter(buildTool)
		if err != nil {
			return err
		}
		conv = c
	}

	scan, err := scanArgs(args, buildRecursive)
	if err != nil {
		return err
	}
	if len(scan.Sets) == 0 {
		fmt.Println("No materials found.")
		return nil
	}

	ctx, stop := signalContext()
	defer stop()

	s, err := openSink(ctx)
	if err != nil {
		return err
	}

	opts := service.BuildOptions{
		Materials:      buildMaterials,
		Library:        cfg.Library,
		ConvertToCache: buildTx,
		CacheExt:       cfg.CacheExt,
		JobRoot:        cfg.JobRoot,
		Workers:        buildWorkers,
		Reserve:        cfg.Reserve,
		DryRun:         buildDryRun,
	}

	if buildTx {
		tasks := service.TasksForSets(scan.Sets, buildMaterials, cfg.CacheExt)
		limit := workerLimit(buildWorkers)
		fmt.Printf("Converting %d files with %d workers\n", len(tasks), limit)
		opts.Converted, err = runConversion(ctx, len(tasks), nil,
			func(ctx context.Context, sink events.Sink) *service.ConversionReport {
				return service.NewConversionPipeline(conv, sink, collector).Convert(ctx, tasks, limit)
			})
		if err != nil {
			return err
		}
	}

	svc := service.NewBuildService(tax, s, conv, nil, collector)
	result, err := svc.Build(ctx, scan.Sets, opts)
	if err != nil {
		return err
	}

	printBuildResult(result)
	printTimings()
	if result.Failed > 0 {
		return fmt.Errorf("%d materials failed", result.Failed)
	}
	return nil
}

func printBuildResult(r *service.BuildResult) {
	theme := defaultTheme
	if buildDryRun {
		fmt.Println(theme.hintStyle().Render(fmt.Sprintf("Dry run: synthesized %d materials", len(r.Graphs))))
		for _, name := range r.Selected {
			if g, ok := r.Graphs[name]; ok {
				fmt.Printf("  %-24s %d nodes, %d connections\n", g.Name, len(g.Nodes), len(g.Edges))
			}
		}
	} else {
		fmt.Println(theme.completedStyle().Render(fmt.Sprintf("✓ Created %d materials in %s", len(r.Created), cfg.Library)))
		for _, name := range r.Created {
			fmt.Printf("  %s\n", name)
		}
	}
	if len(r.Errors) > 0 {
		fmt.Println(theme.errorStyle().Render(fmt.Sprintf("\nFailures (%d):", len(r.Errors))))
		for _, e := range r.Errors {
			fmt.Printf("  • %s\n", e)
		}
	}
}
