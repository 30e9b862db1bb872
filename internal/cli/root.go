// Package cli provides the command-line interface for texmtlx.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/raphaelgruber/texmtlx/internal/config"
	"github.com/raphaelgruber/texmtlx/internal/db"
	"github.com/raphaelgruber/texmtlx/internal/metrics"
	"github.com/raphaelgruber/texmtlx/internal/service"
	"github.com/raphaelgruber/texmtlx/internal/sink"
	"github.com/raphaelgruber/texmtlx/internal/taxonomy"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose      bool
	jobRootFlag  string
	taxonomyFlag string
	libraryFlag  string
	sinkFlag     string

	// Global state set up by PersistentPreRunE
	cfg           config.Config
	tax           *taxonomy.Taxonomy
	collector     *metrics.Collector
	logCleanup    func() error
	sinkCleanup   func()
	standaloneCmd = map[string]bool{"help": true, "version": true, "completion": true, "query": true}
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "texmtlx",
	Short: "Texture classification and MaterialX material builder",
	Long: `Texmtlx scans texture folders, groups image files into materials by
their file names, optionally converts them to the .tx texture cache,
and builds a MaterialX standard_surface network per material.

Materials are written to a material library (in memory, a SQLite file,
or SurrealDB) or exported as MaterialX / JSON documents.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if standaloneCmd[cmd.Name()] {
			return nil
		}

		cfg = config.Load()
		if jobRootFlag != "" {
			cfg.JobRoot = jobRootFlag
		}
		if taxonomyFlag != "" {
			cfg.TaxonomyFile = taxonomyFlag
		}
		if libraryFlag != "" {
			cfg.Library = libraryFlag
		}
		if sinkFlag != "" {
			cfg.Sink = sinkFlag
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}

		logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		logCleanup = cleanup

		var err error
		tax, err = taxonomy.LoadFile(cfg.TaxonomyFile)
		if err != nil {
			return err
		}
		collector = metrics.NewCollector()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if sinkCleanup != nil {
			sinkCleanup()
		}
		if logCleanup != nil {
			if err := logCleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&jobRootFlag, "job-root", "", "path prefix replaced by $JOB in file paths (default $TEXMTLX_JOB_ROOT or $JOB)")
	rootCmd.PersistentFlags().StringVar(&taxonomyFlag, "taxonomy", "", "YAML file overriding the role table")
	rootCmd.PersistentFlags().StringVar(&libraryFlag, "library", "", "material library path (default $TEXMTLX_LIBRARY)")
	rootCmd.PersistentFlags().StringVar(&sinkFlag, "sink", "", "material library backend: memory, sqlite or surreal")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(rolesCmd)
}

// newScanner returns a scanner over the host file system.
func newScanner() *service.Scanner {
	return service.NewScanner(osfs.New("/"), tax)
}

// openSink connects the configured material library backend and registers
// the library root. The cleanup runs after the command.
func openSink(ctx context.Context) (sink.Sink, error) {
	switch cfg.Sink {
	case config.SinkSQLite:
		s, err := sink.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		sinkCleanup = func() { _ = s.Close() }
		if err := s.AddLibrary(ctx, cfg.Library); err != nil {
			return nil, err
		}
		return s, nil

	case config.SinkSurreal:
		lib, err := db.OpenLibrary(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, cfg.Library, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("open surreal library: %w", err)
		}
		sinkCleanup = func() {
			if err := lib.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		return lib, nil

	default:
		return sink.NewMemory(cfg.Library), nil
	}
}
