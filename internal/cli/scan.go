package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raphaelgruber/texmtlx/internal/metrics"
	"github.com/raphaelgruber/texmtlx/internal/service"
	"github.com/spf13/cobra"
)

var (
	scanRecursive bool
	scanJSON      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>...",
	Short: "Classify texture files and list the materials found",
	Long: `Scan one or more folders, classify every image file by its name and
group the files into materials.

A file name is read as <material>_<descriptor>[_<resolution>][_<udim>].<ext>.
The descriptor decides the texture role (color, roughness, normal, ...).

Examples:
  texmtlx scan ./tex
  texmtlx scan ./tex ./tex_udim --recursive
  texmtlx scan ./tex --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVarP(&scanRecursive, "recursive", "r", false, "include subfolders")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print the material sets as JSON")
}

// absDirs resolves command-line folders to absolute forward-slash paths.
func absDirs(args []string) ([]string, error) {
	dirs := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", a, err)
		}
		dirs = append(dirs, filepath.ToSlash(abs))
	}
	return dirs, nil
}

// scanArgs scans the folders named on the command line.
func scanArgs(args []string, recursive bool) (*service.ScanResult, error) {
	dirs, err := absDirs(args)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	result, err := newScanner().Scan(dirs, recursive)
	if err != nil {
		collector.RecordFailure(metrics.OpScan, time.Since(start))
		return nil, err
	}
	collector.RecordTiming(metrics.OpScan, time.Since(start))
	return result, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	result, err := scanArgs(args, scanRecursive)
	if err != nil {
		return err
	}

	names := service.SortedNames(result.Sets)

	if scanJSON {
		sets := make([]any, 0, len(names))
		for _, name := range names {
			sets = append(sets, result.Sets[name])
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sets)
	}

	if len(names) == 0 {
		fmt.Println("No materials found.")
		return nil
	}

	fmt.Printf("Found %d materials (%d of %d files classified):\n\n", len(names), result.Classified, result.FilesSeen)
	for _, name := range names {
		set := result.Sets[name]
		var tags []string
		if set.UDIM {
			tags = append(tags, "UDIM")
		}
		if set.Resolution != "" {
			tags = append(tags, set.Resolution)
		}
		header := set.Name
		if len(tags) > 0 {
			header += " [" + strings.Join(tags, ", ") + "]"
		}
		fmt.Println(header)
		for _, role := range set.Roles(tax) {
			for _, f := range set.Textures[role] {
				fmt.Printf("  %-13s %s\n", role, filepath.Base(f))
			}
		}
	}

	if verbose && len(result.Unclassified) > 0 {
		fmt.Printf("\nUnclassified (%d):\n", len(result.Unclassified))
		for _, f := range result.Unclassified {
			fmt.Printf("  %s\n", f)
		}
	}
	return nil
}
