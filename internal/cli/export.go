package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/raphaelgruber/texmtlx/internal/export"
	"github.com/raphaelgruber/texmtlx/internal/graph"
	"github.com/raphaelgruber/texmtlx/internal/service"
	"github.com/spf13/cobra"
)

var (
	exportRecursive bool
	exportMaterials []string
	exportFormat    string
	exportOut       string
	exportTx        bool
)

var exportCmd = &cobra.Command{
	Use:   "export <dir>...",
	Short: "Export material networks as MaterialX or JSON files",
	Long: `Scan the given folders and write the synthesized material networks to
files instead of a material library.

The mtlx format writes one <material>.mtlx document per material. The json
format writes a single materials.json holding every network, which can be
inspected with 'texmtlx query'. Use --out - to print to stdout.

Examples:
  texmtlx export ./tex --out ./mtlx
  texmtlx export ./tex --format json --out ./export
  texmtlx export ./tex --materials tires --out -
  texmtlx export ./tex --tx --out ./mtlx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVarP(&exportRecursive, "recursive", "r", false, "include subfolders")
	exportCmd.Flags().StringSliceVarP(&exportMaterials, "materials", "m", nil, "export only these materials")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "mtlx", "output format: mtlx or json")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", "output directory, or - for stdout")
	exportCmd.Flags().BoolVar(&exportTx, "tx", false, "reference .tx cache files instead of the sources")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "mtlx" && exportFormat != "json" {
		return fmt.Errorf("unknown format %q (want mtlx or json)", exportFormat)
	}

	scan, err := scanArgs(args, exportRecursive)
	if err != nil {
		return err
	}

	engine := graph.NewEngine(tax, graph.Options{
		ConvertToCache: exportTx,
		CacheExt:       cfg.CacheExt,
		JobRoot:        cfg.JobRoot,
	})

	names := exportMaterials
	if len(names) == 0 {
		names = service.SortedNames(scan.Sets)
	}
	var graphs []*graph.MaterialGraph
	for _, name := range names {
		set, ok := scan.Sets[name]
		if !ok {
			return fmt.Errorf("unknown material %q", name)
		}
		g, err := engine.Synthesize(set)
		if err != nil {
			return err
		}
		graphs = append(graphs, g)
	}
	if len(graphs) == 0 {
		fmt.Fprintln(os.Stderr, "No materials found.")
		return nil
	}

	if exportOut == "-" {
		return writeGraphs(os.Stdout, graphs)
	}
	if err := os.MkdirAll(exportOut, 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	if exportFormat == "json" {
		path := filepath.Join(exportOut, "materials.json")
		if err := writeFile(path, func(w io.Writer) error { return export.WriteJSON(w, graphs...) }); err != nil {
			return err
		}
		fmt.Printf("Exported %d materials to %s\n", len(graphs), path)
		return nil
	}

	for _, g := range graphs {
		path := filepath.Join(exportOut, g.Name+".mtlx")
		if err := writeFile(path, func(w io.Writer) error { return export.WriteMaterialX(w, g) }); err != nil {
			return err
		}
		fmt.Println(path)
	}
	fmt.Printf("Exported %d materials to %s\n", len(graphs), exportOut)
	return nil
}

func writeGraphs(w io.Writer, graphs []*graph.MaterialGraph) error {
	if exportFormat == "json" {
		return export.WriteJSON(w, graphs...)
	}
	for g := range slices.Values(graphs) {
		if err := export.WriteMaterialX(w, g); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
