package cli

import (
	"fmt"
	"os"

	"github.com/ohler55/ojg/oj"
	"github.com/raphaelgruber/texmtlx/internal/export"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <file.json> <jsonpath>",
	Short: "Evaluate a JSONPath expression over exported materials",
	Long: `Run a JSONPath expression against a materials.json written by
'texmtlx export --format json' and print each match on its own line.

Examples:
  texmtlx query materials.json '$[*].name'
  texmtlx query materials.json "$[*].nodes[?(@.kind == 'image')].params.file"
  texmtlx query materials.json "$[?(@.name == 'tires')].edges[*]"`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	doc, err := export.ReadJSON(f)
	if err != nil {
		return err
	}
	matches, err := export.Query(doc, args[1])
	if err != nil {
		return err
	}
	for _, m := range matches {
		if s, ok := m.(string); ok {
			fmt.Println(s)
			continue
		}
		fmt.Println(oj.JSON(m))
	}
	return nil
}
