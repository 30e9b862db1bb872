package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/raphaelgruber/texmtlx/internal/taxonomy"
	"github.com/spf13/cobra"
)

var rolesYAML bool

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Show the texture role table",
	Long: `Print the roles in priority order with the name fragments that select
them and the shader input they drive. The first role with a matching
fragment wins.

--yaml prints the table in the format accepted by --taxonomy, as a
starting point for a studio override.

Examples:
  texmtlx roles
  texmtlx roles --yaml > taxonomy.yaml
  texmtlx roles --taxonomy taxonomy.yaml`,
	Args: cobra.NoArgs,
	RunE: runRoles,
}

func init() {
	rolesCmd.Flags().BoolVar(&rolesYAML, "yaml", false, "print the table as a taxonomy override file")
}

func runRoles(cmd *cobra.Command, args []string) error {
	if rolesYAML {
		data, err := tax.Marshal()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	fmt.Printf("%-4s %-13s %-20s %-7s %s\n", "#", "ROLE", "SHADER INPUT", "SPACE", "FRAGMENTS")
	for i, rs := range tax.Roles() {
		input := rs.ShaderInput
		if input == "" {
			input = auxiliary(rs.Role)
		}
		fmt.Printf("%-4d %-13s %-20s %-7s %s\n", i+1, rs.Role, input, rs.ColorSpace, strings.Join(rs.Fragments, ", "))
	}
	fmt.Printf("\nExtensions: %s (fragments under %d letters match whole words only)\n",
		strings.Join(tax.Extensions(), " "), tax.MinSubstringLen())
	return nil
}

// auxiliary names the node a role without a shader input feeds.
func auxiliary(r taxonomy.Role) string {
	switch r {
	case taxonomy.RoleBump:
		return "(bump.height)"
	case taxonomy.RoleNormal:
		return "(normalmap.in)"
	case taxonomy.RoleDisplacement:
		return "(displacement)"
	case taxonomy.RoleAmbientOcclusion:
		return "(multiply.in1)"
	case taxonomy.RoleExtra:
		return "(separate3c.in)"
	default:
		return "-"
	}
}
