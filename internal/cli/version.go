package cli

import (
	"fmt"

	sqlitestore "github.com/mesh-intelligence/sheets/pkg/sqlite"
	"github.com/spf13/cobra"
)

// Version is the release version. Builds override it with
// -ldflags "-X github.com/mesh-intelligence/sheets/internal/cli.Version=...".
var Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/sheets"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sheets version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version": Version,
					"module":  modulePath,
					"driver":  sqlitestore.DriverType(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sheets v%s\nmodule: %s\nsqlite: %s\n", Version, modulePath, sqlitestore.DriverType())
			return nil
		},
	}
}
