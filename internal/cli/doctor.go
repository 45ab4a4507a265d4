package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/mesh-intelligence/sheets/pkg/types"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Compare bookkeeping with the database catalog",
		Long: "doctor lists registry entries without tables, tables without registry\n" +
			"entries, tracked columns that do not exist and columns nobody tracks.\n" +
			"It exits 1 when any drift is found.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var drift []types.Drift
			err := withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
				var err error
				drift, err = store.Check(ctx)
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.jsonMode {
				if err := printJSON(out, drift); err != nil {
					return sysError(err)
				}
			} else if len(drift) == 0 {
				fmt.Fprintln(out, "no drift found")
			} else {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "KIND\tTABLE\tCOLUMN")
				for _, d := range drift {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Kind, d.Table, d.Column)
				}
				tw.Flush()
			}

			if len(drift) > 0 {
				return userError(fmt.Errorf("%d drift entries found", len(drift)))
			}
			return nil
		},
	}
}
