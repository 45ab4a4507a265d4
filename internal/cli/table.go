package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/mesh-intelligence/sheets/pkg/types"
	"github.com/spf13/cobra"
)

func newTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "List, create, rename and drop tables",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List tables",
			Args:  cobra.NoArgs,
			RunE:  runTableList,
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a table",
			Long: "Create an empty table with only the id column. Names start with a\n" +
				"letter or underscore and may contain letters, digits, underscores and\n" +
				"spaces; spaces are stored as underscores.",
			Example: `  sheets table create orders
  sheets table create "ship dates"`,
			Args: cobra.ExactArgs(1),
			RunE: runTableCreate,
		},
		&cobra.Command{
			Use:   "drop <name>",
			Short: "Drop a table and its column metadata",
			Args:  cobra.ExactArgs(1),
			RunE:  runTableDrop,
		},
		&cobra.Command{
			Use:   "rename <old> <new>",
			Short: "Rename a table",
			Args:  cobra.ExactArgs(2),
			RunE:  runTableRename,
		},
	)
	return cmd
}

func runTableList(cmd *cobra.Command, args []string) error {
	var tables []types.TableInfo
	err := withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
		var err error
		tables, err = store.ListTables(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), tables)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDISPLAY\tCREATED")
	for _, t := range tables {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.Display, t.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runTableCreate(cmd *cobra.Command, args []string) error {
	var info types.TableInfo
	err := withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
		var err error
		info, err = store.CreateTable(ctx, args[0])
		return err
	})
	if err != nil {
		return err
	}
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), info)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created table %s\n", info.Name)
	return nil
}

func runTableDrop(cmd *cobra.Command, args []string) error {
	err := withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
		return store.DropTable(ctx, args[0])
	})
	if err != nil {
		return err
	}
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dropped table %s\n", args[0])
	return nil
}

func runTableRename(cmd *cobra.Command, args []string) error {
	var info types.TableInfo
	err := withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
		var err error
		info, err = store.RenameTable(ctx, args[0], args[1])
		return err
	})
	if err != nil {
		return err
	}
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), info)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "renamed table %s to %s\n", args[0], info.Name)
	return nil
}
