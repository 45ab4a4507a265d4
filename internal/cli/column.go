package cli

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/sheets/pkg/types"
	"github.com/spf13/cobra"
)

func newColumnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "column",
		Short: "List, add, rename and drop columns",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list <table>",
			Short: "List a table's columns",
			Args:  cobra.ExactArgs(1),
			RunE:  runColumnList,
		},
		&cobra.Command{
			Use:     "add <table> <column>",
			Short:   "Add a nullable text column",
			Example: `  sheets column add orders "ship date"`,
			Args:    cobra.ExactArgs(2),
			RunE:    runColumnAdd,
		},
		&cobra.Command{
			Use:   "rename <table> <old> <new>",
			Short: "Rename a column",
			Args:  cobra.ExactArgs(3),
			RunE:  runColumnRename,
		},
		&cobra.Command{
			Use:   "drop <table> <column>",
			Short: "Drop a column by rebuilding the table",
			Long: "Drop rebuilds the table without the column and keeps every row and\n" +
				"id. If a rebuild step fails the change is rolled back; when even the\n" +
				"rollback fails the error says manual intervention is required.",
			Args: cobra.ExactArgs(2),
			RunE: runColumnDrop,
		},
	)
	return cmd
}

func runColumnList(cmd *cobra.Command, args []string) error {
	var cols []types.Column
	err := withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
		var err error
		cols, err = store.ListColumns(ctx, args[0])
		return err
	})
	if err != nil {
		return err
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), names)
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runColumnAdd(cmd *cobra.Command, args []string) error {
	var res types.AddColumnResult
	err := withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
		var err error
		res, err = store.AddColumn(ctx, args[0], args[1])
		return err
	})
	if err != nil {
		return err
	}
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added column %s to %s\n", res.Column.Name, res.Column.Table)
	if res.Warning != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", res.Warning)
	}
	return nil
}

func runColumnRename(cmd *cobra.Command, args []string) error {
	var col types.Column
	err := withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
		var err error
		col, err = store.RenameColumn(ctx, args[0], args[1], args[2])
		return err
	})
	if err != nil {
		return err
	}
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), col)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "renamed column %s to %s\n", args[1], col.Name)
	return nil
}

func runColumnDrop(cmd *cobra.Command, args []string) error {
	var col types.Column
	err := withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
		var err error
		col, err = store.DropColumn(ctx, args[0], args[1])
		return err
	})
	if err != nil {
		return err
	}
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), map[string]string{"deletedColumn": col.Name})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dropped column %s from %s\n", col.Name, col.Table)
	return nil
}
