package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mesh-intelligence/sheets/pkg/types"
	"github.com/spf13/cobra"
)

func newRowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "row",
		Short: "List, read, insert, update and delete rows",
	}

	var insertData, updateData string
	insert := &cobra.Command{
		Use:   "insert <table> [column=value...]",
		Short: "Insert a row",
		Long: "Insert a row. Values that parse as JSON scalars are stored as their\n" +
			"text form; null leaves the cell empty. --data takes a JSON object and\n" +
			"column=value arguments override its keys.",
		Example: `  sheets row insert orders "ship date=2024-05-01" total=12.50
  sheets row insert orders --data '{"total": "3"}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRowInsert(cmd, args, insertData)
		},
	}
	insert.Flags().StringVar(&insertData, "data", "", "row fields as a JSON object")

	update := &cobra.Command{
		Use:   "update <table> <id> [column=value...]",
		Short: "Update columns of a row",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRowUpdate(cmd, args, updateData)
		},
	}
	update.Flags().StringVar(&updateData, "data", "", "row fields as a JSON object")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list <table>",
			Short: "List a table's rows in id order",
			Args:  cobra.ExactArgs(1),
			RunE:  runRowList,
		},
		&cobra.Command{
			Use:   "get <table> <id>",
			Short: "Get one row",
			Args:  cobra.ExactArgs(2),
			RunE:  runRowGet,
		},
		insert,
		update,
		&cobra.Command{
			Use:   "delete <table> <id>",
			Short: "Delete a row",
			Args:  cobra.ExactArgs(2),
			RunE:  runRowDelete,
		},
	)
	return cmd
}

func runRowList(cmd *cobra.Command, args []string) error {
	var (
		cols []types.Column
		rows []types.Row
	)
	err := withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
		var err error
		if cols, err = store.ListColumns(ctx, args[0]); err != nil {
			return err
		}
		rows, err = store.ListRows(ctx, args[0])
		return err
	})
	if err != nil {
		return err
	}

	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), rows)
	}
	return printRows(cmd.OutOrStdout(), cols, rows)
}

func runRowGet(cmd *cobra.Command, args []string) error {
	id, err := parseRowID(args[1])
	if err != nil {
		return err
	}
	var row types.Row
	err = withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
		var err error
		row, err = store.GetRow(ctx, args[0], id)
		return err
	})
	if err != nil {
		return err
	}
	return printRow(cmd.OutOrStdout(), row)
}

func runRowInsert(cmd *cobra.Command, args []string, data string) error {
	fields, err := parseFields(data, args[1:])
	if err != nil {
		return err
	}
	var row types.Row
	err = withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
		var err error
		row, err = store.InsertRow(ctx, args[0], fields)
		return err
	})
	if err != nil {
		return err
	}
	return printRow(cmd.OutOrStdout(), row)
}

func runRowUpdate(cmd *cobra.Command, args []string, data string) error {
	id, err := parseRowID(args[1])
	if err != nil {
		return err
	}
	fields, err := parseFields(data, args[2:])
	if err != nil {
		return err
	}
	var row types.Row
	err = withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
		var err error
		row, err = store.UpdateRow(ctx, args[0], id, fields)
		return err
	})
	if err != nil {
		return err
	}
	return printRow(cmd.OutOrStdout(), row)
}

func runRowDelete(cmd *cobra.Command, args []string) error {
	id, err := parseRowID(args[1])
	if err != nil {
		return err
	}
	err = withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
		return store.DeleteRow(ctx, args[0], id)
	})
	if err != nil {
		return err
	}
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), map[string]int64{"deletedId": id})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted row %d from %s\n", id, args[0])
	return nil
}

// printRows writes rows as a table with one column per tracked column.
func printRows(w io.Writer, cols []types.Column, rows []types.Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{strings.ToUpper(types.IDColumn)}
	for _, c := range cols {
		header = append(header, c.Name)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, row := range rows {
		cells := []string{fmt.Sprint(row.ID())}
		for _, c := range cols {
			cells = append(cells, cellText(row[c.Name]))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// printRow writes a single row, one column per line in text mode.
func printRow(w io.Writer, row types.Row) error {
	if flags.jsonMode {
		return printJSON(w, row)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%d\n", types.IDColumn, row.ID())
	for _, key := range rowKeys(row) {
		fmt.Fprintf(tw, "%s\t%s\n", key, cellText(row[key]))
	}
	return tw.Flush()
}
