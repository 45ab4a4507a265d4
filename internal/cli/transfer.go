package cli

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/sheets/pkg/types"
	"github.com/spf13/cobra"
)

// transferResult is the --json output of export and import.
type transferResult struct {
	Table string `json:"table"`
	File  string `json:"file"`
	Rows  int    `json:"rows"`
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <table> <file>",
		Short: "Write a table's rows to a JSONL file",
		Long: "Export writes one JSON object per row, keyed by column display name.\n" +
			"The file is replaced atomically.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var n int
			err := withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
				var err error
				n, err = store.ExportRows(ctx, args[0], args[1])
				return err
			})
			if err != nil {
				return err
			}
			return printTransfer(cmd, "exported", transferResult{Table: args[0], File: args[1], Rows: n})
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <table> <file>",
		Short: "Insert the rows of a JSONL file",
		Long: "Import inserts each JSON object of the file as a new row; id keys are\n" +
			"ignored. Lines that are not JSON objects are skipped. Import stops at the\n" +
			"first row the table rejects.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var n int
			err := withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
				var err error
				n, err = store.ImportRows(ctx, args[0], args[1])
				return err
			})
			if err != nil {
				return err
			}
			return printTransfer(cmd, "imported", transferResult{Table: args[0], File: args[1], Rows: n})
		},
	}
}

func printTransfer(cmd *cobra.Command, verb string, res transferResult) error {
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d rows (%s, %s)\n", verb, res.Rows, res.Table, res.File)
	return nil
}
