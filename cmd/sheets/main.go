// Command sheets serves and edits spreadsheet-like tables stored in an
// embedded SQLite database.
package main

import (
	"os"

	"github.com/mesh-intelligence/sheets/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
