// Package cli implements the sheets command-line interface: the HTTP
// server, store initialization, schema and row commands, JSONL transfer and
// the bookkeeping doctor.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mesh-intelligence/sheets/internal/logging"
	"github.com/mesh-intelligence/sheets/internal/paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

var flags rootFlags

// cfg is the configuration loaded by the root PersistentPreRunE.
var cfg *viper.Viper

// NewRootCmd creates the top-level "sheets" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sheets",
		Short: "Spreadsheet-like tables over an embedded SQLite store",
		Long: "sheets creates, renames and drops tables and columns at runtime and\n" +
			"edits their rows, from the command line or over HTTP (sheets serve).",
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadRootConfig,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir, or $SHEETS_CONFIG_DIR)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/.sheets-db)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newTableCmd())
	root.AddCommand(newColumnCmd())
	root.AddCommand(newRowCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newImportCmd())

	return root
}

// loadRootConfig resolves the config directory, loads config.yaml and sets
// up logging. serve logs at info by default, every other command at warn.
func loadRootConfig(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}

	v, err := loadConfig(configDir)
	if err != nil {
		return sysError(err)
	}
	cfg = v

	level := v.GetString(cfgKeyLogLevel)
	if level == "" {
		level = "warn"
		if cmd.Name() == "serve" {
			level = "info"
		}
	}
	if err := logging.Init(level, v.GetString(cfgKeyLogFormat)); err != nil {
		return userError(err)
	}
	return nil
}

// Execute runs the root command against the process arguments and returns
// the exit code.
func Execute() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	printError(stderr, err)
	return exitCode(err)
}

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error {
	return &exitError{code: exitUserError, err: err}
}

func sysError(err error) error {
	return &exitError{code: exitSysError, err: err}
}

// exitCode returns the code carried by err. Errors raised by cobra itself
// (unknown command, wrong argument count) are user errors.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}
