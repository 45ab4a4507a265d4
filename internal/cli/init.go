package cli

import (
	"fmt"
	"path/filepath"

	"github.com/mesh-intelligence/sheets/internal/paths"
	sqlitestore "github.com/mesh-intelligence/sheets/pkg/sqlite"
	"github.com/spf13/cobra"
)

// initResult is the --json output of init.
type initResult struct {
	ConfigDir string `json:"config_dir"`
	DataDir   string `json:"data_dir"`
	Driver    string `json:"driver"`
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize sheets storage",
		Long: "Create the configuration and data directories and the database file.\n" +
			"An explicit --data-dir is recorded as data_dir in config.yaml.",
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	// The root command already created the config dir and config.yaml.
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}

	dataDir, err := resolveDataDir()
	if err != nil {
		return sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	if flags.dataDir != "" {
		if err := setConfigValue(filepath.Join(configDir, configFileExt), cfgKeyDataDir, dataDir); err != nil {
			return sysError(err)
		}
	}

	store, err := attachStore()
	if err != nil {
		return err
	}
	if err := store.Detach(); err != nil {
		return sysError(fmt.Errorf("finalize storage: %w", err))
	}

	res := initResult{ConfigDir: configDir, DataDir: dataDir, Driver: sqlitestore.DriverType()}
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), res)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "sheets initialized successfully")
	fmt.Fprintln(out, "  config:", res.ConfigDir)
	fmt.Fprintln(out, "  data:  ", res.DataDir)
	return nil
}
