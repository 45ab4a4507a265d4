package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/sheets/internal/paths"
	sqlitestore "github.com/mesh-intelligence/sheets/pkg/sqlite"
	"github.com/mesh-intelligence/sheets/pkg/types"
)

// resolveDataDir follows the precedence --data-dir flag > config.yaml
// data_dir > SHEETS_DATA_DIR env > $(CWD)/.sheets-db.
func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flags.dataDir, cfg.GetString(cfgKeyDataDir))
}

// attachStore resolves the data directory, creates a store for the
// configured backend and attaches it. The caller must Detach it.
func attachStore() (types.Store, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve data dir: %w", err))
	}

	config := types.Config{
		Backend: cfg.GetString(cfgKeyBackend),
		DataDir: dataDir,
	}
	if err := config.Validate(); err != nil {
		return nil, userError(fmt.Errorf("backend %q: %w", config.Backend, err))
	}

	store := sqlitestore.NewStore()
	if err := store.Attach(config); err != nil {
		return nil, sysError(fmt.Errorf("attach store: %w", err))
	}
	return store, nil
}

// withStore runs fn against an attached store and classifies its error.
func withStore(ctx context.Context, fn func(ctx context.Context, store types.Store) error) error {
	store, err := attachStore()
	if err != nil {
		return err
	}
	defer store.Detach()

	return storeError(fn(ctx, store))
}

// storeError assigns an exit code to a store error: rejected input is a
// user error, engine and rebuild failures are system errors.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	switch types.Kind(err) {
	case types.KindInvalid, types.KindNotFound, types.KindConflict:
		return userError(err)
	default:
		return sysError(err)
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printError reports err on w, as a JSON object in --json mode.
func printError(w io.Writer, err error) {
	if !flags.jsonMode {
		fmt.Fprintln(w, "sheets:", err)
		return
	}
	body := map[string]any{"error": err.Error(), "kind": types.Kind(err).String()}
	var rebuildErr *types.RebuildError
	if errors.As(err, &rebuildErr) {
		body["manual_intervention"] = rebuildErr.ManualRepair
	}
	printJSON(w, body)
}

// parseRowID parses a positive row id argument.
func parseRowID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, userError(fmt.Errorf("row id %q is not a positive integer", raw))
	}
	return id, nil
}

// parseFields builds a row payload from an optional JSON object followed
// by key=value arguments. A value that parses as a JSON scalar is used as
// that scalar (null clears the cell); anything else is taken as raw text.
func parseFields(data string, pairs []string) (map[string]any, error) {
	fields := make(map[string]any)
	if data != "" {
		dec := json.NewDecoder(strings.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, userError(fmt.Errorf("--data: %w", err))
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, userError(fmt.Errorf("invalid field %q (expected key=value)", pair))
		}
		fields[key] = parseValue(value)
	}
	return fields, nil
}

func parseValue(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	switch v.(type) {
	case map[string]any, []any:
		return raw
	}
	return v
}

// cellText renders a cell for text output.
func cellText(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// rowKeys returns the column keys of row in sorted order, without id.
func rowKeys(row types.Row) []string {
	keys := slices.Sorted(maps.Keys(row))
	return slices.DeleteFunc(keys, func(k string) bool { return k == types.IDColumn })
}
