package types

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// identPattern is the grammar shared by table and column names: a letter
// (any script) or underscore, then letters, digits, spaces or underscores.
var identPattern = regexp.MustCompile(`^[\p{L}_][\p{L}\p{Nd}_ ]*$`)

// whitespaceRun matches the runs collapsed into one underscore in the
// storage form.
var whitespaceRun = regexp.MustCompile(`\s+`)

// IDColumn is the surrogate key every user table carries. It is never
// tracked in metadata and never offered for rename or drop.
const IDColumn = "id"

// Name is an accepted identifier in both of its forms.
type Name struct {
	Display string // trimmed input, spaces preserved
	Storage string // identifier used in DDL, whitespace runs replaced by "_"
}

// ValidateName checks candidate against the identifier grammar. Surrounding
// whitespace is trimmed first. The error wraps ErrEmptyName or
// ErrInvalidName and carries a reason readable by end users.
func ValidateName(candidate string) (Name, error) {
	display := strings.TrimSpace(candidate)
	if display == "" {
		return Name{}, ErrEmptyName
	}
	if !identPattern.MatchString(display) {
		return Name{}, fmt.Errorf("%w %q: %s", ErrInvalidName, display, invalidReason(display))
	}
	return Name{Display: display, Storage: StorageName(display)}, nil
}

// invalidReason explains why s failed the grammar.
func invalidReason(s string) string {
	for i, r := range s {
		if i == 0 && !unicode.IsLetter(r) && r != '_' {
			return fmt.Sprintf("must start with a letter or underscore, not %q", r)
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != ' ' {
			return fmt.Sprintf("character %q is not allowed; use letters, digits, spaces and underscores", r)
		}
	}
	return "use letters, digits, spaces and underscores, starting with a letter or underscore"
}

// ValidateTableName validates candidate as a user table name. Names owned by
// the engine or by the bookkeeping tables are rejected with ErrReservedName.
func ValidateTableName(candidate string) (Name, error) {
	n, err := ValidateName(candidate)
	if err != nil {
		return Name{}, err
	}
	lower := strings.ToLower(n.Storage)
	if strings.HasPrefix(lower, "sqlite_") || reservedTables[lower] {
		return Name{}, fmt.Errorf("%w: table %q", ErrReservedName, n.Display)
	}
	return n, nil
}

// ValidateColumnName validates candidate as a user column name. The id
// column is rejected with ErrReservedName.
func ValidateColumnName(candidate string) (Name, error) {
	n, err := ValidateName(candidate)
	if err != nil {
		return Name{}, err
	}
	if strings.EqualFold(n.Storage, IDColumn) {
		return Name{}, fmt.Errorf("%w: column %q", ErrReservedName, n.Display)
	}
	return n, nil
}

// StorageName collapses whitespace runs in s into single underscores.
// The transform is not reversible: "ship date" and "ship_date" share the
// storage name ship_date.
func StorageName(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), "_")
}

// DisplayName renders a storage name for people by turning underscores
// into spaces. Used only when no display form was recorded.
func DisplayName(storage string) string {
	return strings.ReplaceAll(storage, "_", " ")
}

// QuoteIdent quotes s as an SQL identifier.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Bookkeeping table names. User tables may not take these names.
const (
	RegistryTable = "sheets_tables"
	ColumnsTable  = "sheets_columns"
)

var reservedTables = map[string]bool{
	RegistryTable: true,
	ColumnsTable:  true,
}
