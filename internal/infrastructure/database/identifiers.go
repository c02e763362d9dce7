package database

import "strings"

// QuoteIdentifier returns name as a double-quoted SQL identifier, so
// keywords such as "order" or "group" can be used as table and column names.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteIdentifiers quotes each name and joins them with ", ".
func QuoteIdentifiers(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

// IsBackupName reports whether name has the shape the migrator gives
// renamed tables ("<base>_bak" or "<base>_bak_<n>"). Such names are
// reserved: the migrator treats every table carrying one as a backup.
func IsBackupName(name string) bool {
	_, _, ok := parseBackupName(name)
	return ok
}
