package orm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nerrad567/recordstore/internal/infrastructure/database"
)

// CreateTableSQL returns the CREATE TABLE IF NOT EXISTS statement for cols.
// Every builder here double-quotes table and column names, so keywords
// such as "order" are valid names.
func CreateTableSQL(table string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		def := database.QuoteIdentifier(c.Name) + " " + c.Kind.SQLType()
		if c.PrimaryKey {
			def += " PRIMARY KEY"
		}
		defs[i] = def
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", database.QuoteIdentifier(table), strings.Join(defs, ", "))
}

// InsertOrReplaceSQL returns a positional INSERT OR REPLACE statement.
// A row with the same primary key is replaced in full, not merged.
func InsertOrReplaceSQL(table string, names []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		database.QuoteIdentifier(table), database.QuoteIdentifiers(names), placeholders)
}

// SelectSQL returns SELECT * with an optional raw WHERE condition.
//
// condition is inserted verbatim. It must never contain untrusted input.
func SelectSQL(table, condition string) string {
	from := "SELECT * FROM " + database.QuoteIdentifier(table)
	if strings.TrimSpace(condition) == "" {
		return from
	}
	return from + " WHERE " + condition
}

// DeleteAllSQL returns a DELETE without a condition.
func DeleteAllSQL(table string) string {
	return "DELETE FROM " + database.QuoteIdentifier(table)
}

// DeleteWhereSQL returns a DELETE matching every column = value pair.
// Pairs are ANDed in column name order and values are written as quoted
// literals; an empty map deletes every row.
//
func DeleteWhereSQL(table string, conditions map[string]string) string {
	if len(conditions) == 0 {
		return DeleteAllSQL(table)
	}

	cols := make([]string, 0, len(conditions))
	for col := range conditions {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	clauses := make([]string, len(cols))
	for i, col := range cols {
		clauses[i] = database.QuoteIdentifier(col) + " = " + quoteLiteral(conditions[col])
	}
	return DeleteAllSQL(table) + " WHERE " + strings.Join(clauses, " AND ")
}

// quoteLiteral returns s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
