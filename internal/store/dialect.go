// ABOUTME: SQL dialects the store can target and their squirrel placeholder formats.
// ABOUTME: MySQL is supported for query generation only; no MySQL driver is linked.
package store

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Dialect names a SQL dialect.
type Dialect string

// Supported dialects.
const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect converts a driver or dialect name to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unknown dialect %q", s)
	}
}

// Builder returns a squirrel statement builder using the dialect's
// placeholder style: $1 for Postgres, ? otherwise.
func (d Dialect) Builder() sq.StatementBuilderType {
	if d == DialectPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}
