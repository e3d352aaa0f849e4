// Package migrations embeds the SQL migration files so that the compiled
// binary carries its own schema management without requiring files on disk.
//
// Each supported driver has its own directory; the schemas are kept in step.
package migrations

import "embed"

// FS holds postgres/*.sql and sqlite/*.sql.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Directories inside FS, one per database driver.
const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
