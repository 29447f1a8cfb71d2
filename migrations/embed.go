// Package migrations embeds the SQL schema migrations into the binary.
//
// Importing it for side effects registers the files with the database
// package, so DB.Migrate finds them without any files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.Migrations = migrationsFS
	database.MigrationsDir = "."
}
