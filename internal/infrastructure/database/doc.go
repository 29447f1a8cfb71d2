// Package database provides SQLite connectivity and schema migrations.
//
// The database holds the last persisted value of every field
// (field_values), the change history (field_history) and fired trigger
// events (field_events). The SQL lives in the top-level migrations
// package, which registers its embedded files with this package at init:
//
//	import _ "github.com/nerrad567/gray-logic-fieldio/migrations"
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or have defaults,
// and every .up.sql has a matching .down.sql. Tables use STRICT mode.
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
package database
