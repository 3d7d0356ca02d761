// Package database opens the SQLite database backing the device directory
// and applies embedded schema migrations.
//
// The hub keeps no state across restarts, so the default path is
// ":memory:". The pool is pinned to a single connection that is never
// recycled; SQLite drops an in-memory database when its last connection
// closes. A file path can be configured for debugging, in which case WAL
// mode and 0600 permissions apply.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: database.MemoryPath})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := database.NewMigrator(db, migrations.FS, ".").Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql.
package database
