// Package database provides the SQLite execution gateway for recordstore.
//
// This package manages:
//   - One connection per database file, used as a serial execution queue
//   - Single statements, atomic batches and callback transactions with savepoints
//   - Eager row materialisation into StoredRow maps
//   - Catalog lookups (table existence, table and column listing)
//   - Version-token schema migration that preserves shared columns
//   - Database file path resolution and best-effort cache cleanup
//
// Security Considerations:
//   - Values are always bound as parameters; identifiers are not quoted
//     and must come from trusted schema definitions
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Performance Characteristics:
//   - Prepared statements are cached per SQL text (bounded)
//   - Busy timeout prevents lock contention errors
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	err = db.RunBatch(ctx, []database.Statement{
//	    {SQL: "INSERT OR REPLACE INTO users (id, name) VALUES (?, ?)", Args: []any{1, "a"}},
//	})
//
// Migration Strategy:
//
// The applied schema version is a single token kept outside the database
// (see VersionStore). When it differs from the current version, every
// table is renamed to "<name>_bak", the current schema is created, the
// columns both schemas share are copied across, and the backups are
// dropped. Columns only in the old schema are discarded; columns only in
// the new schema take their defaults.
package database
