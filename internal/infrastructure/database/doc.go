// Package database provides the agent's local SQLite store.
//
// The store holds data that must survive restarts, chiefly the device
// identity issued by dynamic registration so that a rebooted device
// reconnects without registering again.
//
// # Connection
//
// Open creates the parent directory, applies the busy timeout and
// foreign key pragmas, optionally enables WAL, pins the pool to one
// connection and restricts the file to 0600.
//
// # Migrations
//
// Migrate takes the migration files as an fs.FS, normally the embedded
// set from the migrations package:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
//	    return err
//	}
//
// Files are named YYYYMMDD_HHMMSS_description.up.sql with an optional
// .down.sql twin. Each migration commits in its own transaction.
package database
