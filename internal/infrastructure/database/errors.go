package database

import "errors"

var (
	// ErrNoPath is returned by Open when Config.Path is empty.
	ErrNoPath = errors.New("database: path is required")

	// ErrNoDownSQL is returned when rolling back a migration without a down file.
	ErrNoDownSQL = errors.New("database: migration has no down SQL")

	// ErrUnknownMigration is returned when an applied version has no file.
	ErrUnknownMigration = errors.New("database: applied migration not found")
)
