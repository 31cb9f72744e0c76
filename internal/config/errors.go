package config

import "errors"

var (
	// ErrCorrupt marks a document that could not be parsed or failed the
	// structural check. Load recovers from it by backing the file up.
	ErrCorrupt = errors.New("config corrupt")

	// ErrMigrationFailed is fatal: the document is left untouched on disk.
	ErrMigrationFailed = errors.New("config migration failed")

	// ErrPersistFailed reports a failed save. In-memory state stays
	// authoritative for the session.
	ErrPersistFailed = errors.New("config persist failed")
)
