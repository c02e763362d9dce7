package database

import "errors"

// Sentinel errors for the database package.
//
// Engine failures are wrapped so both the sentinel and the driver error
// are reachable with errors.Is / errors.As:
//
//	if errors.Is(err, database.ErrExecFailed) {
//	    // the engine rejected the statement
//	}
var (
	// ErrEmptyPath is returned when Open is called without a database path.
	ErrEmptyPath = errors.New("database: path is required")

	// ErrClosed is returned when a statement runs after Close.
	ErrClosed = errors.New("database: closed")

	// ErrExecFailed is returned when the engine rejects a statement.
	ErrExecFailed = errors.New("database: statement failed")

	// ErrBatchFailed is returned when any statement of a batch fails.
	// The whole batch has been rolled back.
	ErrBatchFailed = errors.New("database: batch rolled back")

	// ErrQueryFailed is returned when a read cannot be executed or drained.
	ErrQueryFailed = errors.New("database: query failed")

	// ErrInvalidIdentifier is returned for table or savepoint names that
	// cannot be used as SQL identifiers.
	ErrInvalidIdentifier = errors.New("database: invalid identifier")
)
