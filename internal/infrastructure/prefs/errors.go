package prefs

import "errors"

var (
	// ErrEmptyKey is returned when a preference key is empty.
	ErrEmptyKey = errors.New("prefs: key cannot be empty")

	// ErrCorrupt is returned when the preferences file cannot be parsed.
	ErrCorrupt = errors.New("prefs: file is corrupt")
)
