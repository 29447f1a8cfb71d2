package history

import "errors"

// Sentinel errors for the history package.
var (
	// ErrInvalidRecord is returned when a record lacks its moniker or field.
	ErrInvalidRecord = errors.New("history: invalid record")

	// ErrRecorderStopped is returned when starting a recorder twice or after
	// it stopped.
	ErrRecorderStopped = errors.New("history: recorder stopped")
)
