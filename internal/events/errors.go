package events

import "errors"

// Domain errors for the trigger event dispatcher.
var (
	// ErrDispatcherStopped is returned by Start on a dispatcher that has
	// already been started or stopped.
	ErrDispatcherStopped = errors.New("events: dispatcher stopped")
)
