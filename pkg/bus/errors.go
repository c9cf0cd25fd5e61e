package bus

import "errors"

// Bus errors.
var (
	// ErrAlreadyStarted is returned by Start on a running bus.
	ErrAlreadyStarted = errors.New("bus already started")

	// ErrNoHandler is returned when a change request targets a device
	// that accepts no changes.
	ErrNoHandler = errors.New("device accepts no change requests")
)
