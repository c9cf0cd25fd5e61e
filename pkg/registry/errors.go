package registry

import "errors"

// Registry errors.
var (
	// ErrDuplicateDevice is returned when attaching a device whose name is
	// already taken.
	ErrDuplicateDevice = errors.New("duplicate device name")

	// ErrUnknownDevice is returned when the named device is not attached.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrUnknownProperty is returned when the named property is not defined
	// on the device.
	ErrUnknownProperty = errors.New("unknown property")
)
