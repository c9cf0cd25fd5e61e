package registry

import "github.com/astrobus-protocol/astrobus-go/pkg/property"

// EventKind classifies a registry event.
type EventKind int

const (
	// EventDefine announces a property, carrying its full snapshot.
	EventDefine EventKind = iota + 1

	// EventUpdate announces committed value or state changes.
	EventUpdate

	// EventDelete announces removal of a property, or of a whole device
	// when Property is nil.
	EventDelete

	// EventMessage is a free-form notification not tied to a property.
	EventMessage
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventDefine:
		return "define"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	case EventMessage:
		return "message"
	}
	return "unknown"
}

// Event is one registry state change. Property is a clone taken at commit
// time; consumers own it and may retain it freely.
type Event struct {
	Kind   EventKind
	Device string

	// Property is set for define and update events, and for the
	// per-property delete events. Nil on device-level deletes and messages.
	Property *property.Property

	// Message is an optional human-readable note attached to the event.
	Message string

	// Severity qualifies message events ("info", "warning", "alert").
	// Empty for other kinds.
	Severity string
}

// Sink receives events in commit order. It is invoked while the owning
// device is locked and must not call back into the registry; typically it
// just forwards to a channel.
type Sink func(Event)
