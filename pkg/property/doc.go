// Package property implements the typed property model shared by drivers
// and clients.
//
// A Property is a named, stateful group of Items belonging to one device.
// All items of a property share the property's value kind (text, number,
// switch, light or blob). Item order is significant: it is both display
// order and wire order, so it is preserved from construction onward.
//
// # State machine
//
// Idle, OK and Alert are stable states. Busy is entered when a change
// request is accepted for asynchronous execution and must eventually
// resolve to OK or Alert. A property stuck in Busy past its timeout is a
// driver liveness fault; the bus never cancels it.
//
// # Validation policy
//
// ApplyChange validates every requested item delta before committing any
// of them, so a rejected change leaves the property untouched. Numeric
// values outside the declared [min, max] range are rejected with
// ErrOutOfRange rather than clamped, to keep failures observable.
package property
