// Package registry holds the authoritative device and property state of a
// running bus.
//
// Drivers attach devices, define properties on them, and publish committed
// value changes. Every mutation produces an Event that the registry hands to
// its sink in commit order; the bus layer fans those events out to attached
// clients. Property state is only ever observed through clones, so event
// consumers and snapshot readers never share memory with a driver.
//
// All methods are safe for concurrent use. Mutations to one device are
// serialized by a per-device lock, which is what makes the per-property
// event order match the commit order.
package registry
