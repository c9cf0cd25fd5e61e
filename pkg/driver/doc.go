// Package driver defines the driver contract and manages driver
// lifecycles.
//
// A driver is a unit of device support: it attaches one or more devices to
// the bus during Init and removes them during Shutdown. Driver
// implementations register a factory under a well-known name in an init
// function; the Manager instantiates and loads them by name at runtime.
//
// The manager tracks which devices each driver attaches so that a driver
// that fails to initialize, or forgets to detach on shutdown, never leaves
// devices behind on the bus.
package driver
