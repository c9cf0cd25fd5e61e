// Package adapter bridges one transport connection to the bus.
//
// Each connection gets its own Adapter: inbound lines are decoded and
// dispatched as bus requests, and the bus client's event stream is encoded
// and written back out. Malformed inbound lines are answered with an alert
// notice and do not terminate the connection; transport failures do.
package adapter
