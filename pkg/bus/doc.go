// Package bus fans registry events out to attached clients and routes
// client requests to device drivers.
//
// A Bus owns one registry. Drivers publish through the registry; a single
// broadcast goroutine consumes the resulting event stream and converts each
// event to a wire message for every attached client, so all clients observe
// changes to any one property in commit order.
//
// Each client has a bounded outbound queue. A slow consumer does not stall
// the bus: when its queue fills, the oldest pending messages are dropped
// and the client is told how many it missed. Binary payloads are filtered
// per client according to its blob transfer preference; metadata is always
// delivered.
package bus
