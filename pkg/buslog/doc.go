// Package buslog implements structured protocol logging for the bus.
//
// Every layer emits Events: raw frames at the transport layer, decoded
// messages at the wire layer, and lifecycle/state changes at the bus layer.
// Applications choose where events go: NoopLogger discards them, a
// FileLogger appends compact CBOR records for offline analysis, and
// SlogAdapter bridges events into a standard *slog.Logger for human
// readable output. MultiLogger fans out to several sinks at once.
package buslog
