// Package transport moves protocol lines over byte streams.
//
// The protocol is line-delimited: one message per newline-terminated line.
// LineReader and LineWriter handle the framing over any stream; Server
// accepts TCP connections and drives a read loop per connection, reporting
// activity through callbacks. StdioPipe adapts a stdin/stdout pair to the
// same stream interface for locally spawned peers.
package transport
