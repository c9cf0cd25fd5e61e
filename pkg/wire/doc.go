// Package wire defines the textual message model of the bus protocol.
//
// Messages are self-describing JSON objects with exactly one top-level
// key naming the verb, exchanged one per line over a byte stream:
//
//	{"enumerate": {"device": "Simulator CCD"}}
//	{"change": {"device": "Simulator Focuser", "name": "position",
//	            "items": [{"name": "value", "number": 50}]}}
//	{"update": {"device": "Simulator Focuser", "name": "position",
//	            "state": "ok", "items": [...]}}
//
// Inbound verbs (client to bus) are enumerate, change and blobMode;
// outbound verbs (bus to client) are define, update, delete and message.
//
// Binary payloads are inlined as base64 with an explicit byte size and
// content type tag, so receivers can allocate and validate before decode.
// In URL transfer mode the payload is replaced by a dereferenceable
// locator.
package wire
