// Package simulator provides a software-only driver with a camera and a
// focuser. It exercises the full property surface (switches, numbers,
// blobs, async state transitions) without hardware, and serves as the
// reference for writing real drivers.
package simulator
