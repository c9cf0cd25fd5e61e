// Package version identifies the hub protocol revision spoken on the
// wire and announced over mDNS.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the protocol revision this library speaks.
const Current = "1.0"

// ProtoVersion is a parsed "major.minor" protocol revision.
type ProtoVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" revision string.
func Parse(s string) (ProtoVersion, error) {
	majorStr, minorStr, ok := strings.Cut(s, ".")
	if !ok {
		return ProtoVersion{}, fmt.Errorf("malformed protocol version %q: want major.minor", s)
	}

	major, err := strconv.ParseUint(majorStr, 10, 16)
	if err != nil {
		return ProtoVersion{}, fmt.Errorf("malformed protocol version %q: %w", s, err)
	}
	minor, err := strconv.ParseUint(minorStr, 10, 16)
	if err != nil {
		return ProtoVersion{}, fmt.Errorf("malformed protocol version %q: %w", s, err)
	}

	return ProtoVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the revision as "major.minor".
func (v ProtoVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible reports whether two revisions can talk to each other. Minor
// revisions only add verbs, so equal majors suffice.
func (v ProtoVersion) Compatible(other ProtoVersion) bool {
	return v.Major == other.Major
}

// TXTRecord returns the "proto=" TXT record hubs announce over mDNS.
// Only the major number is published; minors are wire compatible.
func TXTRecord() string {
	current, _ := Parse(Current)
	return fmt.Sprintf("proto=%d", current.Major)
}
