package wire

import (
	"fmt"

	"github.com/astrobus-protocol/astrobus-go/pkg/property"
)

// BlobMode is a client's binary transfer preference for a property.
type BlobMode string

const (
	// BlobNever suppresses binary payloads; metadata is still delivered.
	// This is the default for every client.
	BlobNever BlobMode = "never"

	// BlobAlso delivers payloads inline, base64-encoded.
	BlobAlso BlobMode = "also"

	// BlobURL replaces inline bytes with a dereferenceable locator.
	BlobURL BlobMode = "url"
)

// Valid reports whether the mode is one of the defined values.
func (m BlobMode) Valid() bool {
	switch m {
	case BlobNever, BlobAlso, BlobURL:
		return true
	}
	return false
}

// Severity classifies a message event.
type Severity string

const (
	// SeverityInfo is an informational message.
	SeverityInfo Severity = "info"

	// SeverityWarning is a non-fatal problem report.
	SeverityWarning Severity = "warning"

	// SeverityAlert reports a failed operation.
	SeverityAlert Severity = "alert"
)

// StateName returns the wire name of a property state.
func StateName(s property.State) string {
	switch s {
	case property.StateOK:
		return "ok"
	case property.StateBusy:
		return "busy"
	case property.StateAlert:
		return "alert"
	default:
		return "idle"
	}
}

// ParseState parses a wire state name.
func ParseState(s string) (property.State, error) {
	switch s {
	case "idle":
		return property.StateIdle, nil
	case "ok":
		return property.StateOK, nil
	case "busy":
		return property.StateBusy, nil
	case "alert":
		return property.StateAlert, nil
	}
	return 0, fmt.Errorf("%w: unknown state %q", ErrProtocol, s)
}

// PermName returns the wire name of a permission.
func PermName(p property.Perm) string {
	switch p {
	case property.PermReadWrite:
		return "rw"
	case property.PermWriteOnly:
		return "wo"
	default:
		return "ro"
	}
}

// ParsePerm parses a wire permission name.
func ParsePerm(s string) (property.Perm, error) {
	switch s {
	case "ro":
		return property.PermReadOnly, nil
	case "rw":
		return property.PermReadWrite, nil
	case "wo":
		return property.PermWriteOnly, nil
	}
	return 0, fmt.Errorf("%w: unknown permission %q", ErrProtocol, s)
}

// TypeName returns the wire name of a property type.
func TypeName(t property.Type) string {
	switch t {
	case property.TypeNumber:
		return "number"
	case property.TypeSwitch:
		return "switch"
	case property.TypeLight:
		return "light"
	case property.TypeBlob:
		return "blob"
	default:
		return "text"
	}
}

// ParseType parses a wire type name.
func ParseType(s string) (property.Type, error) {
	switch s {
	case "text":
		return property.TypeText, nil
	case "number":
		return property.TypeNumber, nil
	case "switch":
		return property.TypeSwitch, nil
	case "light":
		return property.TypeLight, nil
	case "blob":
		return property.TypeBlob, nil
	}
	return 0, fmt.Errorf("%w: unknown type %q", ErrProtocol, s)
}

// RuleName returns the wire name of a switch rule. Empty for non-switch
// properties.
func RuleName(r property.SwitchRule) string {
	switch r {
	case property.RuleOneOfMany:
		return "oneOfMany"
	case property.RuleAtMostOne:
		return "atMostOne"
	case property.RuleAnyOfMany:
		return "anyOfMany"
	default:
		return ""
	}
}

// ParseRule parses a wire switch rule name.
func ParseRule(s string) (property.SwitchRule, error) {
	switch s {
	case "oneOfMany":
		return property.RuleOneOfMany, nil
	case "atMostOne":
		return property.RuleAtMostOne, nil
	case "anyOfMany":
		return property.RuleAnyOfMany, nil
	}
	return 0, fmt.Errorf("%w: unknown switch rule %q", ErrProtocol, s)
}
