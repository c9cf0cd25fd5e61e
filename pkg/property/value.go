package property

import "fmt"

// Type is the value kind of a property and of every item it contains.
type Type uint8

const (
	// TypeText holds free-form text values.
	TypeText Type = iota + 1

	// TypeNumber holds bounded numeric values with optional format/unit.
	TypeNumber

	// TypeSwitch holds boolean toggles governed by the property's rule.
	TypeSwitch

	// TypeLight holds read-only indicator states.
	TypeLight

	// TypeBlob holds opaque binary payloads with a content type tag.
	TypeBlob
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeText:
		return "TEXT"
	case TypeNumber:
		return "NUMBER"
	case TypeSwitch:
		return "SWITCH"
	case TypeLight:
		return "LIGHT"
	case TypeBlob:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// State is the property state.
type State uint8

const (
	// StateIdle indicates the property is passive or unused.
	StateIdle State = iota

	// StateOK indicates the last operation on the property succeeded.
	StateOK

	// StateBusy indicates an operation on the property is pending.
	StateBusy

	// StateAlert indicates the last operation on the property failed.
	StateAlert
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOK:
		return "OK"
	case StateBusy:
		return "BUSY"
	case StateAlert:
		return "ALERT"
	default:
		return "UNKNOWN"
	}
}

// Perm is the client access permission of a property.
type Perm uint8

const (
	// PermReadOnly rejects all client change requests.
	PermReadOnly Perm = iota + 1

	// PermReadWrite accepts client change requests.
	PermReadWrite

	// PermWriteOnly accepts change requests but is not reported back.
	PermWriteOnly
)

// String returns the permission name.
func (p Perm) String() string {
	switch p {
	case PermReadOnly:
		return "RO"
	case PermReadWrite:
		return "RW"
	case PermWriteOnly:
		return "WO"
	default:
		return "UNKNOWN"
	}
}

// CanWrite reports whether clients may change the property.
func (p Perm) CanWrite() bool {
	return p == PermReadWrite || p == PermWriteOnly
}

// SwitchRule governs how many items of a switch property may be on.
type SwitchRule uint8

const (
	// RuleOneOfMany keeps exactly one item on (radio button group).
	// Selecting an item resets the others.
	RuleOneOfMany SwitchRule = iota + 1

	// RuleAtMostOne keeps none or one item on.
	RuleAtMostOne

	// RuleAnyOfMany places no constraint on selection (checkbox group).
	RuleAnyOfMany
)

// String returns the rule name.
func (r SwitchRule) String() string {
	switch r {
	case RuleOneOfMany:
		return "ONE_OF_MANY"
	case RuleAtMostOne:
		return "AT_MOST_ONE"
	case RuleAnyOfMany:
		return "ANY_OF_MANY"
	default:
		return "UNKNOWN"
	}
}

// Value is the typed payload of an item. Implementations are the five
// variants TextValue, NumberValue, SwitchValue, LightValue and BlobValue;
// Kind identifies the variant for exhaustive switching.
type Value interface {
	// Kind returns the value variant.
	Kind() Type

	// Equal reports whether two values are identical.
	Equal(other Value) bool
}

// TextValue is a free-form text value.
type TextValue struct {
	Value string
}

// Kind returns TypeText.
func (TextValue) Kind() Type { return TypeText }

// Equal reports whether other is an identical text value.
func (v TextValue) Equal(other Value) bool {
	o, ok := other.(TextValue)
	return ok && o.Value == v.Value
}

// NumberValue is a bounded numeric value. Min == Max == 0 means unbounded.
type NumberValue struct {
	Value  float64
	Min    float64
	Max    float64
	Step   float64
	Format string // printf-style display format, e.g. "%7.2f"
	Unit   string // display unit, e.g. "s" or "°C"
}

// Kind returns TypeNumber.
func (NumberValue) Kind() Type { return TypeNumber }

// Equal reports whether other is a number value with the same value.
// Bounds and display hints do not participate in equality.
func (v NumberValue) Equal(other Value) bool {
	o, ok := other.(NumberValue)
	return ok && o.Value == v.Value
}

// Bounded reports whether the value declares a [Min, Max] range.
func (v NumberValue) Bounded() bool {
	return v.Min != 0 || v.Max != 0
}

// InRange reports whether x satisfies the declared range.
func (v NumberValue) InRange(x float64) bool {
	if !v.Bounded() {
		return true
	}
	return x >= v.Min && x <= v.Max
}

// SwitchValue is a boolean toggle.
type SwitchValue struct {
	On bool
}

// Kind returns TypeSwitch.
func (SwitchValue) Kind() Type { return TypeSwitch }

// Equal reports whether other is an identical switch value.
func (v SwitchValue) Equal(other Value) bool {
	o, ok := other.(SwitchValue)
	return ok && o.On == v.On
}

// LightValue is a read-only indicator. Lights carry a State as their value
// and can only be changed by the owning driver, never by clients.
type LightValue struct {
	State State
}

// Kind returns TypeLight.
func (LightValue) Kind() Type { return TypeLight }

// Equal reports whether other is an identical light value.
func (v LightValue) Equal(other Value) bool {
	o, ok := other.(LightValue)
	return ok && o.State == v.State
}

// BlobValue is an opaque binary payload. Either Data is populated (inline
// transfer) or URL carries a dereferenceable locator; Size and ContentType
// always describe the payload so receivers can allocate before decode.
type BlobValue struct {
	ContentType string // file type suffix, e.g. ".fits" or ".jpeg"
	Size        int64
	Data        []byte
	URL         string
}

// Kind returns TypeBlob.
func (BlobValue) Kind() Type { return TypeBlob }

// Equal reports whether other is a blob with the same identity metadata.
// Payload bytes are deliberately excluded: two events for the same update
// may differ only in transfer mode.
func (v BlobValue) Equal(other Value) bool {
	o, ok := other.(BlobValue)
	return ok && o.ContentType == v.ContentType && o.Size == v.Size && o.URL == v.URL
}

// checkKind returns an error unless v matches the expected property type.
func checkKind(v Value, want Type, item string) error {
	if v == nil {
		return fmt.Errorf("%w: item %q has no value", ErrTypeMismatch, item)
	}
	if v.Kind() != want {
		return fmt.Errorf("%w: item %q is %s, property is %s", ErrTypeMismatch, item, v.Kind(), want)
	}
	return nil
}
