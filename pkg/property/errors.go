package property

import "errors"

// Property model errors.
var (
	// ErrNoItems indicates a property was constructed without items.
	ErrNoItems = errors.New("property needs at least one item")

	// ErrDuplicateItem indicates two items share a name.
	ErrDuplicateItem = errors.New("duplicate item name")

	// ErrUnknownItem indicates a change referenced an item the property
	// does not have.
	ErrUnknownItem = errors.New("unknown item")

	// ErrTypeMismatch indicates an item value kind does not match the
	// property type.
	ErrTypeMismatch = errors.New("item type mismatch")

	// ErrInvalidSelection indicates a switch change would violate the
	// property's selection rule.
	ErrInvalidSelection = errors.New("invalid switch selection")

	// ErrOutOfRange indicates a numeric change outside the declared
	// [min, max] range. Out-of-range values are rejected, never clamped.
	ErrOutOfRange = errors.New("number out of range")

	// ErrPermissionDenied indicates a client change to a read-only
	// property or item.
	ErrPermissionDenied = errors.New("permission denied")
)
