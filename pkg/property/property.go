package property

import (
	"fmt"
	"time"
)

// DefaultTimeout is the command timeout assigned by constructors.
// A property that stays Busy longer than its timeout is a driver-reported
// liveness fault.
const DefaultTimeout = 60 * time.Second

// Item is a single named value slot within a property.
type Item struct {
	// Name is the property-wide unique item name.
	Name string

	// Label is the human readable item description.
	Label string

	// Value is the typed item value.
	Value Value
}

// Property is a named, typed, stateful group of items belonging to one
// device. Item order is preserved: it is display and wire order.
type Property struct {
	// Name is the device-wide unique property name.
	Name string

	// Group is the display group, presented as a tab or subtree in UIs.
	Group string

	// Label is the human readable property description.
	Label string

	// Perm is the client access permission.
	Perm Perm

	// Type is the shared value kind of all items.
	Type Type

	// State is the current property state.
	State State

	// Rule is the switch selection rule. Only meaningful for TypeSwitch.
	Rule SwitchRule

	// Timeout bounds how long the property may stay Busy.
	Timeout time.Duration

	// Items in insertion order.
	Items []Item
}

// NewText creates a text property.
func NewText(name, group, label string, perm Perm, items ...Item) (*Property, error) {
	return newProperty(name, group, label, perm, TypeText, 0, items)
}

// NewNumber creates a number property.
func NewNumber(name, group, label string, perm Perm, items ...Item) (*Property, error) {
	return newProperty(name, group, label, perm, TypeNumber, 0, items)
}

// NewSwitch creates a switch property with the given selection rule.
func NewSwitch(name, group, label string, perm Perm, rule SwitchRule, items ...Item) (*Property, error) {
	p, err := newProperty(name, group, label, perm, TypeSwitch, rule, items)
	if err != nil {
		return nil, err
	}
	if err := p.checkSelection(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewLight creates a light property. Lights are always read-only.
func NewLight(name, group, label string, items ...Item) (*Property, error) {
	return newProperty(name, group, label, PermReadOnly, TypeLight, 0, items)
}

// NewBlob creates a blob property. Blobs are read-only from the client
// side; only the owning driver populates payloads.
func NewBlob(name, group, label string, items ...Item) (*Property, error) {
	return newProperty(name, group, label, PermReadOnly, TypeBlob, 0, items)
}

func newProperty(name, group, label string, perm Perm, typ Type, rule SwitchRule, items []Item) (*Property, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: property %q", ErrNoItems, name)
	}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.Name]; dup {
			return nil, fmt.Errorf("%w: %q in property %q", ErrDuplicateItem, it.Name, name)
		}
		seen[it.Name] = struct{}{}
		if err := checkKind(it.Value, typ, it.Name); err != nil {
			return nil, err
		}
	}
	return &Property{
		Name:    name,
		Group:   group,
		Label:   label,
		Perm:    perm,
		Type:    typ,
		State:   StateIdle,
		Rule:    rule,
		Timeout: DefaultTimeout,
		Items:   append([]Item(nil), items...),
	}, nil
}

// Item returns the item with the given name.
func (p *Property) Item(name string) (*Item, error) {
	for i := range p.Items {
		if p.Items[i].Name == name {
			return &p.Items[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q in property %q", ErrUnknownItem, name, p.Name)
}

// ItemNames returns item names in insertion order.
func (p *Property) ItemNames() []string {
	names := make([]string, len(p.Items))
	for i, it := range p.Items {
		names[i] = it.Name
	}
	return names
}

// onCount returns how many switch items are on.
func (p *Property) onCount() int {
	n := 0
	for _, it := range p.Items {
		if sw, ok := it.Value.(SwitchValue); ok && sw.On {
			n++
		}
	}
	return n
}

// checkSelection validates the current item values against the switch rule.
func (p *Property) checkSelection() error {
	if p.Type != TypeSwitch {
		return nil
	}
	n := p.onCount()
	switch p.Rule {
	case RuleOneOfMany:
		if n != 1 {
			return fmt.Errorf("%w: %d items on, rule %s", ErrInvalidSelection, n, p.Rule)
		}
	case RuleAtMostOne:
		if n > 1 {
			return fmt.Errorf("%w: %d items on, rule %s", ErrInvalidSelection, n, p.Rule)
		}
	}
	return nil
}

// ApplyChange applies item value deltas. The whole change is validated
// before any item is touched, so a failed change leaves the property
// unchanged. It does not alter the property state; callers commit the
// state transition together with the change.
func (p *Property) ApplyChange(changes map[string]Value) error {
	if len(changes) == 0 {
		return nil
	}

	// Validate names and kinds first.
	for name, v := range changes {
		it, err := p.Item(name)
		if err != nil {
			return err
		}
		if err := checkKind(v, p.Type, name); err != nil {
			return err
		}
		switch nv := v.(type) {
		case NumberValue:
			cur := it.Value.(NumberValue)
			if !cur.InRange(nv.Value) {
				return fmt.Errorf("%w: item %q value %g outside [%g, %g]",
					ErrOutOfRange, name, nv.Value, cur.Min, cur.Max)
			}
		case LightValue:
			// Lights are driver-owned indicators.
			return fmt.Errorf("%w: item %q is a light", ErrPermissionDenied, name)
		}
	}

	if p.Type == TypeSwitch {
		return p.applySwitchChange(changes)
	}

	for name, v := range changes {
		it, _ := p.Item(name)
		switch nv := v.(type) {
		case NumberValue:
			// Preserve declared bounds and display hints.
			cur := it.Value.(NumberValue)
			cur.Value = nv.Value
			it.Value = cur
		default:
			it.Value = v
		}
	}
	return nil
}

// applySwitchChange applies switch deltas under the selection rule.
// OneOfMany behaves radio-style: turning one item on resets the others.
func (p *Property) applySwitchChange(changes map[string]Value) error {
	next := make([]bool, len(p.Items))
	for i, it := range p.Items {
		next[i] = it.Value.(SwitchValue).On
	}

	requestedOn := ""
	for i := range p.Items {
		v, ok := changes[p.Items[i].Name]
		if !ok {
			continue
		}
		on := v.(SwitchValue).On
		next[i] = on
		if on {
			if requestedOn != "" && p.Rule != RuleAnyOfMany {
				return fmt.Errorf("%w: %q and %q both selected, rule %s",
					ErrInvalidSelection, requestedOn, p.Items[i].Name, p.Rule)
			}
			requestedOn = p.Items[i].Name
		}
	}

	if p.Rule == RuleOneOfMany && requestedOn != "" {
		// Radio behaviour: the selected item wins, everything else resets.
		for i := range next {
			next[i] = p.Items[i].Name == requestedOn
		}
	}

	on := 0
	for _, b := range next {
		if b {
			on++
		}
	}
	switch p.Rule {
	case RuleOneOfMany:
		if on != 1 {
			return fmt.Errorf("%w: %d items on, rule %s", ErrInvalidSelection, on, p.Rule)
		}
	case RuleAtMostOne:
		if on > 1 {
			return fmt.Errorf("%w: %d items on, rule %s", ErrInvalidSelection, on, p.Rule)
		}
	}

	for i := range p.Items {
		p.Items[i].Value = SwitchValue{On: next[i]}
	}
	return nil
}

// SetSwitch turns the named item on or off, resetting siblings as the rule
// requires. Driver-side helper; it bypasses permission checks.
func (p *Property) SetSwitch(name string, on bool) error {
	it, err := p.Item(name)
	if err != nil {
		return err
	}
	if on && (p.Rule == RuleOneOfMany || p.Rule == RuleAtMostOne) {
		for i := range p.Items {
			p.Items[i].Value = SwitchValue{On: false}
		}
	}
	it.Value = SwitchValue{On: on}
	return nil
}

// Clone returns a deep copy of the property. Blob payload bytes are shared:
// payloads are immutable once published.
func (p *Property) Clone() *Property {
	c := *p
	c.Items = append([]Item(nil), p.Items...)
	return &c
}

// Equal reports whether two properties have the same name, state and item
// values. Display metadata does not participate.
func (p *Property) Equal(other *Property) bool {
	if other == nil || p.Name != other.Name || p.State != other.State || len(p.Items) != len(other.Items) {
		return false
	}
	for i := range p.Items {
		if p.Items[i].Name != other.Items[i].Name || !p.Items[i].Value.Equal(other.Items[i].Value) {
			return false
		}
	}
	return true
}

// HasBlob reports whether any item carries binary payload data or a locator.
func (p *Property) HasBlob() bool {
	return p.Type == TypeBlob
}
