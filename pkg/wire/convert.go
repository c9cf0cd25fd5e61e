package wire

import (
	"fmt"

	"github.com/astrobus-protocol/astrobus-go/pkg/property"
)

// DefineFromProperty builds the wire snapshot of a full property.
func DefineFromProperty(device string, p *property.Property, message string) *Define {
	items := make([]Item, len(p.Items))
	for i, it := range p.Items {
		items[i] = itemToWire(it)
	}
	return &Define{
		Device:  device,
		Name:    p.Name,
		Group:   p.Group,
		Label:   p.Label,
		Type:    TypeName(p.Type),
		Perm:    PermName(p.Perm),
		Rule:    RuleName(p.Rule),
		State:   StateName(p.State),
		Items:   items,
		Message: message,
	}
}

// UpdateFromProperty builds the wire form of a committed update. When
// changed is empty every item is included, otherwise only the named ones.
func UpdateFromProperty(device string, p *property.Property, changed []string, message string) *Update {
	var items []Item
	if len(changed) == 0 {
		items = make([]Item, len(p.Items))
		for i, it := range p.Items {
			items[i] = itemToWire(it)
		}
	} else {
		want := make(map[string]struct{}, len(changed))
		for _, name := range changed {
			want[name] = struct{}{}
		}
		for _, it := range p.Items {
			if _, ok := want[it.Name]; ok {
				items = append(items, itemToWire(it))
			}
		}
	}
	return &Update{
		Device:  device,
		Name:    p.Name,
		State:   StateName(p.State),
		Items:   items,
		Message: message,
	}
}

// itemToWire converts one model item to its wire form.
func itemToWire(it property.Item) Item {
	w := Item{Name: it.Name, Label: it.Label}
	switch v := it.Value.(type) {
	case property.TextValue:
		s := v.Value
		w.Text = &s
	case property.NumberValue:
		w.Number = &NumberItem{
			Value:  v.Value,
			Min:    v.Min,
			Max:    v.Max,
			Step:   v.Step,
			Format: v.Format,
			Unit:   v.Unit,
		}
	case property.SwitchValue:
		on := v.On
		w.Switch = &on
	case property.LightValue:
		s := StateName(v.State)
		w.Light = &s
	case property.BlobValue:
		w.Blob = &BlobItem{
			ContentType: v.ContentType,
			Size:        v.Size,
			Data:        v.Data,
			URL:         v.URL,
		}
	}
	return w
}

// Values converts the change's items into model value deltas.
func (c *Change) Values() (map[string]property.Value, error) {
	values := make(map[string]property.Value, len(c.Items))
	for _, it := range c.Items {
		switch {
		case it.Text != nil:
			values[it.Name] = property.TextValue{Value: *it.Text}
		case it.Number != nil:
			values[it.Name] = property.NumberValue{Value: *it.Number}
		case it.Switch != nil:
			values[it.Name] = property.SwitchValue{On: *it.Switch}
		default:
			return nil, fmt.Errorf("%w: change item %q has no value", ErrProtocol, it.Name)
		}
	}
	return values, nil
}

// PropertyFromDefine rebuilds a model property from a define snapshot.
// Used by client-side consumers mirroring the remote registry.
func PropertyFromDefine(d *Define) (*property.Property, error) {
	typ, err := ParseType(d.Type)
	if err != nil {
		return nil, err
	}
	perm, err := ParsePerm(d.Perm)
	if err != nil {
		return nil, err
	}
	state, err := ParseState(d.State)
	if err != nil {
		return nil, err
	}

	items := make([]property.Item, 0, len(d.Items))
	for _, w := range d.Items {
		it, err := itemFromWire(w, typ)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	var p *property.Property
	switch typ {
	case property.TypeText:
		p, err = property.NewText(d.Name, d.Group, d.Label, perm, items...)
	case property.TypeNumber:
		p, err = property.NewNumber(d.Name, d.Group, d.Label, perm, items...)
	case property.TypeSwitch:
		rule, rerr := ParseRule(d.Rule)
		if rerr != nil {
			return nil, rerr
		}
		p, err = property.NewSwitch(d.Name, d.Group, d.Label, perm, rule, items...)
	case property.TypeLight:
		p, err = property.NewLight(d.Name, d.Group, d.Label, items...)
	case property.TypeBlob:
		p, err = property.NewBlob(d.Name, d.Group, d.Label, items...)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	p.State = state
	return p, nil
}

// itemFromWire converts a wire item back to the model, checking that the
// carried value matches the property type.
func itemFromWire(w Item, typ property.Type) (property.Item, error) {
	it := property.Item{Name: w.Name, Label: w.Label}
	switch typ {
	case property.TypeText:
		if w.Text == nil {
			return it, fmt.Errorf("%w: item %q missing text value", ErrProtocol, w.Name)
		}
		it.Value = property.TextValue{Value: *w.Text}
	case property.TypeNumber:
		if w.Number == nil {
			return it, fmt.Errorf("%w: item %q missing number value", ErrProtocol, w.Name)
		}
		it.Value = property.NumberValue{
			Value:  w.Number.Value,
			Min:    w.Number.Min,
			Max:    w.Number.Max,
			Step:   w.Number.Step,
			Format: w.Number.Format,
			Unit:   w.Number.Unit,
		}
	case property.TypeSwitch:
		if w.Switch == nil {
			return it, fmt.Errorf("%w: item %q missing switch value", ErrProtocol, w.Name)
		}
		it.Value = property.SwitchValue{On: *w.Switch}
	case property.TypeLight:
		if w.Light == nil {
			return it, fmt.Errorf("%w: item %q missing light value", ErrProtocol, w.Name)
		}
		state, err := ParseState(*w.Light)
		if err != nil {
			return it, err
		}
		it.Value = property.LightValue{State: state}
	case property.TypeBlob:
		if w.Blob == nil {
			return it, fmt.Errorf("%w: item %q missing blob value", ErrProtocol, w.Name)
		}
		it.Value = property.BlobValue{
			ContentType: w.Blob.ContentType,
			Size:        w.Blob.Size,
			Data:        w.Blob.Data,
			URL:         w.Blob.URL,
		}
	}
	return it, nil
}

// FilterBlobs applies a client's transfer preference to outbound items.
// Never strips payload bytes and locators, Also keeps inline data, URL
// drops the bytes and keeps the locator. Metadata (size, content type)
// survives in every mode.
func FilterBlobs(items []Item, mode BlobMode) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		if it.Blob == nil {
			out[i] = it
			continue
		}
		b := *it.Blob
		switch mode {
		case BlobAlso:
			b.URL = ""
		case BlobURL:
			b.Data = nil
		default: // BlobNever
			b.Data = nil
			b.URL = ""
		}
		it.Blob = &b
		out[i] = it
	}
	return out
}
