package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode serializes a message to one JSON line (without the trailing
// newline; framing belongs to the transport).
func Encode(m *Message) ([]byte, error) {
	if m.count() != 1 {
		return nil, fmt.Errorf("%w: message must carry exactly one verb", ErrProtocol)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", m.Verb(), err)
	}
	return data, nil
}

// Decode parses one JSON line into a message and validates it. All
// failures wrap ErrProtocol so callers can treat them as recoverable.
func Decode(data []byte) (*Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var m Message
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if m.count() != 1 {
		return nil, fmt.Errorf("%w: message must carry exactly one verb, got %d", ErrProtocol, m.count())
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// validate checks verb-specific required fields.
func (m *Message) validate() error {
	switch {
	case m.Change != nil:
		if m.Change.Device == "" || m.Change.Name == "" {
			return fmt.Errorf("%w: change needs device and name", ErrProtocol)
		}
		if len(m.Change.Items) == 0 {
			return fmt.Errorf("%w: change needs at least one item", ErrProtocol)
		}
		for _, it := range m.Change.Items {
			if it.Name == "" {
				return fmt.Errorf("%w: change item needs a name", ErrProtocol)
			}
			if n := countSet(it.Text != nil, it.Number != nil, it.Switch != nil); n != 1 {
				return fmt.Errorf("%w: change item %q must carry exactly one value", ErrProtocol, it.Name)
			}
		}

	case m.BlobMode != nil:
		if m.BlobMode.Device == "" {
			return fmt.Errorf("%w: blobMode needs a device", ErrProtocol)
		}
		if !m.BlobMode.Mode.Valid() {
			return fmt.Errorf("%w: unknown blob mode %q", ErrProtocol, m.BlobMode.Mode)
		}

	case m.Define != nil:
		d := m.Define
		if d.Device == "" || d.Name == "" {
			return fmt.Errorf("%w: define needs device and name", ErrProtocol)
		}
		if len(d.Items) == 0 {
			return fmt.Errorf("%w: define needs at least one item", ErrProtocol)
		}
		if _, err := ParseType(d.Type); err != nil {
			return err
		}
		if _, err := ParsePerm(d.Perm); err != nil {
			return err
		}
		if _, err := ParseState(d.State); err != nil {
			return err
		}

	case m.Update != nil:
		u := m.Update
		if u.Device == "" || u.Name == "" {
			return fmt.Errorf("%w: update needs device and name", ErrProtocol)
		}
		if _, err := ParseState(u.State); err != nil {
			return err
		}

	case m.Delete != nil:
		if m.Delete.Device == "" {
			return fmt.Errorf("%w: delete needs a device", ErrProtocol)
		}

	case m.Notice != nil:
		if m.Notice.Text == "" {
			return fmt.Errorf("%w: message needs text", ErrProtocol)
		}
	}
	return nil
}

func countSet(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
