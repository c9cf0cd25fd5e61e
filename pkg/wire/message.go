package wire

import "errors"

// Wire errors.
var (
	// ErrProtocol indicates a malformed or unknown message. Protocol
	// errors are recoverable: the connection stays open and the next
	// message is parsed independently.
	ErrProtocol = errors.New("protocol error")

	// ErrTransportClosed indicates the underlying transport is gone.
	ErrTransportClosed = errors.New("transport closed")
)

// Message is the wire envelope: exactly one verb field is set.
type Message struct {
	Enumerate *Enumerate `json:"enumerate,omitempty"`
	Change    *Change    `json:"change,omitempty"`
	BlobMode  *SetBlob   `json:"blobMode,omitempty"`
	Define    *Define    `json:"define,omitempty"`
	Update    *Update    `json:"update,omitempty"`
	Delete    *Delete    `json:"delete,omitempty"`
	Notice    *Notice    `json:"message,omitempty"`
}

// Verb returns the verb name of the single populated field, or "".
func (m *Message) Verb() string {
	switch {
	case m.Enumerate != nil:
		return "enumerate"
	case m.Change != nil:
		return "change"
	case m.BlobMode != nil:
		return "blobMode"
	case m.Define != nil:
		return "define"
	case m.Update != nil:
		return "update"
	case m.Delete != nil:
		return "delete"
	case m.Notice != nil:
		return "message"
	}
	return ""
}

// count returns how many verb fields are populated.
func (m *Message) count() int {
	n := 0
	for _, set := range []bool{
		m.Enumerate != nil, m.Change != nil, m.BlobMode != nil,
		m.Define != nil, m.Update != nil, m.Delete != nil, m.Notice != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Enumerate asks the bus to replay property definitions. An empty device
// filter means all devices (typical at client startup).
type Enumerate struct {
	// Device restricts the snapshot to one device. Optional.
	Device string `json:"device,omitempty"`
}

// Change requests item value changes on one property.
type Change struct {
	Device string       `json:"device"`
	Name   string       `json:"name"`
	Items  []ChangeItem `json:"items"`
}

// ChangeItem carries one requested item value. Exactly one of the typed
// fields is set, matching the property type.
type ChangeItem struct {
	Name   string   `json:"name"`
	Text   *string  `json:"text,omitempty"`
	Number *float64 `json:"number,omitempty"`
	Switch *bool    `json:"switch,omitempty"`
}

// SetBlob updates the client's binary transfer preference. An empty
// property name means all properties of the device.
type SetBlob struct {
	Device string   `json:"device"`
	Name   string   `json:"name,omitempty"`
	Mode   BlobMode `json:"mode"`
}

// Define carries a full property snapshot: metadata and all items.
type Define struct {
	Device  string `json:"device"`
	Name    string `json:"name"`
	Group   string `json:"group,omitempty"`
	Label   string `json:"label,omitempty"`
	Type    string `json:"type"`
	Perm    string `json:"perm"`
	Rule    string `json:"rule,omitempty"`
	State   string `json:"state"`
	Items   []Item `json:"items"`
	Message string `json:"message,omitempty"`
}

// Update carries changed items and the resulting state.
type Update struct {
	Device  string `json:"device"`
	Name    string `json:"name"`
	State   string `json:"state"`
	Items   []Item `json:"items"`
	Message string `json:"message,omitempty"`
}

// Delete announces removal of one property, or of a whole device when
// Name is empty.
type Delete struct {
	Device  string `json:"device"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
}

// Notice is a free-form message event. Device is empty for bus-level
// messages.
type Notice struct {
	Device   string   `json:"device,omitempty"`
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}

// Item is the wire form of a property item. Exactly one of the typed
// value fields is set, matching the owning property's type.
type Item struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`

	Text   *string     `json:"text,omitempty"`
	Number *NumberItem `json:"number,omitempty"`
	Switch *bool       `json:"switch,omitempty"`
	Light  *string     `json:"light,omitempty"`
	Blob   *BlobItem   `json:"blob,omitempty"`
}

// NumberItem carries a numeric value with its declared bounds and display
// hints.
type NumberItem struct {
	Value  float64 `json:"value"`
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Step   float64 `json:"step,omitempty"`
	Format string  `json:"format,omitempty"`
	Unit   string  `json:"unit,omitempty"`
}

// BlobItem carries a binary payload descriptor. Data is base64 on the
// wire; Size is the decoded byte length, present even when Data is
// suppressed or replaced by a URL, so receivers can allocate and validate
// before decode.
type BlobItem struct {
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Data        []byte `json:"data,omitempty"`
	URL         string `json:"url,omitempty"`
}
