package dbus

import (
	"context"

	"github.com/copperline/dbus/fragments"
)

// byteOrder wraps the fragments package's primitive for handling the
// DBus byte order mark into something that can be a struct field.
type byteOrder bool

func (*byteOrder) SignatureDBus() Signature {
	ret, _ := SignatureFor[uint8]()
	return ret
}

func (*byteOrder) MarshalDBus(ctx context.Context, e *fragments.Encoder) error {
	e.ByteOrderFlag()
	return nil
}
func (b *byteOrder) UnmarshalDBus(ctx context.Context, d *fragments.Decoder) error {
	d.ByteOrderFlag()
	*b = d.Order == fragments.BigEndian
	return nil
}

func (b *byteOrder) Order() fragments.ByteOrder {
	if *b {
		return fragments.BigEndian
	} else {
		return fragments.LittleEndian
	}
}

// msgType is the type of a DBus message.
type msgType byte

const (
	msgTypeCall msgType = iota + 1
	msgTypeReturn
	msgTypeError
	msgTypeSignal
)

// structAlign is a zero-length struct field that forces padding to
// struct alignment. It features at the end of the DBus header, which
// is specified to contain trailing padding prior to the message body.
type structAlign struct{}

func (*structAlign) SignatureDBus() Signature { return Signature{} }

func (*structAlign) MarshalDBus(_ context.Context, e *fragments.Encoder) error {
	e.Pad(8)
	return nil
}
func (*structAlign) UnmarshalDBus(_ context.Context, d *fragments.Decoder) error {
	d.Pad(8)
	return nil
}

// header is a DBus message header
type header struct {
	// Order is the message's byte order mark.
	Order byteOrder
	// Type is the message's type.
	Type msgType
	// Flags is the message's flag byte.
	Flags byte
	// Version is the DBus protocol version
	Version uint8
	// Length is the length of the message body, not including the
	// header or padding between header and body.
	Length uint32
	// Serial is the serial for this message. It must be non-zero.
	Serial uint32

	// Path is the target object for a call, or the source object
	// for a signal. Required for msgTypeCall and msgTypeSignal.
	Path ObjectPath `dbus:"key=1"`
	// Interface is the interface to target for a call, or the
	// source interface for a signal. Required for msgTypeSignal,
	// optional for msgTypeCall.
	Interface string `dbus:"key=2"`
	// Member is the method name for a call, or signal name for a
	// signal. Required for msgTypeCall and msgTypeSignal.
	Member string `dbus:"key=3"`
	// ErrName is the name of the error that occurred. Required
	// for msgTypeError.
	ErrName string `dbus:"key=4"`
	// ReplySerial is the message serial to which this message is
	// replying. Required for msgTypeReturn and msgTypeError.
	ReplySerial uint32 `dbus:"key=5"`
	// Destination is the target for a message. Optional for every
	// message type.
	Destination string `dbus:"key=6"`
	// Sender is the client ID of the message sender. The message
	// bus populates this value itself, any sent value is ignored
	// and removed.
	Sender string `dbus:"key=7"`
	// Signature is the type signature of the request
	// body. Required if a message body is present.
	Signature Signature `dbus:"key=8"`
	// NumFDs is the number of file descriptors attached to this
	// message. Required if file descriptors are attached to the
	// message.
	NumFDs uint32 `dbus:"key=9"`

	// Unknown collects unknown headers present in the
	// message.
	Unknown map[uint8]any `dbus:"vardict"`

	Align structAlign
}

// fieldRule classifies whether a header field must be present, may be
// present, or must be absent for a given message type.
type fieldRule uint8

const (
	fieldOptional fieldRule = iota
	fieldRequired
	fieldForbidden
)

// headerFieldNames lists the nine DBus header field names, in field
// code order (1 through 9). Index 0 is unused, since field code 0 is
// reserved and never assigned to a struct field.
var headerFieldNames = [10]string{
	1: "path", 2: "interface", 3: "member", 4: "error_name",
	5: "reply_serial", 6: "destination", 7: "sender",
	8: "signature", 9: "unix_fds",
}

// headerFieldTable lays out, for each message type, the rule that
// applies to each of the nine header fields, indexed by field code.
// This mirrors the per-message-type field table in the DBus wire
// protocol specification; destination and sender are always optional
// because buses differ on whether they require an explicit
// destination, and message routing doesn't depend on it here.
var headerFieldTable = map[msgType][10]fieldRule{
	msgTypeCall: {
		1: fieldRequired, 2: fieldOptional, 3: fieldRequired,
		4: fieldForbidden, 5: fieldForbidden,
	},
	msgTypeReturn: {
		1: fieldForbidden, 2: fieldForbidden, 3: fieldForbidden,
		4: fieldForbidden, 5: fieldRequired,
	},
	msgTypeError: {
		1: fieldForbidden, 2: fieldForbidden, 3: fieldForbidden,
		4: fieldRequired, 5: fieldRequired,
	},
	msgTypeSignal: {
		1: fieldRequired, 2: fieldRequired, 3: fieldRequired,
		4: fieldForbidden, 5: fieldForbidden,
	},
}

// fieldPresence reports whether each of the nine header fields is
// present on h, indexed by field code, matching headerFieldTable's
// layout.
func (h *header) fieldPresence() [10]bool {
	return [10]bool{
		1: h.Path != "",
		2: h.Interface != "",
		3: h.Member != "",
		4: h.ErrName != "",
		5: h.ReplySerial != 0,
		6: h.Destination != "",
		7: h.Sender != "",
		8: !h.Signature.IsZero(),
		9: h.NumFDs != 0,
	}
}

// Valid checks that the message header is well-formed for its
// message type: the serial and the type are nonzero and, for the four
// recognized message types, every header field is present or absent
// according to the DBus wire protocol's per-message-type field
// requirements. Headers of unrecognized types are not checked further.
func (h *header) Valid() error {
	if h.Serial == 0 {
		return &ValidationError{Kind: "message header", Value: "", Code: "zero_serial", Index: 0}
	}
	if h.Type == 0 {
		return &ValidationError{Kind: "message header", Value: "", Code: "zero_type", Index: 0}
	}
	rules, ok := headerFieldTable[h.Type]
	if !ok {
		// Unrecognized message types are suspect, but the wire
		// protocol requires clients to tolerate and ignore them.
		return nil
	}
	present := h.fieldPresence()
	for code := 1; code < len(rules); code++ {
		switch rules[code] {
		case fieldRequired:
			if !present[code] {
				return &ValidationError{Kind: "message header", Value: headerFieldNames[code], Code: "missing_required_field", Index: code}
			}
		case fieldForbidden:
			if present[code] {
				return &ValidationError{Kind: "message header", Value: headerFieldNames[code], Code: "forbidden_field_present", Index: code}
			}
		}
	}
	return nil
}

// WantReply reports whether this message requires a response.
func (h *header) WantReply() bool {
	return h.Type == msgTypeCall && h.Flags&0x1 == 0
}

// CanInteract reports whether the message's sender is prepared to
// wait for an interactive authorization prompt, if the sender lacks
// the necessary privileges for the message, and the bus or
// destination wish to trigger an interactive prompt.
func (h header) CanInteract() bool {
	return h.Type == msgTypeCall && h.Flags&0x4 != 0
}
