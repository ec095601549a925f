package dbus

import (
	"fmt"
	"reflect"
)

// TypeError is the error returned when a type cannot be represented
// in the DBus wire format.
type TypeError struct {
	// Type is the name of the type that caused the error.
	Type string
	// Reason is an explanation of why the type isn't representable by
	// DBus.
	Reason error
}

func (e TypeError) Error() string {
	return fmt.Sprintf("dbus cannot represent %s: %s", e.Type, e.Reason)
}

func (e TypeError) Unwrap() error {
	return e.Reason
}

func typeErr(t reflect.Type, reason string, args ...any) error {
	ts := ""
	if t != nil {
		ts = t.String()
	}
	return TypeError{ts, fmt.Errorf(reason, args...)}
}

// ValidationError reports why a string failed to validate as a DBus
// object path, interface name, bus name, member name, or error name.
type ValidationError struct {
	// Kind identifies what sort of value failed to validate, e.g.
	// "object path" or "interface name".
	Kind string
	// Value is the rejected string.
	Value string
	// Code is a short machine-readable defect code, e.g.
	// "trailing_slash" or "multiple_dots".
	Code string
	// Index is the byte offset within Value where the defect was
	// detected.
	Index int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s (at byte %d)", e.Kind, e.Value, e.Code, e.Index)
}

// ReadError reports a failure to decode a message from the wire.
//
// Offset locates the failure within the message being decoded, as a
// byte count from the start of the message (including the header),
// which makes it possible to correlate a decoding failure with a byte
// capture of the offending message.
type ReadError struct {
	// Code is a short machine-readable defect code, e.g.
	// "unexpected_variant" or "invalid_bool".
	Code string
	// Offset is the byte index, relative to the start of the message,
	// at which the error occurred.
	Offset int
	// Err is the underlying error, if any.
	Err error
}

func (e *ReadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("read error %s at byte %d", e.Code, e.Offset)
	}
	return fmt.Sprintf("read error %s at byte %d: %s", e.Code, e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

func readErr(offset int, code string, reason string, args ...any) error {
	return &ReadError{
		Code:   code,
		Offset: offset,
		Err:    fmt.Errorf(reason, args...),
	}
}

// WriteError reports a failure to encode a message for the wire.
//
// Offset locates the failure within the message under construction,
// as a byte count from the start of the message.
type WriteError struct {
	// Code is a short machine-readable defect code, e.g.
	// "string_too_long" or "array_too_long".
	Code string
	// Offset is the byte index, relative to the start of the message,
	// at which the error occurred.
	Offset int
	// Err is the underlying error, if any.
	Err error
}

func (e *WriteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("write error %s at byte %d", e.Code, e.Offset)
	}
	return fmt.Sprintf("write error %s at byte %d: %s", e.Code, e.Offset, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func writeErr(offset int, code string, reason string, args ...any) error {
	return &WriteError{
		Code:   code,
		Offset: offset,
		Err:    fmt.Errorf(reason, args...),
	}
}

// CallError is the error returned from failed DBus method calls.
type CallError struct {
	// Name is the error name provided by the remote peer.
	Name string
	// Detail is the human-readable explanation of what went wrong.
	Detail string
}

func (e CallError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("call error %s", e.Name)
	}
	return fmt.Sprintf("call error %s: %s", e.Name, e.Detail)
}
