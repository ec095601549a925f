package dbus

import (
	"errors"
	"testing"
)

func TestHeaderValid(t *testing.T) {
	base := func() header {
		return header{
			Serial: 1,
			Type:   msgTypeCall,
			Path:   "/foo",
			Member: "Bar",
		}
	}

	tests := []struct {
		name    string
		h       header
		wantErr string // empty for no error, else wanted ValidationError.Code
	}{
		{"valid call", base(), ""},
		{"zero serial", func() header { h := base(); h.Serial = 0; return h }(), "zero_serial"},
		{"zero type", func() header { h := base(); h.Type = 0; return h }(), "zero_type"},
		{"call missing path", func() header { h := base(); h.Path = ""; return h }(), "missing_required_field"},
		{"call missing member", func() header { h := base(); h.Member = ""; return h }(), "missing_required_field"},
		{"call with error name", func() header { h := base(); h.ErrName = "org.Foo"; return h }(), "forbidden_field_present"},
		{"call with reply serial", func() header { h := base(); h.ReplySerial = 1; return h }(), "forbidden_field_present"},

		{"valid signal", header{
			Serial: 1, Type: msgTypeSignal,
			Path: "/foo", Interface: "org.foo", Member: "Bar",
		}, ""},
		{"signal missing interface", header{
			Serial: 1, Type: msgTypeSignal,
			Path: "/foo", Member: "Bar",
		}, "missing_required_field"},

		{"valid return", header{
			Serial: 1, Type: msgTypeReturn, ReplySerial: 1,
		}, ""},
		{"return missing reply serial", header{
			Serial: 1, Type: msgTypeReturn,
		}, "missing_required_field"},
		{"return with path", header{
			Serial: 1, Type: msgTypeReturn, ReplySerial: 1, Path: "/foo",
		}, "forbidden_field_present"},

		{"valid error", header{
			Serial: 1, Type: msgTypeError, ReplySerial: 1, ErrName: "org.foo.Bad",
		}, ""},
		{"error missing error name", header{
			Serial: 1, Type: msgTypeError, ReplySerial: 1,
		}, "missing_required_field"},

		{"unrecognized type tolerated", header{
			Serial: 1, Type: msgType(200),
		}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.h.Valid()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Valid() = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Valid() = %v, want *ValidationError", err)
			}
			if verr.Code != tc.wantErr {
				t.Errorf("Valid().Code = %q, want %q", verr.Code, tc.wantErr)
			}
		})
	}
}
