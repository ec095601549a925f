package dbus

import (
	"context"
	"reflect"
	"strings"

	"github.com/copperline/dbus/fragments"
)

// ObjectPath is the name of an object exposed over DBus, e.g.
// "/org/freedesktop/DBus".
type ObjectPath string

// NewObjectPath validates s as a DBus object path: it must begin with
// '/', consist of '/'-separated elements drawn from "[A-Za-z0-9_]",
// contain no empty elements (no consecutive '/'), and carry no
// trailing '/' unless s is the root path "/".
func NewObjectPath(s string) (ObjectPath, error) {
	if len(s) == 0 {
		return "", &ValidationError{"object path", s, "empty", 0}
	}
	if s[0] != '/' {
		return "", &ValidationError{"object path", s, "path_not_absolute", 0}
	}
	if len(s) == 1 {
		return ObjectPath(s), nil
	}
	if s[len(s)-1] == '/' {
		return "", &ValidationError{"object path", s, "trailing_slash", len(s) - 1}
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '/' && s[i-1] == '/' {
			return "", &ValidationError{"object path", s, "multiple_slashes", i}
		}
		if !(isNameLetter(c) || isNameDigit(c) || c == '/') {
			return "", &ValidationError{"object path", s, "invalid_character", i}
		}
	}
	return ObjectPath(s), nil
}

func (p ObjectPath) MarshalDBus(ctx context.Context, st *fragments.Encoder) error {
	return st.Value(ctx, string(p))
}

func (p *ObjectPath) UnmarshalDBus(ctx context.Context, st *fragments.Decoder) error {
	var s string
	if err := st.Value(ctx, &s); err != nil {
		return err
	}
	*p = ObjectPath(s)
	return nil
}

// String returns the path as a plain string.
func (p ObjectPath) String() string { return string(p) }

// Clean returns p with any trailing slash removed, except for the
// root path "/" itself.
func (p ObjectPath) Clean() ObjectPath {
	if p == "" || p == "/" {
		return "/"
	}
	return ObjectPath(strings.TrimSuffix(string(p), "/"))
}

// IsChildOf reports whether p is at or below the subtree rooted at
// parent.
func (p ObjectPath) IsChildOf(parent ObjectPath) bool {
	parent = parent.Clean()
	if parent == "/" {
		return true
	}
	return p == parent || strings.HasPrefix(string(p), string(parent)+"/")
}

func (p ObjectPath) IsDBusStruct() bool { return false }

var objectPathSignature = mkSignature(reflect.TypeFor[ObjectPath](), "o")

func (p ObjectPath) SignatureDBus() Signature { return objectPathSignature }
