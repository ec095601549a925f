package dbus

import (
	"context"
	"fmt"
	"reflect"

	"github.com/copperline/dbus/fragments"
)

// Variant is a DBus value whose type is only known at runtime. It is
// used heavily by introspectable services to carry property values
// and "vardict" extensible structs.
type Variant struct {
	// Value is the variant's inner value. Its type determines the
	// DBus signature under which Value gets marshaled.
	Value any
}

var variantType = reflect.TypeFor[Variant]()

func (v Variant) IsDBusStruct() bool { return false }

func (v Variant) SignatureDBus() Signature { return mustParseSignature("v") }

func (v Variant) MarshalDBus(ctx context.Context, e *fragments.Encoder) error {
	sig, err := SignatureOf(v.Value)
	if err != nil {
		return err
	}
	if err := sig.MarshalDBus(ctx, e); err != nil {
		return err
	}
	return e.Value(ctx, v.Value)
}

func (v *Variant) UnmarshalDBus(ctx context.Context, d *fragments.Decoder) error {
	start := d.Offset()
	var sig Signature
	if err := sig.UnmarshalDBus(ctx, d); err != nil {
		return readErr(start, "variant_signature", "reading variant signature: %w", err)
	}
	innerType := sig.Type()
	if innerType == nil {
		return readErr(d.Offset(), "unexpected_variant", "unsupported variant type signature %q", sig)
	}
	innerPtr := reflect.New(innerType)
	if err := d.Value(ctx, innerPtr.Interface()); err != nil {
		return fmt.Errorf("reading variant value (signature %q): %w", sig, err)
	}
	v.Value = innerPtr.Elem().Interface()
	return nil
}
