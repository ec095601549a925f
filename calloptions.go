package dbus

import "context"

// CallOption adjusts the header flags of an outgoing method call:
// no_reply_expected, no_auto_start, or allow_interactive_authorization.
type CallOption func(context.Context) context.Context

type callFlagsContextKey struct{}

func contextCallFlags(ctx context.Context) byte {
	v := ctx.Value(callFlagsContextKey{})
	if v == nil {
		return 0
	}
	return v.(byte)
}

func withCallFlag(ctx context.Context, bit byte) context.Context {
	return context.WithValue(ctx, callFlagsContextKey{}, contextCallFlags(ctx)|bit)
}

// NoReply tells the bus the caller does not want a reply to this
// call. It is applied automatically by [Interface.OneWay].
func NoReply(ctx context.Context) context.Context {
	return withCallFlag(ctx, 0x1)
}

// NoAutoStart tells the bus not to auto-start a service to handle
// this call if the destination isn't already running.
func NoAutoStart(ctx context.Context) context.Context {
	return withCallFlag(ctx, 0x2)
}

// AllowInteractiveAuthorization tells the bus the caller is prepared
// to wait for an interactive authorization prompt, if the bus or
// destination want to show one to authorize the call.
func AllowInteractiveAuthorization(ctx context.Context) context.Context {
	return withCallFlag(ctx, 0x4)
}
