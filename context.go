package dbus

import (
	"context"
)

// senderContextKey is the context key used to attach the sending
// [Interface] to the context passed to [Unmarshaler] implementations
// while decoding an incoming method call or signal.
type senderContextKey struct{}

func withContextSender(ctx context.Context, iface Interface) context.Context {
	return context.WithValue(ctx, senderContextKey{}, iface)
}

// ContextSender returns the peer [Interface] that sent the message
// currently being processed, if ctx was derived from a handler
// invocation context.
func ContextSender(ctx context.Context) (Interface, bool) {
	v := ctx.Value(senderContextKey{})
	if v == nil {
		return Interface{}, false
	}
	if ret, ok := v.(Interface); ok {
		return ret, true
	}
	return Interface{}, false
}

// withContextHeader attaches the header of the message currently
// being processed to ctx. For incoming method calls and signals,
// this derives the sending peer's [Interface] from the header's
// Sender and Interface fields, so that [ContextSender] and
// [ContextEmitter] can recover it inside a handler or signal
// listener.
func withContextHeader(ctx context.Context, c *Conn, hdr *header) context.Context {
	if hdr.Sender == "" {
		return ctx
	}
	return withContextSender(ctx, c.Peer(hdr.Sender).Object(hdr.Path).Interface(hdr.Interface))
}

// ContextEmitter returns the peer [Interface] that emitted the
// signal currently being processed, if ctx was derived from a signal
// dispatch context.
func ContextEmitter(ctx context.Context) (Interface, bool) {
	return ContextSender(ctx)
}
