package dbus

import (
	"cmp"
	"context"
	"strings"
)

type Peer struct {
	c    *Conn
	name string
}

// Compare orders peers by name. It is meant for use with ordered
// containers, not for any protocol purpose.
func (p Peer) Compare(other Peer) int {
	return cmp.Compare(p.name, other.name)
}

func (p Peer) Ping(ctx context.Context, opts ...CallOption) error {
	return p.Conn().call(ctx, p.name, "/", "org.freedesktop.DBus.Peer", "Ping", nil, nil, opts...)
}

func (p Peer) Conn() *Conn  { return p.c }
func (p Peer) Name() string { return p.name }

// IsUniqueName reports whether p's name is a connection-unique bus
// name (e.g. ":1.234") rather than a well-known name like
// "org.freedesktop.DBus".
func (p Peer) IsUniqueName() bool {
	return strings.HasPrefix(p.name, ":")
}

// Owner returns the unique connection name that currently owns p's
// well-known name. If p is already a unique name, Owner returns it
// unchanged.
func (p Peer) Owner(ctx context.Context) (Peer, error) {
	if p.IsUniqueName() {
		return p, nil
	}
	owner, err := p.Conn().GetNameOwner(ctx, p.name)
	if err != nil {
		return Peer{}, err
	}
	return p.Conn().Peer(owner), nil
}

// Identity returns the bus daemon's credentials for p.
func (p Peer) Identity(ctx context.Context) (*PeerCredentials, error) {
	return p.Conn().GetPeerCredentials(ctx, p.name)
}

// UID returns the UID of the process on the other end of p's
// connection.
//
// Deprecated: use [Peer.Identity], which reports all credentials the
// bus daemon knows about p and correctly distinguishes "unknown" from
// "zero".
func (p Peer) UID(ctx context.Context) (uint32, error) {
	return p.Conn().GetPeerUID(ctx, p.name)
}

// PID returns the PID of the process on the other end of p's
// connection.
//
// Deprecated: use [Peer.Identity], which reports all credentials the
// bus daemon knows about p and correctly distinguishes "unknown" from
// "zero".
func (p Peer) PID(ctx context.Context) (uint32, error) {
	return p.Conn().GetPeerPID(ctx, p.name)
}

// Exists reports whether p's name currently has an owner on the bus.
func (p Peer) Exists(ctx context.Context) (bool, error) {
	return p.Conn().NameHasOwner(ctx, p.name)
}

// QueuedOwners returns the unique connection names waiting in line to
// own p's well-known name, in queue order. The current owner, if any,
// is first.
func (p Peer) QueuedOwners(ctx context.Context) ([]string, error) {
	return p.Conn().ListQueuedOwners(ctx, p.name)
}

func (p Peer) String() string {
	if p.c == nil {
		return "<no peer>"
	}
	return p.name
}

func (p Peer) Object(path ObjectPath) Object {
	return Object{
		p:    p,
		path: path,
	}
}
