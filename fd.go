package dbus

import (
	"context"
	"reflect"

	"github.com/copperline/dbus/fragments"
)

// FileDescriptor is the DBus UNIX_FD basic type ('h').
//
// On the wire, a FileDescriptor is a uint32 index into the array of
// file descriptors attached out-of-band to the message via
// SCM_RIGHTS. This package speaks only to AF_UNIX byte streams and
// never attaches or receives ancillary file descriptors, so a
// FileDescriptor here is just the bare index: marshaling and
// unmarshaling round-trip the index value without resolving it to an
// actual descriptor.
type FileDescriptor uint32

var fdSignature = mkSignature(reflect.TypeFor[FileDescriptor](), "h")

// Fd returns the raw index carried by fd, in the same style as
// [os.File.Fd]. Since this package never resolves the index to an
// actual descriptor, the returned value is only meaningful to code
// that has separately received the corresponding SCM_RIGHTS payload.
func (fd FileDescriptor) Fd() uintptr { return uintptr(fd) }

func (fd FileDescriptor) IsDBusStruct() bool { return false }

func (fd FileDescriptor) SignatureDBus() Signature { return fdSignature }

func (fd FileDescriptor) MarshalDBus(ctx context.Context, e *fragments.Encoder) error {
	e.Uint32(uint32(fd))
	return nil
}

func (fd *FileDescriptor) UnmarshalDBus(ctx context.Context, d *fragments.Decoder) error {
	u, err := d.Uint32()
	if err != nil {
		return err
	}
	*fd = FileDescriptor(u)
	return nil
}
