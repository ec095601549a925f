package dbus

// Well-known interface names implemented by the bus daemon itself,
// used internally to issue bus-level calls.
const (
	ifaceBus    = "org.freedesktop.DBus"
	ifaceProps  = "org.freedesktop.DBus.Properties"
	ifaceObjMgr = "org.freedesktop.DBus.ObjectManager"
)

// NameOwnerChanged is the signal payload for
// org.freedesktop.DBus.NameOwnerChanged.
type NameOwnerChanged struct {
	Name     string
	OldOwner string
	NewOwner string
}

// NameLost is the signal payload for org.freedesktop.DBus.NameLost.
type NameLost struct {
	Name string
}

// NameAcquired is the signal payload for
// org.freedesktop.DBus.NameAcquired.
type NameAcquired struct {
	Name string
}

// ActivatableServicesChanged is the signal payload for
// org.freedesktop.DBus.ActivatableServicesChanged.
type ActivatableServicesChanged struct{}

// PropertiesChanged is the signal payload for
// org.freedesktop.DBus.Properties.PropertiesChanged.
//
// Most callers don't decode this signal directly: [Watcher] decodes
// changed and invalidated properties itself and delivers one
// [Notification] per property, using the type registered with
// [RegisterPropertyChangeType].
type PropertiesChanged struct {
	Interface         string
	ChangedProperties map[string]Variant
	InvalidatedProps  []string
}

// InterfacesAdded is the signal payload for
// org.freedesktop.DBus.ObjectManager.InterfacesAdded.
type InterfacesAdded struct {
	Object     ObjectPath
	Interfaces map[string]map[string]Variant
}

// InterfacesRemoved is the signal payload for
// org.freedesktop.DBus.ObjectManager.InterfacesRemoved.
type InterfacesRemoved struct {
	Object     ObjectPath
	Interfaces []string
}
