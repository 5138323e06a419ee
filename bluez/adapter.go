package bluez

import (
	"github.com/godbus/dbus/v5"
)

// Adapter is a handle to one BlueZ adapter object (e.g. /org/bluez/hci0).
// It carries no state beyond the shared connection and the object path, so
// copies are cheap and all refer to the same remote adapter. A handle whose
// remote object has gone away fails its next call with a BlueZ NotFound
// error; it is never invalidated locally.
type Adapter struct {
	conn Conn
	path dbus.ObjectPath
}

// AdapterProperties is a point-in-time snapshot of an adapter's property
// set. Optional fields are nil when BlueZ did not report them.
type AdapterProperties struct {
	Address             string
	Name                string
	Alias               string
	Class               uint32
	Powered             bool
	Discoverable        bool
	DiscoverableTimeout uint32
	Pairable            bool
	PairableTimeout     uint32
	Discovering         bool
	UUIDs               []string
	Modalias            *string
}

// NewAdapter returns a handle for the adapter at path.
func NewAdapter(conn Conn, path dbus.ObjectPath) *Adapter {
	return &Adapter{conn: conn, path: path}
}

// Conn returns the shared bus connection this handle was built on.
func (a *Adapter) Conn() Conn {
	return a.conn
}

// ObjectPath returns the adapter's object path.
func (a *Adapter) ObjectPath() dbus.ObjectPath {
	return a.path
}

// GetProperties queries the adapter's full property set and projects it into
// a typed snapshot. Snapshots are all-or-nothing: a missing or mistyped
// required field fails the whole call.
func (a *Adapter) GetProperties() (*AdapterProperties, error) {
	props, err := getAllProperties(a.conn, a.path, AdapterInterface)
	if err != nil {
		return nil, err
	}
	return newAdapterProperties(props)
}

func (a *Adapter) SetAlias(val string) error {
	return setProperty(a.conn, a.path, AdapterInterface, "Alias", val)
}

func (a *Adapter) SetPowered(val bool) error {
	return setProperty(a.conn, a.path, AdapterInterface, "Powered", val)
}

func (a *Adapter) SetDiscoverable(val bool) error {
	return setProperty(a.conn, a.path, AdapterInterface, "Discoverable", val)
}

func (a *Adapter) SetDiscoverableTimeout(seconds uint32) error {
	return setProperty(a.conn, a.path, AdapterInterface, "DiscoverableTimeout", seconds)
}

func (a *Adapter) SetPairable(val bool) error {
	return setProperty(a.conn, a.path, AdapterInterface, "Pairable", val)
}

func (a *Adapter) SetPairableTimeout(seconds uint32) error {
	return setProperty(a.conn, a.path, AdapterInterface, "PairableTimeout", seconds)
}

// StartDiscovery asks the adapter to begin scanning. Results arrive as
// InterfacesAdded signals; see RunDiscoverySession for the session form.
func (a *Adapter) StartDiscovery() error {
	return callMethod(a.conn, a.path, AdapterInterface, "StartDiscovery")
}

// StopDiscovery ends a scan previously started on this connection.
func (a *Adapter) StopDiscovery() error {
	return callMethod(a.conn, a.path, AdapterInterface, "StopDiscovery")
}

// SetDiscoveryFilter narrows what StartDiscovery reports. transport is one of
// BlueZ's transport names ("auto", "bredr", "le"); uuids, when non-empty,
// limits results to devices advertising one of them.
func (a *Adapter) SetDiscoveryFilter(transport string, uuids []string) error {
	filter := map[string]any{}
	if transport != "" {
		filter["Transport"] = transport
	}
	if len(uuids) > 0 {
		filter["UUIDs"] = uuids
	}
	return callMethod(a.conn, a.path, AdapterInterface, "SetDiscoveryFilter", filter)
}

// RemoveDevice deletes the device object (and its pairing information) from
// this adapter.
func (a *Adapter) RemoveDevice(device *Device) error {
	return callMethod(a.conn, a.path, AdapterInterface, "RemoveDevice", device.ObjectPath())
}

func newAdapterProperties(props map[string]dbus.Variant) (*AdapterProperties, error) {
	var p AdapterProperties
	var err error

	if p.Address, err = requiredProp[string](props, "Address"); err != nil {
		return nil, err
	}
	if p.Name, err = requiredProp[string](props, "Name"); err != nil {
		return nil, err
	}
	if p.Alias, err = requiredProp[string](props, "Alias"); err != nil {
		return nil, err
	}
	if p.Class, err = requiredProp[uint32](props, "Class"); err != nil {
		return nil, err
	}
	if p.Powered, err = requiredProp[bool](props, "Powered"); err != nil {
		return nil, err
	}
	if p.Discoverable, err = requiredProp[bool](props, "Discoverable"); err != nil {
		return nil, err
	}
	if p.DiscoverableTimeout, err = requiredProp[uint32](props, "DiscoverableTimeout"); err != nil {
		return nil, err
	}
	if p.Pairable, err = requiredProp[bool](props, "Pairable"); err != nil {
		return nil, err
	}
	if p.PairableTimeout, err = requiredProp[uint32](props, "PairableTimeout"); err != nil {
		return nil, err
	}
	if p.Discovering, err = requiredProp[bool](props, "Discovering"); err != nil {
		return nil, err
	}
	uuids, ok := props["UUIDs"]
	if !ok {
		return nil, requiredErr("UUIDs")
	}
	if p.UUIDs, err = decodeStrings(uuids); err != nil {
		return nil, err
	}
	p.Modalias = optionalProp[string](props, "Modalias")

	return &p, nil
}

// GetAdapters enumerates every adapter the BlueZ service currently exposes.
func GetAdapters(conn Conn) ([]*Adapter, error) {
	return collectObjects(conn, rootPath, AdapterInterface, NewAdapter)
}

// FindAdapter looks an adapter up by address, alias, or name. An empty hint
// selects the first adapter. A nil, nil return means no adapter matched;
// that is an absent result, not an error.
func FindAdapter(conn Conn, nameOrAddr string) (*Adapter, error) {
	adapters, err := GetAdapters(conn)
	if err != nil {
		return nil, err
	}

	if nameOrAddr == "" {
		if len(adapters) == 0 {
			return nil, nil
		}
		return adapters[0], nil
	}

	for _, adapter := range adapters {
		p, err := adapter.GetProperties()
		if err != nil {
			return nil, err
		}
		if p.Address == nameOrAddr || p.Alias == nameOrAddr || p.Name == nameOrAddr {
			return adapter, nil
		}
	}
	return nil, nil
}
