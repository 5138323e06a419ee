package bluez

import (
	"github.com/godbus/dbus/v5"
)

// Device is a handle to one BlueZ device object, always nested under its
// adapter (e.g. /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF). Like Adapter it is a
// cheap value over the shared connection; stale handles surface a NotFound
// error from BlueZ on their next call.
type Device struct {
	conn Conn
	path dbus.ObjectPath
}

// DeviceProperties is a point-in-time snapshot of a device's property set.
// Devices report far fewer guaranteed fields than adapters: anything pointer-
// typed here is nil when the device did not advertise it, and UUIDs is empty
// rather than nil-checked.
type DeviceProperties struct {
	Address       string
	Name          *string
	Alias         string
	Icon          *string
	Class         *uint32
	Appearance    *uint16
	UUIDs         []string
	Paired        bool
	Connected     bool
	Trusted       bool
	Blocked       bool
	LegacyPairing bool
	Modalias      *string
	RSSI          *int16
}

// NewDevice returns a handle for the device at path.
func NewDevice(conn Conn, path dbus.ObjectPath) *Device {
	return &Device{conn: conn, path: path}
}

// ObjectPath returns the device's object path.
func (d *Device) ObjectPath() dbus.ObjectPath {
	return d.path
}

// AdapterObjectPath derives the owning adapter's path by dropping the last
// path segment.
func (d *Device) AdapterObjectPath() dbus.ObjectPath {
	return parentObjectPath(d.path)
}

// Address extracts the device MAC address from the object path.
func (d *Device) Address() string {
	return AddrFromPath(d.path)
}

// GetProperties queries the device's full property set and projects it into
// a typed snapshot; all-or-nothing, like the adapter variant.
func (d *Device) GetProperties() (*DeviceProperties, error) {
	props, err := getAllProperties(d.conn, d.path, DeviceInterface)
	if err != nil {
		return nil, err
	}
	return newDeviceProperties(props)
}

func (d *Device) SetAlias(val string) error {
	return setProperty(d.conn, d.path, DeviceInterface, "Alias", val)
}

func (d *Device) SetTrusted(val bool) error {
	return setProperty(d.conn, d.path, DeviceInterface, "Trusted", val)
}

func (d *Device) SetBlocked(val bool) error {
	return setProperty(d.conn, d.path, DeviceInterface, "Blocked", val)
}

// Connect establishes the device connection, letting BlueZ pick profiles.
func (d *Device) Connect() error {
	return callMethod(d.conn, d.path, DeviceInterface, "Connect")
}

// Disconnect tears down the device connection.
func (d *Device) Disconnect() error {
	return callMethod(d.conn, d.path, DeviceInterface, "Disconnect")
}

// ConnectProfile connects only the profile identified by uuid.
func (d *Device) ConnectProfile(uuid string) error {
	return callMethod(d.conn, d.path, DeviceInterface, "ConnectProfile", uuid)
}

// DisconnectProfile disconnects only the profile identified by uuid.
func (d *Device) DisconnectProfile(uuid string) error {
	return callMethod(d.conn, d.path, DeviceInterface, "DisconnectProfile", uuid)
}

// Pair initiates pairing. Interactive flows require a registered Agent.
func (d *Device) Pair() error {
	return callMethod(d.conn, d.path, DeviceInterface, "Pair")
}

// CancelPairing aborts an in-flight pairing attempt.
func (d *Device) CancelPairing() error {
	return callMethod(d.conn, d.path, DeviceInterface, "CancelPairing")
}

func newDeviceProperties(props map[string]dbus.Variant) (*DeviceProperties, error) {
	var p DeviceProperties
	var err error

	if p.Address, err = requiredProp[string](props, "Address"); err != nil {
		return nil, err
	}
	if p.Alias, err = requiredProp[string](props, "Alias"); err != nil {
		return nil, err
	}
	if p.Paired, err = requiredProp[bool](props, "Paired"); err != nil {
		return nil, err
	}
	if p.Connected, err = requiredProp[bool](props, "Connected"); err != nil {
		return nil, err
	}
	if p.Trusted, err = requiredProp[bool](props, "Trusted"); err != nil {
		return nil, err
	}
	if p.Blocked, err = requiredProp[bool](props, "Blocked"); err != nil {
		return nil, err
	}
	if p.LegacyPairing, err = requiredProp[bool](props, "LegacyPairing"); err != nil {
		return nil, err
	}

	p.Name = optionalProp[string](props, "Name")
	p.Icon = optionalProp[string](props, "Icon")
	p.Class = optionalProp[uint32](props, "Class")
	p.Appearance = optionalProp[uint16](props, "Appearance")
	p.Modalias = optionalProp[string](props, "Modalias")
	p.RSSI = optionalProp[int16](props, "RSSI")

	// The UUID list may be absent entirely, but once present its elements
	// must all decode; a garbled element fails the snapshot.
	p.UUIDs = []string{}
	if v, ok := props["UUIDs"]; ok {
		if p.UUIDs, err = decodeStrings(v); err != nil {
			return nil, err
		}
	}

	return &p, nil
}

// GetDevices enumerates every device currently known under the adapter.
func GetDevices(adapter *Adapter) ([]*Device, error) {
	return collectObjects(adapter.Conn(), adapter.ObjectPath(), DeviceInterface, NewDevice)
}

// FindDevice looks a device up under the adapter by address, alias, or name.
// A nil, nil return means no device matched.
func FindDevice(adapter *Adapter, nameOrAddr string) (*Device, error) {
	devices, err := GetDevices(adapter)
	if err != nil {
		return nil, err
	}

	for _, device := range devices {
		p, err := device.GetProperties()
		if err != nil {
			return nil, err
		}
		if p.Address == nameOrAddr || p.Alias == nameOrAddr || (p.Name != nil && *p.Name == nameOrAddr) {
			return device, nil
		}
	}
	return nil, nil
}
