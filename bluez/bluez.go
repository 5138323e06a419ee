// Package bluez is a client-side control plane for the BlueZ D-Bus service:
// adapter/device enumeration over the object-manager tree, typed property
// snapshots, remote method calls, and a signal-driven discovery session.
//
// The package never opens or closes the bus itself; callers hand it a
// connection (usually dbus.ConnectSystemBus) and keep ownership of it.
package bluez

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

const (
	serviceName = "org.bluez"

	objectManagerInterface = "org.freedesktop.DBus.ObjectManager"
	propertiesInterface    = "org.freedesktop.DBus.Properties"

	// AdapterInterface is the BlueZ adapter interface name.
	AdapterInterface = "org.bluez.Adapter1"
	// DeviceInterface is the BlueZ device interface name.
	DeviceInterface = "org.bluez.Device1"
	// AgentInterface is the BlueZ pairing agent interface name.
	AgentInterface = "org.bluez.Agent1"

	agentManagerInterface = "org.bluez.AgentManager1"
	agentManagerPath      = dbus.ObjectPath("/org/bluez")

	rootPath = dbus.ObjectPath("/")
)

// Per-call deadlines. Property and enumeration traffic answers quickly;
// remote methods like Connect or Pair can legitimately take much longer.
const (
	propertyCallTimeout = 1000 * time.Millisecond
	methodCallTimeout   = 60 * time.Second
)

var log logrus.FieldLogger = logrus.StandardLogger()

// SetLogger replaces the package logger.
func SetLogger(l logrus.FieldLogger) {
	log = l
}

// Conn is the subset of *dbus.Conn this package needs.
type Conn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	BusObject() dbus.BusObject
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	Export(v interface{}, path dbus.ObjectPath, iface string) error
}

var _ Conn = (*dbus.Conn)(nil)

// callMethod invokes a remote method on a BlueZ object and waits for the
// reply, discarding any return values.
func callMethod(conn Conn, path dbus.ObjectPath, iface, method string, args ...any) error {
	ctx, cancel := context.WithTimeout(context.Background(), methodCallTimeout)
	defer cancel()
	call := conn.Object(serviceName, path).CallWithContext(ctx, iface+"."+method, 0, args...)
	if call.Err != nil {
		return fmt.Errorf("%s: %w", method, call.Err)
	}
	return nil
}

// setProperty writes one scalar property. No local validation; BlueZ is the
// authority on what the property accepts.
func setProperty(conn Conn, path dbus.ObjectPath, iface, name string, value any) error {
	ctx, cancel := context.WithTimeout(context.Background(), propertyCallTimeout)
	defer cancel()
	call := conn.Object(serviceName, path).CallWithContext(ctx, propertiesInterface+".Set", 0, iface, name, dbus.MakeVariant(value))
	if call.Err != nil {
		return fmt.Errorf("set %s: %w", name, call.Err)
	}
	return nil
}

// getAllProperties fetches one object's full property dictionary for iface.
func getAllProperties(conn Conn, path dbus.ObjectPath, iface string) (map[string]dbus.Variant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), propertyCallTimeout)
	defer cancel()
	var props map[string]dbus.Variant
	err := conn.Object(serviceName, path).CallWithContext(ctx, propertiesInterface+".GetAll", 0, iface).Store(&props)
	if err != nil {
		return nil, fmt.Errorf("GetAll %s: %w", iface, err)
	}
	return props, nil
}

func addMatch(conn Conn, rule string) error {
	return conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err
}

func removeMatch(conn Conn, rule string) error {
	return conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule).Err
}

// parentObjectPath returns the path with its last segment removed
// (e.g. /org/bluez/hci0/dev_AA -> /org/bluez/hci0).
func parentObjectPath(path dbus.ObjectPath) dbus.ObjectPath {
	s := string(path)
	i := strings.LastIndex(s, "/")
	if i <= 0 {
		return rootPath
	}
	return dbus.ObjectPath(s[:i])
}

// AddrFromPath extracts the MAC address from a device object path
// (…/dev_AA_BB_CC_DD_EE_FF -> AA:BB:CC:DD:EE:FF). Empty if the path does not
// name a device.
func AddrFromPath(path dbus.ObjectPath) string {
	s := string(path)
	i := strings.LastIndex(s, "/")
	if i < 0 {
		return ""
	}
	s = s[i+1:]
	if !strings.HasPrefix(s, "dev_") {
		return ""
	}
	return strings.ReplaceAll(s[4:], "_", ":")
}

// PathFromAddr converts a MAC address to the device object path under the
// given adapter (AA:BB:CC:DD:EE:FF -> <adapter>/dev_AA_BB_CC_DD_EE_FF).
func PathFromAddr(adapterPath dbus.ObjectPath, addr string) dbus.ObjectPath {
	s := strings.ReplaceAll(strings.ToUpper(addr), ":", "_")
	return dbus.ObjectPath(string(adapterPath) + "/dev_" + s)
}
