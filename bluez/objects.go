package bluez

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

// managedObjects fetches the full object tree exposed by BlueZ:
// path -> interface -> property -> variant. The tree is rebuilt on every
// call; nothing is cached.
func managedObjects(conn Conn) (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), propertyCallTimeout)
	defer cancel()
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := conn.Object(serviceName, rootPath).CallWithContext(ctx, objectManagerInterface+".GetManagedObjects", 0).Store(&objects)
	if err != nil {
		return nil, fmt.Errorf("GetManagedObjects: %w", err)
	}
	return objects, nil
}

// collectObjects walks the managed-object tree and constructs one T per
// (path, interface) entry that carries iface and sits under root. The root is
// normalized to a trailing separator first, so /org/bluez/hci0 matches only
// objects actually nested under it and not a sibling like /org/bluez/hci00.
// Enumeration never partially succeeds: any transport or shape failure aborts
// it whole. Output order follows the tree and is not specified.
func collectObjects[T any](conn Conn, root dbus.ObjectPath, iface string, construct func(Conn, dbus.ObjectPath) T) ([]T, error) {
	prefix := string(root)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	objects, err := managedObjects(conn)
	if err != nil {
		return nil, err
	}

	var out []T
	for path, ifaces := range objects {
		for name := range ifaces {
			if name == iface && strings.HasPrefix(string(path), prefix) {
				out = append(out, construct(conn, path))
			}
		}
	}
	return out, nil
}
