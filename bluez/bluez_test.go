package bluez

import (
	"context"
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

// fakeConn is an in-memory stand-in for *dbus.Conn: it serves a managed
// object tree, applies property writes, records method calls and match
// rules, and lets tests inject signals and failures.
type fakeConn struct {
	mu sync.Mutex

	// objects doubles as the managed-object tree and the per-interface
	// property store served by GetAll.
	objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

	calls          []string // "path method" in arrival order
	addedMatches   []string
	removedMatches []string

	failMethods        map[string]error // full method name -> injected error
	failSecondAddMatch bool

	exports map[dbus.ObjectPath]any

	signalCh chan<- *dbus.Signal

	// onMethod runs after a successful non-bus method call; used to push
	// signals once StartDiscovery lands.
	onMethod func(path dbus.ObjectPath, method string, args []any)
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		objects:     map[dbus.ObjectPath]map[string]map[string]dbus.Variant{},
		failMethods: map[string]error{},
		exports:     map[dbus.ObjectPath]any{},
	}
}

func (c *fakeConn) addObject(path dbus.ObjectPath, iface string, props map[string]dbus.Variant) {
	if c.objects[path] == nil {
		c.objects[path] = map[string]map[string]dbus.Variant{}
	}
	c.objects[path][iface] = props
}

func (c *fakeConn) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	return &fakeObject{conn: c, dest: dest, path: path}
}

func (c *fakeConn) BusObject() dbus.BusObject {
	return &fakeObject{conn: c, dest: "org.freedesktop.DBus", path: "/org/freedesktop/DBus"}
}

func (c *fakeConn) Signal(ch chan<- *dbus.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signalCh = ch
}

func (c *fakeConn) RemoveSignal(ch chan<- *dbus.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signalCh == ch {
		c.signalCh = nil
	}
}

func (c *fakeConn) Export(v interface{}, path dbus.ObjectPath, iface string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v == nil {
		delete(c.exports, path)
	} else {
		c.exports[path] = v
	}
	return nil
}

func (c *fakeConn) emit(sig *dbus.Signal) {
	c.mu.Lock()
	ch := c.signalCh
	c.mu.Unlock()
	if ch != nil {
		ch <- sig
	}
}

func (c *fakeConn) dispatch(path dbus.ObjectPath, method string, args []any) *dbus.Call {
	c.mu.Lock()
	c.calls = append(c.calls, string(path)+" "+method)

	if err, ok := c.failMethods[method]; ok {
		c.mu.Unlock()
		return &dbus.Call{Err: err}
	}

	switch method {
	case "org.freedesktop.DBus.AddMatch":
		rule := args[0].(string)
		if c.failSecondAddMatch && len(c.addedMatches) == 1 {
			c.mu.Unlock()
			return &dbus.Call{Err: dbus.ErrMsgNoObject}
		}
		c.addedMatches = append(c.addedMatches, rule)
		c.mu.Unlock()
		return &dbus.Call{}

	case "org.freedesktop.DBus.RemoveMatch":
		c.removedMatches = append(c.removedMatches, args[0].(string))
		c.mu.Unlock()
		return &dbus.Call{}

	case objectManagerInterface + ".GetManagedObjects":
		c.mu.Unlock()
		return &dbus.Call{Body: []any{c.objects}}

	case propertiesInterface + ".GetAll":
		iface := args[0].(string)
		props, ok := c.objects[path][iface]
		c.mu.Unlock()
		if !ok {
			return &dbus.Call{Err: dbus.ErrMsgNoObject}
		}
		return &dbus.Call{Body: []any{props}}

	case propertiesInterface + ".Set":
		iface := args[0].(string)
		name := args[1].(string)
		value := args[2].(dbus.Variant)
		if props, ok := c.objects[path][iface]; ok {
			props[name] = value
		}
		c.mu.Unlock()
		return &dbus.Call{}
	}

	hook := c.onMethod
	c.mu.Unlock()
	if hook != nil {
		hook(path, method, args)
	}
	return &dbus.Call{}
}

func (c *fakeConn) callCount(suffix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if len(call) >= len(suffix) && call[len(call)-len(suffix):] == suffix {
			n++
		}
	}
	return n
}

type fakeObject struct {
	conn *fakeConn
	dest string
	path dbus.ObjectPath
}

func (o *fakeObject) Call(method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	return o.conn.dispatch(o.path, method, args)
}

func (o *fakeObject) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	return o.conn.dispatch(o.path, method, args)
}

func (o *fakeObject) Go(method string, flags dbus.Flags, ch chan *dbus.Call, args ...interface{}) *dbus.Call {
	panic("not used")
}

func (o *fakeObject) GoWithContext(ctx context.Context, method string, flags dbus.Flags, ch chan *dbus.Call, args ...interface{}) *dbus.Call {
	panic("not used")
}

func (o *fakeObject) AddMatchSignal(iface, member string, options ...dbus.MatchOption) *dbus.Call {
	panic("not used")
}

func (o *fakeObject) RemoveMatchSignal(iface, member string, options ...dbus.MatchOption) *dbus.Call {
	panic("not used")
}

func (o *fakeObject) GetProperty(p string) (dbus.Variant, error) {
	panic("not used")
}

func (o *fakeObject) StoreProperty(p string, value interface{}) error {
	panic("not used")
}

func (o *fakeObject) SetProperty(p string, v interface{}) error {
	panic("not used")
}

func (o *fakeObject) Destination() string {
	return o.dest
}

func (o *fakeObject) Path() dbus.ObjectPath {
	return o.path
}

var _ Conn = (*fakeConn)(nil)
var _ dbus.BusObject = (*fakeObject)(nil)

func TestParentObjectPath(t *testing.T) {
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci0"),
		parentObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"))
	assert.Equal(t, dbus.ObjectPath("/org/bluez"), parentObjectPath("/org/bluez/hci0"))
	assert.Equal(t, dbus.ObjectPath("/"), parentObjectPath("/org"))
	assert.Equal(t, dbus.ObjectPath("/"), parentObjectPath("/"))
}

func TestAddrFromPath(t *testing.T) {
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", AddrFromPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"))
	assert.Equal(t, "", AddrFromPath("/org/bluez/hci0"))
	assert.Equal(t, "", AddrFromPath("hci0"))
}

func TestPathFromAddr(t *testing.T) {
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"),
		PathFromAddr("/org/bluez/hci0", "aa:bb:cc:dd:ee:ff"))
}
