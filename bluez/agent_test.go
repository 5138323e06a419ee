package bluez

import (
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingAgent answers every callback with canned values and remembers the
// device paths it was asked about.
type recordingAgent struct {
	pincode    string
	passkey    uint32
	err        error
	asked      []dbus.ObjectPath
	canceled   bool
	released   bool
	authorized []string
}

func (a *recordingAgent) RequestPinCode(d *Device) (string, error) {
	a.asked = append(a.asked, d.ObjectPath())
	return a.pincode, a.err
}

func (a *recordingAgent) DisplayPinCode(d *Device, pincode string) error {
	a.asked = append(a.asked, d.ObjectPath())
	return a.err
}

func (a *recordingAgent) RequestPasskey(d *Device) (uint32, error) {
	a.asked = append(a.asked, d.ObjectPath())
	return a.passkey, a.err
}

func (a *recordingAgent) DisplayPasskey(d *Device, passkey uint32, entered uint16) {
	a.asked = append(a.asked, d.ObjectPath())
}

func (a *recordingAgent) RequestConfirmation(d *Device, passkey uint32) error {
	a.asked = append(a.asked, d.ObjectPath())
	return a.err
}

func (a *recordingAgent) RequestAuthorization(d *Device) error {
	a.asked = append(a.asked, d.ObjectPath())
	return a.err
}

func (a *recordingAgent) AuthorizeService(d *Device, uuid string) error {
	a.authorized = append(a.authorized, uuid)
	return a.err
}

func (a *recordingAgent) Cancel()  { a.canceled = true }
func (a *recordingAgent) Release() { a.released = true }

func TestAgentManagerRegisterAndUnregister(t *testing.T) {
	conn := newFakeConn()
	m := NewAgentManager(conn, &recordingAgent{}, CapabilityKeyboardDisplay)

	require.NoError(t, m.Register())
	assert.Contains(t, conn.exports, DefaultAgentPath)
	assert.Equal(t, 1, conn.callCount(agentManagerInterface+".RegisterAgent"))

	require.NoError(t, m.RequestDefault())
	assert.Equal(t, 1, conn.callCount(agentManagerInterface+".RequestDefaultAgent"))

	require.NoError(t, m.Unregister())
	assert.Equal(t, 1, conn.callCount(agentManagerInterface+".UnregisterAgent"))
	assert.NotContains(t, conn.exports, DefaultAgentPath)
}

func TestAgentManagerRegisterFailureUnexports(t *testing.T) {
	conn := newFakeConn()
	conn.failMethods[agentManagerInterface+".RegisterAgent"] = dbus.ErrMsgNoObject
	m := NewAgentManager(conn, &recordingAgent{}, CapabilityNoInputNoOutput)

	require.Error(t, m.Register())
	assert.NotContains(t, conn.exports, DefaultAgentPath)
}

func TestAgentHandlerForwardsResults(t *testing.T) {
	conn := newFakeConn()
	agent := &recordingAgent{pincode: "0000", passkey: 123456}
	h := &agentHandler{conn: conn, agent: agent}

	pincode, derr := h.RequestPinCode(testDevicePath)
	require.Nil(t, derr)
	assert.Equal(t, "0000", pincode)

	passkey, derr := h.RequestPasskey(testDevicePath)
	require.Nil(t, derr)
	assert.Equal(t, uint32(123456), passkey)

	require.Nil(t, h.AuthorizeService(testDevicePath, "0000110b-0000-1000-8000-00805f9b34fb"))
	assert.Equal(t, []string{"0000110b-0000-1000-8000-00805f9b34fb"}, agent.authorized)

	require.Nil(t, h.Cancel())
	require.Nil(t, h.Release())
	assert.True(t, agent.canceled)
	assert.True(t, agent.released)

	// The handler hands the agent a live device handle for the signaled path.
	assert.Contains(t, agent.asked, testDevicePath)
}

func TestAgentErrorMapping(t *testing.T) {
	assert.Nil(t, agentError(nil))

	derr := agentError(ErrCanceled)
	require.NotNil(t, derr)
	assert.Equal(t, "org.bluez.Error.Canceled", derr.Name)

	derr = agentError(fmt.Errorf("user said no: %w", ErrRejected))
	require.NotNil(t, derr)
	assert.Equal(t, "org.bluez.Error.Rejected", derr.Name)

	// Anything else is a rejection as well; only the two BlueZ error
	// names ever cross the bus.
	derr = agentError(fmt.Errorf("boom"))
	require.NotNil(t, derr)
	assert.Equal(t, "org.bluez.Error.Rejected", derr.Name)
}

func TestAgentHandlerErrorPropagation(t *testing.T) {
	conn := newFakeConn()
	h := &agentHandler{conn: conn, agent: &recordingAgent{err: ErrCanceled}}

	_, derr := h.RequestPinCode(testDevicePath)
	require.NotNil(t, derr)
	assert.Equal(t, "org.bluez.Error.Canceled", derr.Name)

	derr = h.RequestConfirmation(testDevicePath, 42)
	require.NotNil(t, derr)
	assert.Equal(t, "org.bluez.Error.Canceled", derr.Name)
}
