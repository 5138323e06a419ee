package bluez

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// AgentCapability is the input/output capability an agent announces to the
// BlueZ agent manager; it decides which pairing methods BlueZ will call.
type AgentCapability string

const (
	CapabilityDisplayOnly     AgentCapability = "DisplayOnly"
	CapabilityDisplayYesNo    AgentCapability = "DisplayYesNo"
	CapabilityKeyboardOnly    AgentCapability = "KeyboardOnly"
	CapabilityNoInputNoOutput AgentCapability = "NoInputNoOutput"
	CapabilityKeyboardDisplay AgentCapability = "KeyboardDisplay"
)

// DefaultAgentPath is where the agent object is exported unless the caller
// picks another path.
const DefaultAgentPath = dbus.ObjectPath("/bluectl/agent1")

// Agent handles the interactive half of pairing. Methods that return an
// error should return ErrRejected or ErrCanceled (possibly wrapped); anything
// else is reported to BlueZ as a rejection.
type Agent interface {
	RequestPinCode(device *Device) (string, error)
	DisplayPinCode(device *Device, pincode string) error
	RequestPasskey(device *Device) (uint32, error)
	DisplayPasskey(device *Device, passkey uint32, entered uint16)
	RequestConfirmation(device *Device, passkey uint32) error
	RequestAuthorization(device *Device) error
	AuthorizeService(device *Device, uuid string) error
	Cancel()
	Release()
}

// AgentManager exports one Agent on the shared connection and registers it
// with org.bluez.AgentManager1.
type AgentManager struct {
	conn       Conn
	agent      Agent
	path       dbus.ObjectPath
	capability AgentCapability
}

// NewAgentManager prepares an agent for registration at DefaultAgentPath.
func NewAgentManager(conn Conn, agent Agent, capability AgentCapability) *AgentManager {
	return &AgentManager{conn: conn, agent: agent, path: DefaultAgentPath, capability: capability}
}

// Register exports the agent object and announces it to BlueZ.
func (m *AgentManager) Register() error {
	handler := &agentHandler{conn: m.conn, agent: m.agent}
	if err := m.conn.Export(handler, m.path, AgentInterface); err != nil {
		return fmt.Errorf("export agent: %w", err)
	}
	if err := callMethod(m.conn, agentManagerPath, agentManagerInterface, "RegisterAgent", m.path, string(m.capability)); err != nil {
		// Withdraw the half-registered object so a retry starts clean.
		_ = m.conn.Export(nil, m.path, AgentInterface)
		return err
	}
	log.WithField("path", m.path).Debug("agent registered")
	return nil
}

// RequestDefault asks BlueZ to treat this agent as the system default.
func (m *AgentManager) RequestDefault() error {
	return callMethod(m.conn, agentManagerPath, agentManagerInterface, "RequestDefaultAgent", m.path)
}

// Unregister withdraws the agent from BlueZ and unexports the object.
func (m *AgentManager) Unregister() error {
	err := callMethod(m.conn, agentManagerPath, agentManagerInterface, "UnregisterAgent", m.path)
	if eerr := m.conn.Export(nil, m.path, AgentInterface); eerr != nil && err == nil {
		err = fmt.Errorf("unexport agent: %w", eerr)
	}
	return err
}

// agentHandler adapts Agent to the D-Bus method signatures BlueZ calls.
// Exported methods must return *dbus.Error, so each one funnels the Agent's
// result through agentError.
type agentHandler struct {
	conn  Conn
	agent Agent
}

var (
	errNameRejected = "org.bluez.Error.Rejected"
	errNameCanceled = "org.bluez.Error.Canceled"
)

func agentError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCanceled) {
		return dbus.NewError(errNameCanceled, nil)
	}
	return dbus.NewError(errNameRejected, nil)
}

func (h *agentHandler) RequestPinCode(device dbus.ObjectPath) (string, *dbus.Error) {
	pincode, err := h.agent.RequestPinCode(NewDevice(h.conn, device))
	if err != nil {
		return "", agentError(err)
	}
	return pincode, nil
}

func (h *agentHandler) DisplayPinCode(device dbus.ObjectPath, pincode string) *dbus.Error {
	return agentError(h.agent.DisplayPinCode(NewDevice(h.conn, device), pincode))
}

func (h *agentHandler) RequestPasskey(device dbus.ObjectPath) (uint32, *dbus.Error) {
	passkey, err := h.agent.RequestPasskey(NewDevice(h.conn, device))
	if err != nil {
		return 0, agentError(err)
	}
	return passkey, nil
}

func (h *agentHandler) DisplayPasskey(device dbus.ObjectPath, passkey uint32, entered uint16) *dbus.Error {
	h.agent.DisplayPasskey(NewDevice(h.conn, device), passkey, entered)
	return nil
}

func (h *agentHandler) RequestConfirmation(device dbus.ObjectPath, passkey uint32) *dbus.Error {
	return agentError(h.agent.RequestConfirmation(NewDevice(h.conn, device), passkey))
}

func (h *agentHandler) RequestAuthorization(device dbus.ObjectPath) *dbus.Error {
	return agentError(h.agent.RequestAuthorization(NewDevice(h.conn, device)))
}

func (h *agentHandler) AuthorizeService(device dbus.ObjectPath, uuid string) *dbus.Error {
	return agentError(h.agent.AuthorizeService(NewDevice(h.conn, device), uuid))
}

func (h *agentHandler) Cancel() *dbus.Error {
	h.agent.Cancel()
	return nil
}

func (h *agentHandler) Release() *dbus.Error {
	h.agent.Release()
	return nil
}
