package bluez

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

// discoveryPollInterval bounds each wait inside the session loop so the
// duration check runs even when the bus is silent.
const discoveryPollInterval = 100 * time.Millisecond

// discoveryEventKind classifies a raw signal for the session loop.
type discoveryEventKind int

const (
	eventIgnored discoveryEventKind = iota
	// eventDiscoveryStopped: the adapter itself reported Discovering=false.
	// That is a normal terminal state (another client may have stopped the
	// scan), not an error.
	eventDiscoveryStopped
	// eventDeviceAdded: a device interface appeared at event.path.
	eventDeviceAdded
)

type discoveryEvent struct {
	kind discoveryEventKind
	path dbus.ObjectPath
}

// RunDiscoverySession starts discovery on the adapter and blocks, invoking
// onDeviceFound for every new device that appears under this adapter, until
// one of: the adapter reports Discovering=false, the duration bound elapses
// (0 means unbounded), or ctx is canceled. On the latter two the session
// issues StopDiscovery itself.
//
// The session owns two signal match rules for its whole lifetime and removes
// them on every exit path, including subscribe/start failures. The filters
// match all BlueZ signals on the connection, so devices signaled under a
// different adapter are classified and dropped here rather than delivered.
func (a *Adapter) RunDiscoverySession(ctx context.Context, duration time.Duration, onDeviceFound func(*Device)) (sessionErr error) {
	filterAdded := fmt.Sprintf("type='signal',sender='%s',interface='%s',member='InterfacesAdded'",
		serviceName, objectManagerInterface)
	filterChanged := fmt.Sprintf("type='signal',sender='%s',interface='%s',member='PropertiesChanged'",
		serviceName, propertiesInterface)

	if err := addMatch(a.conn, filterAdded); err != nil {
		return fmt.Errorf("AddMatch: %w", err)
	}
	if err := addMatch(a.conn, filterChanged); err != nil {
		if rerr := removeMatch(a.conn, filterAdded); rerr != nil {
			log.WithError(rerr).Warn("removing InterfacesAdded match after failed subscribe")
		}
		return fmt.Errorf("AddMatch: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	a.conn.Signal(signals)

	log.WithField("adapter", a.path).Debug("discovery session subscribed")

	// From here on every return path must run the deferred cleanup; the
	// first session error wins over any unregistration error.
	defer func() {
		a.conn.RemoveSignal(signals)
		for _, rule := range []string{filterAdded, filterChanged} {
			if err := removeMatch(a.conn, rule); err != nil {
				log.WithError(err).Warn("removing discovery match rule")
				if sessionErr == nil {
					sessionErr = fmt.Errorf("RemoveMatch: %w", err)
				}
			}
		}
		log.WithField("adapter", a.path).Debug("discovery session unsubscribed")
	}()

	if err := a.StartDiscovery(); err != nil {
		sessionErr = err
		return sessionErr
	}

	start := time.Now()
	poll := time.NewTicker(discoveryPollInterval)
	defer poll.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			if err := a.StopDiscovery(); err != nil {
				log.WithError(err).Warn("stopping discovery on cancellation")
			}
			sessionErr = ctx.Err()
			break loop

		case sig := <-signals:
			switch ev := a.classifyDiscoverySignal(sig); ev.kind {
			case eventDiscoveryStopped:
				log.WithField("adapter", a.path).Debug("adapter stopped discovering")
				break loop
			case eventDeviceAdded:
				device := NewDevice(a.conn, ev.path)
				if device.AdapterObjectPath() == a.path {
					log.WithField("device", ev.path).Debug("device found")
					onDeviceFound(device)
				}
			}

		case <-poll.C:
		}

		if duration > 0 && time.Since(start) >= duration {
			log.WithField("adapter", a.path).Debug("discovery duration elapsed")
			if err := a.StopDiscovery(); err != nil {
				sessionErr = err
			}
			break loop
		}
	}

	return sessionErr
}

// classifyDiscoverySignal maps a raw signal to a session event. Everything
// that is not a Discovering=false flip on this adapter or a device appearing
// somewhere in the tree is ignored.
func (a *Adapter) classifyDiscoverySignal(sig *dbus.Signal) discoveryEvent {
	if sig == nil {
		return discoveryEvent{kind: eventIgnored}
	}

	switch sig.Name {
	case propertiesInterface + ".PropertiesChanged":
		if sig.Path != a.path || len(sig.Body) < 2 {
			break
		}
		iface, ok := sig.Body[0].(string)
		if !ok || iface != AdapterInterface {
			break
		}
		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			break
		}
		if v, ok := changed["Discovering"]; ok {
			if discovering, ok := decode[bool](v); ok && !discovering {
				return discoveryEvent{kind: eventDiscoveryStopped}
			}
		}

	case objectManagerInterface + ".InterfacesAdded":
		if len(sig.Body) < 2 {
			break
		}
		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok {
			break
		}
		ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			break
		}
		if _, ok := ifaces[DeviceInterface]; ok {
			return discoveryEvent{kind: eventDeviceAdded, path: path}
		}
	}

	return discoveryEvent{kind: eventIgnored}
}
