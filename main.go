// Command bluectl is a small demonstration client: it picks a BlueZ adapter,
// prints its property snapshot, and runs a bounded discovery session that
// logs every device found under that adapter.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"bluectl/bluez"
)

func main() {
	adapterHint := flag.String("adapter", "", "adapter address, alias, or name (default: first adapter)")
	duration := flag.Duration("duration", 10*time.Second, "discovery duration (0 = run until the adapter stops)")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	log := logrus.StandardLogger()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	bluez.SetLogger(log)

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		log.WithError(err).Fatal("connecting to system bus")
	}
	defer conn.Close()

	adapter, err := bluez.FindAdapter(conn, *adapterHint)
	if err != nil {
		log.WithError(err).Fatal("looking up adapter")
	}
	if adapter == nil {
		log.WithField("adapter", *adapterHint).Fatal("no matching adapter")
	}

	props, err := adapter.GetProperties()
	if err != nil {
		log.WithError(err).Fatal("reading adapter properties")
	}
	log.WithFields(logrus.Fields{
		"path":        adapter.ObjectPath(),
		"address":     props.Address,
		"alias":       props.Alias,
		"powered":     props.Powered,
		"discovering": props.Discovering,
	}).Info("using adapter")

	if !props.Powered {
		if err := adapter.SetPowered(true); err != nil {
			log.WithError(err).Fatal("powering on adapter")
		}
	}

	err = adapter.RunDiscoverySession(context.Background(), *duration, func(dev *bluez.Device) {
		entry := log.WithField("path", dev.ObjectPath())
		p, err := dev.GetProperties()
		if err != nil {
			entry.WithError(err).Warn("reading device properties")
			return
		}
		fields := logrus.Fields{"address": p.Address, "alias": p.Alias}
		if p.RSSI != nil {
			fields["rssi"] = *p.RSSI
		}
		entry.WithFields(fields).Info("device found")
	})
	if err != nil {
		log.WithError(err).Fatal("discovery session")
	}
}
