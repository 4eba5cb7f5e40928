// Package bluez provides read-only diagnostics against the system
// Bluetooth daemon. Pairing and trust stay with bluetoothd; this package
// only answers "which devices does the adapter know, and are they
// connected".
package bluez

import (
	"fmt"

	"github.com/muka/go-bluetooth/api"
	"github.com/muka/go-bluetooth/bluez/profile/adapter"
)

// DeviceStatus is one adapter-known Bluetooth device.
type DeviceStatus struct {
	Address   string
	Name      string
	Connected bool
}

// KnownDevices lists every device the adapter knows about. An empty
// adapterID selects hci0.
func KnownDevices(adapterID string) ([]DeviceStatus, error) {
	if adapterID == "" {
		adapterID = "hci0"
	}

	a, err := adapter.GetAdapter(adapterID)
	if err != nil {
		return nil, fmt.Errorf("getting adapter %s: %w", adapterID, err)
	}
	devices, err := a.GetDevices()
	if err != nil {
		return nil, fmt.Errorf("listing devices on %s: %w", adapterID, err)
	}

	statuses := make([]DeviceStatus, 0, len(devices))
	for _, dev := range devices {
		address, err := dev.GetAddress()
		if err != nil {
			continue
		}
		name, err := dev.GetName()
		if err != nil {
			name = ""
		}
		connected, err := dev.GetConnected()
		if err != nil {
			connected = false
		}
		statuses = append(statuses, DeviceStatus{
			Address:   address,
			Name:      name,
			Connected: connected,
		})
	}
	return statuses, nil
}

// Close tears down the shared D-Bus connection. Call once on process
// exit.
func Close() {
	api.Exit()
}

// Connected reports whether the adapter currently holds a connection to
// the given hardware address.
func Connected(adapterID, address string) (bool, error) {
	statuses, err := KnownDevices(adapterID)
	if err != nil {
		return false, err
	}
	for _, s := range statuses {
		if s.Address == address && s.Connected {
			return true, nil
		}
	}
	return false, nil
}
