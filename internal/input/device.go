package input

import (
	"fmt"
	"strings"

	evdev "github.com/holoplot/go-evdev"

	"github.com/bnema/btrelay/internal/logger"
)

// DeviceInfo describes an event node without holding it open.
type DeviceInfo struct {
	Path string
	Name string
	Uniq string // hardware address for Bluetooth devices, often empty otherwise

	Keys     bool // emits EV_KEY events
	Relative bool // emits EV_REL events
}

// Device is an open evdev event node. ReadOne blocks until an event
// arrives; Close from another goroutine unblocks it.
type Device interface {
	Path() string
	Name() string
	Uniq() string
	ReadOne() (*evdev.InputEvent, error)
	Grab() error
	Ungrab() error
	Close() error
}

type evdevDevice struct {
	dev  *evdev.InputDevice
	path string
	name string
	uniq string
}

// Open opens an event node for relaying. Name and hardware address are
// read once at open; kernels leave both unset for some virtual devices,
// which is fine.
func Open(path string) (Device, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input device %s: %w", path, err)
	}
	name, err := dev.Name()
	if err != nil {
		name = ""
	}
	uniq, err := dev.UniqueID()
	if err != nil {
		uniq = ""
	}
	return &evdevDevice{dev: dev, path: path, name: name, uniq: uniq}, nil
}

func (d *evdevDevice) Path() string { return d.path }
func (d *evdevDevice) Name() string { return d.name }
func (d *evdevDevice) Uniq() string { return d.uniq }

func (d *evdevDevice) ReadOne() (*evdev.InputEvent, error) { return d.dev.ReadOne() }

func (d *evdevDevice) Grab() error   { return d.dev.Grab() }
func (d *evdevDevice) Ungrab() error { return d.dev.Ungrab() }
func (d *evdevDevice) Close() error  { return d.dev.Close() }

// Describe inspects a single event node.
func Describe(path string) (DeviceInfo, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("opening input device %s: %w", path, err)
	}
	defer dev.Close()

	info := DeviceInfo{Path: path}
	if name, err := dev.Name(); err == nil {
		info.Name = name
	}
	if uniq, err := dev.UniqueID(); err == nil {
		info.Uniq = uniq
	}
	for _, t := range dev.CapableTypes() {
		switch t {
		case evdev.EV_KEY:
			info.Keys = true
		case evdev.EV_REL:
			info.Relative = true
		}
	}
	return info, nil
}

// ListDevices enumerates all event nodes, skipping devices whose name
// starts with one of the given prefixes (HDMI CEC pseudo-keyboards and
// the like). Nodes that cannot be opened are logged and skipped rather
// than failing the whole scan.
func ListDevices(skipNamePrefixes []string) ([]DeviceInfo, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("listing input devices: %w", err)
	}

	infos := make([]DeviceInfo, 0, len(paths))
	for _, p := range paths {
		info, err := Describe(p.Path)
		if err != nil {
			logger.Debugf("Skipping unreadable device %s: %v", p.Path, err)
			continue
		}
		if SkippedByName(info.Name, skipNamePrefixes) {
			logger.Debugf("Skipping device %s (%s): name prefix excluded", info.Name, info.Path)
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// SkippedByName reports whether a device name starts with one of the
// configured skip prefixes.
func SkippedByName(name string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
