package input

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/jochenvg/go-udev"

	"github.com/bnema/btrelay/internal/logger"
)

// DeviceChangeType represents the type of device change.
type DeviceChangeType int

const (
	DeviceAdded DeviceChangeType = iota
	DeviceRemoved
)

// DeviceChange represents one hotplug event on an input event node.
type DeviceChange struct {
	Type DeviceChangeType
	Path string // /dev/input/eventN
}

// Monitor watches for input devices appearing and disappearing.
type Monitor interface {
	// Start begins monitoring and invokes callback for every change
	// until the context is cancelled or Stop is called. The callback
	// runs on the monitor's goroutine and must not block.
	Start(ctx context.Context, callback func(DeviceChange)) error
	Stop()
}

// NewMonitor builds the discovery backend. The udev netlink backend is
// the default; it falls back to watching /dev/input with inotify when the
// netlink socket is unavailable (containers, stripped-down systems).
func NewMonitor() Monitor {
	return &udevMonitor{fallback: NewFsnotifyMonitor}
}

// udevMonitor subscribes to kernel uevents for the input subsystem.
type udevMonitor struct {
	cancel   context.CancelFunc
	active   Monitor // non-nil when the fallback took over
	fallback func() Monitor
}

func (m *udevMonitor) Start(ctx context.Context, callback func(DeviceChange)) error {
	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if err := mon.FilterAddMatchSubsystem("input"); err != nil {
		return fmt.Errorf("udev subsystem filter: %w", err)
	}

	ctx, m.cancel = context.WithCancel(ctx)
	ch, err := mon.DeviceChan(ctx)
	if err != nil {
		m.cancel()
		if m.fallback == nil {
			return fmt.Errorf("udev netlink monitor: %w", err)
		}
		logger.Warnf("udev netlink unavailable (%v), falling back to inotify on /dev/input", err)
		m.active = m.fallback()
		return m.active.Start(ctx, callback)
	}

	go func() {
		for d := range ch {
			node := d.Devnode()
			if !strings.HasPrefix(filepath.Base(node), "event") {
				continue
			}
			switch d.Action() {
			case "add":
				callback(DeviceChange{Type: DeviceAdded, Path: node})
			case "remove":
				callback(DeviceChange{Type: DeviceRemoved, Path: node})
			}
		}
	}()

	logger.Debug("Device monitor started on udev netlink")
	return nil
}

func (m *udevMonitor) Stop() {
	if m.active != nil {
		m.active.Stop()
	}
	if m.cancel != nil {
		m.cancel()
	}
}

// fsnotifyMonitor watches /dev/input for event nodes being created and
// removed. Less precise than udev (no subsystem metadata) but works
// anywhere inotify does.
type fsnotifyMonitor struct {
	inputDir string
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
}

// NewFsnotifyMonitor builds the inotify-based discovery backend.
func NewFsnotifyMonitor() Monitor {
	return &fsnotifyMonitor{inputDir: "/dev/input"}
}

func (m *fsnotifyMonitor) Start(ctx context.Context, callback func(DeviceChange)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating inotify watcher: %w", err)
	}
	if err := watcher.Add(m.inputDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", m.inputDir, err)
	}
	m.watcher = watcher
	ctx, m.cancel = context.WithCancel(ctx)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasPrefix(filepath.Base(event.Name), "event") {
					continue
				}
				switch {
				case event.Op.Has(fsnotify.Create):
					callback(DeviceChange{Type: DeviceAdded, Path: event.Name})
				case event.Op.Has(fsnotify.Remove):
					callback(DeviceChange{Type: DeviceRemoved, Path: event.Name})
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("Device watcher error: %v", err)
			}
		}
	}()

	logger.Debugf("Device monitor started with inotify on %s", m.inputDir)
	return nil
}

func (m *fsnotifyMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}
