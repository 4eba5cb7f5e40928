package relay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/btrelay/internal/logger"
)

const defaultUDCPollInterval = 500 * time.Millisecond

// udcConfigured is the kernel's state string for a gadget whose host has
// completed enumeration. Anything else (including a missing or unreadable
// state file) means the cable is effectively detached.
const udcConfigured = "configured"

// UDCMonitor polls the USB device controller's sysfs state and drives the
// cable cause of the shared pause signal.
type UDCMonitor struct {
	statePath string
	interval  time.Duration
	signal    *PauseSignal
}

// NewUDCMonitor builds a monitor for the given state file. An empty path
// auto-detects the first controller under /sys/class/udc.
func NewUDCMonitor(statePath string, interval time.Duration, signal *PauseSignal) (*UDCMonitor, error) {
	if statePath == "" {
		detected, err := detectUDCState()
		if err != nil {
			return nil, err
		}
		statePath = detected
	}
	if interval <= 0 {
		interval = defaultUDCPollInterval
	}
	return &UDCMonitor{statePath: statePath, interval: interval, signal: signal}, nil
}

func detectUDCState() (string, error) {
	matches, err := filepath.Glob("/sys/class/udc/*/state")
	if err != nil {
		return "", fmt.Errorf("scanning /sys/class/udc: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no USB device controller found under /sys/class/udc")
	}
	if len(matches) > 1 {
		logger.Warnf("Multiple USB device controllers found, monitoring %s", matches[0])
	}
	return matches[0], nil
}

// Run polls until the context is cancelled. The first poll happens
// immediately so relays never start against an unplugged cable.
func (m *UDCMonitor) Run(ctx context.Context) {
	logger.Infof("Monitoring USB link state at %s every %s", m.statePath, m.interval)

	attached := m.attached()
	m.signal.SetCableDetached(!attached)
	m.logTransition(attached)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := m.attached()
			if now == attached {
				continue
			}
			attached = now
			m.signal.SetCableDetached(!attached)
			m.logTransition(attached)
		}
	}
}

func (m *UDCMonitor) attached() bool {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == udcConfigured
}

func (m *UDCMonitor) logTransition(attached bool) {
	if attached {
		logger.Info("USB host attached, relaying active")
	} else {
		logger.Info("USB host detached, relaying paused")
	}
}
