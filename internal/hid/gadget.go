package hid

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/bnema/btrelay/internal/hidmap"
	"github.com/bnema/btrelay/internal/logger"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

const (
	writeAttempts = 3
	writeBackoff  = 100 * time.Millisecond

	// Boot keyboard reports carry at most six concurrently pressed
	// non-modifier keys.
	keySlots = 6
)

// GadgetSink writes HID reports to the character devices exposed by a
// configfs USB gadget (keyboard, mouse and consumer-control functions).
//
// Report layouts:
//
//	keyboard  8 bytes: modifier bitmask, reserved, six key usages
//	mouse     4 bytes: button bitmask, dx, dy, wheel
//	consumer  2 bytes: usage ID, little endian (0 = released)
type GadgetSink struct {
	keyboard *gadgetEndpoint
	mouse    *gadgetEndpoint
	consumer *gadgetEndpoint

	// Pressed state, guarded by the owning endpoint's lock.
	modifiers uint8
	keys      [keySlots]uint8
	buttons   uint8
	usage     uint16
}

type gadgetEndpoint struct {
	mu   sync.Mutex
	w    io.WriteCloser
	name string
}

// NewGadgetSink opens the three gadget endpoints. Endpoints are opened
// non-blocking so that a busy or unconfigured endpoint surfaces as EAGAIN
// on write (a transient failure) instead of hanging a relay.
func NewGadgetSink(keyboardPath, mousePath, consumerPath string) (*GadgetSink, error) {
	open := func(path, name string) (*gadgetEndpoint, error) {
		f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
		if err != nil {
			return nil, fmt.Errorf("opening %s endpoint %s: %w", name, path, err)
		}
		return &gadgetEndpoint{w: f, name: name}, nil
	}

	kb, err := open(keyboardPath, "keyboard")
	if err != nil {
		return nil, err
	}
	mouse, err := open(mousePath, "mouse")
	if err != nil {
		kb.w.Close()
		return nil, err
	}
	consumer, err := open(consumerPath, "consumer")
	if err != nil {
		kb.w.Close()
		mouse.w.Close()
		return nil, err
	}

	logger.Debugf("Gadget endpoints opened: keyboard=%s mouse=%s consumer=%s",
		keyboardPath, mousePath, consumerPath)
	return &GadgetSink{keyboard: kb, mouse: mouse, consumer: consumer}, nil
}

// newGadgetSinkFromWriters wires arbitrary writers in place of the hidg
// devices. Used by tests.
func newGadgetSinkFromWriters(keyboard, mouse, consumer io.WriteCloser) *GadgetSink {
	return &GadgetSink{
		keyboard: &gadgetEndpoint{w: keyboard, name: "keyboard"},
		mouse:    &gadgetEndpoint{w: mouse, name: "mouse"},
		consumer: &gadgetEndpoint{w: consumer, name: "consumer"},
	}
}

// Write delivers one translated report to the matching endpoint.
func (s *GadgetSink) Write(rep hidmap.Report) error {
	switch rep.Category {
	case hidmap.Keyboard:
		return s.writeKey(rep)
	case hidmap.Consumer:
		return s.writeConsumer(rep)
	case hidmap.Mouse:
		return s.writeMouse(rep)
	}
	return fmt.Errorf("unsupported report category %v", rep.Category)
}

func (s *GadgetSink) writeKey(rep hidmap.Report) error {
	s.keyboard.mu.Lock()
	defer s.keyboard.mu.Unlock()

	if hidmap.IsModifierUsage(rep.Usage) {
		bit := uint8(1) << (rep.Usage - hidmap.ModifierUsageFirst)
		if rep.Press {
			s.modifiers |= bit
		} else {
			s.modifiers &^= bit
		}
	} else if rep.Press {
		if !s.addKey(uint8(rep.Usage)) {
			logger.Warnf("Keyboard rollover exceeded, dropping usage 0x%02X", rep.Usage)
			return nil
		}
	} else {
		s.removeKey(uint8(rep.Usage))
	}

	return s.keyboard.write(s.keyboardReport())
}

func (s *GadgetSink) writeConsumer(rep hidmap.Report) error {
	s.consumer.mu.Lock()
	defer s.consumer.mu.Unlock()

	if rep.Press {
		s.usage = rep.Usage
	} else {
		// A release for a usage other than the active one is stale
		// (another relay already replaced it); still report idle.
		s.usage = 0
	}
	return s.consumer.write([]byte{byte(s.usage), byte(s.usage >> 8)})
}

func (s *GadgetSink) writeMouse(rep hidmap.Report) error {
	s.mouse.mu.Lock()
	defer s.mouse.mu.Unlock()

	if !rep.Motion {
		bit := uint8(rep.Usage)
		if rep.Press {
			s.buttons |= bit
		} else {
			s.buttons &^= bit
		}
		return s.mouse.write([]byte{s.buttons, 0, 0, 0})
	}
	return s.mouse.write([]byte{
		s.buttons,
		byte(clampDelta(rep.DX)),
		byte(clampDelta(rep.DY)),
		byte(clampDelta(rep.Wheel)),
	})
}

// ReleaseAll resets every endpoint to its idle report.
func (s *GadgetSink) ReleaseAll() error {
	var err error

	s.keyboard.mu.Lock()
	s.modifiers = 0
	s.keys = [keySlots]uint8{}
	err = multierr.Append(err, s.keyboard.write(s.keyboardReport()))
	s.keyboard.mu.Unlock()

	s.mouse.mu.Lock()
	s.buttons = 0
	err = multierr.Append(err, s.mouse.write([]byte{0, 0, 0, 0}))
	s.mouse.mu.Unlock()

	s.consumer.mu.Lock()
	s.usage = 0
	err = multierr.Append(err, s.consumer.write([]byte{0, 0}))
	s.consumer.mu.Unlock()

	return err
}

// Close closes the three endpoints.
func (s *GadgetSink) Close() error {
	return multierr.Combine(
		s.keyboard.w.Close(),
		s.mouse.w.Close(),
		s.consumer.w.Close(),
	)
}

// keyboardReport builds the 8-byte boot report from current state. Caller
// holds the keyboard endpoint lock.
func (s *GadgetSink) keyboardReport() []byte {
	rep := make([]byte, 8)
	rep[0] = s.modifiers
	copy(rep[2:], s.keys[:])
	return rep
}

func (s *GadgetSink) addKey(usage uint8) bool {
	for _, k := range s.keys {
		if k == usage {
			return true
		}
	}
	for i, k := range s.keys {
		if k == 0 {
			s.keys[i] = usage
			return true
		}
	}
	return false
}

func (s *GadgetSink) removeKey(usage uint8) {
	for i, k := range s.keys {
		if k == usage {
			s.keys[i] = 0
		}
	}
}

// write sends a report, retrying transient failures. The retry loop is
// deliberately not cancellable: it bounds itself at three attempts and a
// relay must never observe a half-written report. Caller holds the
// endpoint lock.
func (e *gadgetEndpoint) write(rep []byte) error {
	var err error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		_, err = e.w.Write(rep)
		if err == nil {
			if attempt > 1 {
				logger.Debugf("%s endpoint write recovered on attempt %d", e.name, attempt)
			}
			return nil
		}
		if !isTransient(err) {
			break
		}
		if attempt < writeAttempts {
			time.Sleep(writeBackoff)
		}
	}
	return fmt.Errorf("%s endpoint write: %w", e.name, err)
}

// isTransient reports whether a write failure is worth retrying. EAGAIN
// means the endpoint is momentarily busy (host not polling); EPIPE and
// ESHUTDOWN mean the cable is gone and retrying is pointless.
func isTransient(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR)
}
