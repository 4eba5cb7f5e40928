package hid

import (
	"fmt"
	"sync"

	"github.com/ThomasT75/uinput"
	"github.com/bnema/btrelay/internal/hidmap"
	"github.com/bnema/btrelay/internal/logger"
	evdev "github.com/holoplot/go-evdev"
	"go.uber.org/multierr"
)

// UinputSink injects relayed events back into the local kernel through
// virtual uinput devices. It exists for testing a relay setup on machines
// without gadget hardware (sink = "uinput").
type UinputSink struct {
	mu       sync.Mutex
	keyboard uinput.Keyboard
	mouse    uinput.Mouse
	pressed  map[evdev.EvCode]struct{}
}

// NewUinputSink creates the virtual keyboard and mouse devices.
func NewUinputSink() (*UinputSink, error) {
	keyboard, err := uinput.CreateKeyboard("/dev/uinput", []byte("btrelay loopback keyboard"))
	if err != nil {
		return nil, fmt.Errorf("creating loopback keyboard: %w", err)
	}
	mouse, err := uinput.CreateMouse("/dev/uinput", []byte("btrelay loopback mouse"))
	if err != nil {
		keyboard.Close()
		return nil, fmt.Errorf("creating loopback mouse: %w", err)
	}
	return &UinputSink{
		keyboard: keyboard,
		mouse:    mouse,
		pressed:  make(map[evdev.EvCode]struct{}),
	}, nil
}

// Write injects one translated report. Consumer-control usages have no
// uinput equivalent on the virtual keyboard and are dropped with a debug
// log; the relay treats that as a delivered report.
func (s *UinputSink) Write(rep hidmap.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch rep.Category {
	case hidmap.Keyboard:
		return s.writeKey(rep)
	case hidmap.Consumer:
		logger.Debugf("Loopback sink has no consumer endpoint, dropping usage 0x%03X", rep.Usage)
		return nil
	case hidmap.Mouse:
		return s.writeMouse(rep)
	}
	return fmt.Errorf("unsupported report category %v", rep.Category)
}

func (s *UinputSink) writeKey(rep hidmap.Report) error {
	if rep.Press {
		if err := s.keyboard.KeyDown(int(rep.Code)); err != nil {
			return fmt.Errorf("loopback key down %d: %w", rep.Code, err)
		}
		s.pressed[rep.Code] = struct{}{}
		return nil
	}
	if err := s.keyboard.KeyUp(int(rep.Code)); err != nil {
		return fmt.Errorf("loopback key up %d: %w", rep.Code, err)
	}
	delete(s.pressed, rep.Code)
	return nil
}

func (s *UinputSink) writeMouse(rep hidmap.Report) error {
	if rep.Motion {
		if rep.DX != 0 || rep.DY != 0 {
			if err := s.mouse.Move(rep.DX, rep.DY); err != nil {
				return fmt.Errorf("loopback mouse move: %w", err)
			}
		}
		if rep.Wheel != 0 {
			if err := s.mouse.Wheel(false, rep.Wheel); err != nil {
				return fmt.Errorf("loopback mouse wheel: %w", err)
			}
		}
		return nil
	}

	var err error
	switch rep.Code {
	case evdev.BTN_LEFT:
		if rep.Press {
			err = s.mouse.LeftPress()
		} else {
			err = s.mouse.LeftRelease()
		}
	case evdev.BTN_RIGHT:
		if rep.Press {
			err = s.mouse.RightPress()
		} else {
			err = s.mouse.RightRelease()
		}
	case evdev.BTN_MIDDLE:
		if rep.Press {
			err = s.mouse.MiddlePress()
		} else {
			err = s.mouse.MiddleRelease()
		}
	default:
		logger.Debugf("Loopback sink does not support button %d, dropping", rep.Code)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loopback button %d: %w", rep.Code, err)
	}
	return nil
}

// ReleaseAll lifts every key this sink pressed.
func (s *UinputSink) ReleaseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for code := range s.pressed {
		err = multierr.Append(err, s.keyboard.KeyUp(int(code)))
		delete(s.pressed, code)
	}
	err = multierr.Append(err, s.mouse.LeftRelease())
	err = multierr.Append(err, s.mouse.RightRelease())
	err = multierr.Append(err, s.mouse.MiddleRelease())
	return err
}

// Close destroys the virtual devices.
func (s *UinputSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return multierr.Combine(s.keyboard.Close(), s.mouse.Close())
}
