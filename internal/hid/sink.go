// Package hid owns the output side of the relay: the USB gadget HID
// endpoints (or a local uinput loopback) that translated reports are
// written to.
package hid

import (
	"github.com/bnema/btrelay/internal/hidmap"
)

// Sink accepts translated reports and delivers them downstream. The three
// endpoint categories behind a sink are shared by all device relays;
// implementations serialize writes per endpoint.
type Sink interface {
	// Write delivers a single translated report. Transient delivery
	// failures are retried internally; the returned error means the
	// report was not delivered.
	Write(rep hidmap.Report) error

	// ReleaseAll emits compensating release reports for everything
	// currently pressed on any endpoint, so the downstream host never
	// sees stuck keys or buttons.
	ReleaseAll() error

	Close() error
}

func clampDelta(v int32) int8 {
	if v > 127 {
		return 127
	}
	if v < -127 {
		return -127
	}
	return int8(v)
}
