// Package relay contains the runtime core: per-device relay tasks, the
// shared pause gate, shortcut recognition, USB link-state monitoring and
// the controller that ties device lifecycles together.
package relay

import "go.uber.org/atomic"

// PauseSignal gates event forwarding for every relay. Two independent
// causes are tracked: a manual toggle (pause hotkey) and the USB cable
// being detached. Relaying is paused while either cause is set; clearing
// one cause never clears the other.
type PauseSignal struct {
	manual atomic.Bool
	cable  atomic.Bool
}

// Paused reports whether relaying is currently gated.
func (p *PauseSignal) Paused() bool {
	return p.manual.Load() || p.cable.Load()
}

// ToggleManual flips the manual cause and returns its new value.
func (p *PauseSignal) ToggleManual() bool {
	return !p.manual.Toggle()
}

// SetManual sets the manual cause directly.
func (p *PauseSignal) SetManual(paused bool) {
	p.manual.Store(paused)
}

// SetCableDetached sets the cable cause.
func (p *PauseSignal) SetCableDetached(detached bool) {
	p.cable.Store(detached)
}

// ManualPaused reports the manual cause in isolation.
func (p *PauseSignal) ManualPaused() bool { return p.manual.Load() }

// CableDetached reports the cable cause in isolation.
func (p *PauseSignal) CableDetached() bool { return p.cable.Load() }
