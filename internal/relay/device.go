package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"go.uber.org/atomic"

	"github.com/bnema/btrelay/internal/hid"
	"github.com/bnema/btrelay/internal/hidmap"
	"github.com/bnema/btrelay/internal/input"
	"github.com/bnema/btrelay/internal/logger"
	"github.com/bnema/btrelay/internal/pattern"
)

const (
	// Persistent write failures on real input stop the relay; failures
	// while driving synthetic movement only disable the movement.
	maxInputWriteFailures    = 20
	maxMovementWriteFailures = 5

	movementIdlePoll = 500 * time.Millisecond
)

// Options tunes one relay.
type Options struct {
	// Grab takes exclusive hold of the device so events stop reaching
	// the local console.
	Grab bool

	// PauseChord, when set, lets this device flip the shared manual
	// pause cause.
	PauseChord *Chord

	// Movement, when set, enables the auto-movement gesture; the engine
	// itself is created lazily on first use.
	Movement *pattern.Config
}

// Relay forwards one device's events to the shared sink. It feeds the
// shortcut recognizers before the pause gate so the pause hotkey still
// works while relaying is paused, and it tracks its own pressed keys and
// buttons so it can emit compensating releases on every exit path.
type Relay struct {
	dev   input.Device
	sink  hid.Sink
	pause *PauseSignal
	opts  Options

	tap   *TapToggle
	chord *ChordDetector

	moveEnabled  atomic.Bool
	moveDisabled atomic.Bool

	now func() time.Time

	mu      sync.Mutex
	pressed map[evdev.EvCode]hidmap.Report
}

// NewRelay wires a relay over an open device.
func NewRelay(dev input.Device, sink hid.Sink, pause *PauseSignal, opts Options) *Relay {
	r := &Relay{
		dev:     dev,
		sink:    sink,
		pause:   pause,
		opts:    opts,
		tap:     NewTapToggle(),
		now:     time.Now,
		pressed: make(map[evdev.EvCode]hidmap.Report),
	}
	if opts.PauseChord != nil {
		r.chord = NewChordDetector(opts.PauseChord)
	}
	return r
}

// Run relays until the device disappears, the context is cancelled, or
// writes fail persistently. The device is closed on return.
func (r *Relay) Run(ctx context.Context) error {
	logger.Infof("Relaying %s (%s)", r.dev.Name(), r.dev.Path())

	if r.opts.Grab {
		if err := r.dev.Grab(); err != nil {
			logger.Warnf("Cannot grab %s: %v", r.dev.Path(), err)
		}
	}

	// The reader stays blocked in ReadOne between events; closing the
	// device on the way out is what unblocks it. done covers the other
	// half: a reader that already pulled an event must not stay blocked
	// on the handoff after the relay stopped itself; the parent context
	// can outlive this relay by a long way.
	events := make(chan *evdev.InputEvent)
	readDone := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		for {
			ev, err := r.dev.ReadOne()
			if err != nil {
				readDone <- err
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	mctx, mcancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if r.opts.Movement != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.runMovement(mctx)
		}()
	}

	defer func() {
		close(done)
		mcancel()
		wg.Wait()
		r.releasePressed()
		r.dev.Close()
	}()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readDone:
			logger.Infof("Device %s stopped delivering events: %v", r.dev.Path(), err)
			return nil
		case ev := <-events:
			if err := r.handle(ev, &failures); err != nil {
				return err
			}
		}
	}
}

func (r *Relay) handle(ev *evdev.InputEvent, failures *int) error {
	if ev.Type == evdev.EV_KEY && (ev.Value == 0 || ev.Value == 1) {
		press := ev.Value == 1
		if r.tap.Feed(ev.Code, press, r.now()) {
			r.toggleMovement()
		}
		if r.chord != nil && r.chord.Feed(ev.Code, press) {
			if r.pause.ToggleManual() {
				logger.Info("Pause hotkey pressed, relaying paused")
				r.releasePressed()
			} else {
				logger.Info("Pause hotkey pressed, relaying resumed")
			}
		}
	}

	// Paused means inert: events are dropped, not queued.
	if r.pause.Paused() {
		return nil
	}

	rep, ok := hidmap.Translate(ev.Type, ev.Code, ev.Value)
	if !ok {
		return nil
	}
	if err := r.sink.Write(rep); err != nil {
		*failures++
		logger.Warnf("Relay %s write failed (%d consecutive): %v", r.dev.Path(), *failures, err)
		if *failures >= maxInputWriteFailures {
			return fmt.Errorf("relay %s: %d consecutive write failures: %w", r.dev.Path(), *failures, err)
		}
		return nil
	}
	*failures = 0
	r.trackPressed(rep)
	return nil
}

func (r *Relay) trackPressed(rep hidmap.Report) {
	if rep.Motion {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rep.Press {
		r.pressed[rep.Code] = rep
	} else {
		delete(r.pressed, rep.Code)
	}
}

// releasePressed emits compensating release reports for everything this
// relay forwarded as pressed, so the downstream host never keeps stuck
// keys when a device vanishes mid-press.
func (r *Relay) releasePressed() {
	r.mu.Lock()
	reps := make([]hidmap.Report, 0, len(r.pressed))
	for _, rep := range r.pressed {
		reps = append(reps, rep)
	}
	r.pressed = make(map[evdev.EvCode]hidmap.Report)
	r.mu.Unlock()

	for _, rep := range reps {
		rep.Press = false
		if err := r.sink.Write(rep); err != nil {
			logger.Warnf("Compensating release for %s failed: %v", r.dev.Path(), err)
		}
	}
	if len(reps) > 0 {
		logger.Debugf("Released %d stuck inputs from %s", len(reps), r.dev.Path())
	}
}

func (r *Relay) toggleMovement() {
	if r.opts.Movement == nil {
		return
	}
	if r.moveDisabled.Load() {
		logger.Warnf("Auto-movement for %s stays off after repeated write failures", r.dev.Path())
		return
	}
	if r.moveEnabled.Toggle() {
		logger.Infof("Auto-movement disabled for %s", r.dev.Path())
	} else {
		logger.Infof("Auto-movement enabled for %s", r.dev.Path())
	}
}

// runMovement drives synthetic mouse motion while the gesture has it
// enabled. Movement is additive to real input and respects the pause
// gate; repeated sink failures disable movement without touching the
// relay's real-input forwarding.
func (r *Relay) runMovement(ctx context.Context) {
	var eng *pattern.Engine
	failures := 0

	for ctx.Err() == nil {
		if !r.moveEnabled.Load() || r.pause.Paused() {
			if !sleepCtx(ctx, movementIdlePoll) {
				return
			}
			continue
		}
		if eng == nil {
			eng = pattern.NewEngine(r.opts.Movement, nil)
		}

		cycle := eng.NextCycle()
		for step := 1; step <= cycle.Steps; step++ {
			if ctx.Err() != nil {
				return
			}
			if !r.moveEnabled.Load() || r.pause.Paused() || eng.ShouldRestart() {
				break
			}
			dx, dy := cycle.Delta(step)
			if dx != 0 || dy != 0 {
				err := r.sink.Write(hidmap.Report{Category: hidmap.Mouse, Motion: true, DX: dx, DY: dy})
				if err != nil {
					failures++
					logger.Warnf("Synthetic movement write failed (%d consecutive): %v", failures, err)
					if failures >= maxMovementWriteFailures {
						r.moveDisabled.Store(true)
						r.moveEnabled.Store(false)
						logger.Errorf("Auto-movement disabled for %s after %d consecutive write failures", r.dev.Path(), failures)
						return
					}
				} else {
					failures = 0
				}
			}
			if !sleepCtx(ctx, cycle.Delay) {
				return
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
