package relay

import (
	"fmt"
	"strings"
	"time"

	evdev "github.com/holoplot/go-evdev"
)

const (
	gestureTaps   = 5
	gestureWindow = 3 * time.Second
)

// TapToggle recognizes a fixed gesture: the Control key pressed down a
// number of times with every timestamp inside a rolling window. Either
// Control key counts; any other key-down resets the counter.
type TapToggle struct {
	taps   int
	window time.Duration
	times  []time.Time
}

// NewTapToggle builds the default five-taps-in-three-seconds recognizer.
func NewTapToggle() *TapToggle {
	return &TapToggle{taps: gestureTaps, window: gestureWindow}
}

// Feed observes one key event and reports whether the gesture completed.
// The observed presses are not consumed: callers keep forwarding them.
func (t *TapToggle) Feed(code evdev.EvCode, press bool, now time.Time) bool {
	if !press {
		return false
	}
	if code != evdev.KEY_LEFTCTRL && code != evdev.KEY_RIGHTCTRL {
		t.times = t.times[:0]
		return false
	}

	t.times = append(t.times, now)
	// Drop taps that fell out of the window; the window is inclusive, so
	// five taps spanning exactly 3.000s still trigger.
	for len(t.times) > 0 && now.Sub(t.times[0]) > t.window {
		t.times = t.times[1:]
	}
	if len(t.times) >= t.taps {
		t.times = t.times[:0]
		return true
	}
	return false
}

// Chord is a parsed hotkey combination: a set of key groups that must all
// be held simultaneously. Modifier groups are satisfied by either of their
// left/right variants.
type Chord struct {
	spec   string
	groups [][]evdev.EvCode
}

func (c *Chord) String() string { return c.spec }

var chordModifiers = map[string][]evdev.EvCode{
	"ctrl":    {evdev.KEY_LEFTCTRL, evdev.KEY_RIGHTCTRL},
	"control": {evdev.KEY_LEFTCTRL, evdev.KEY_RIGHTCTRL},
	"shift":   {evdev.KEY_LEFTSHIFT, evdev.KEY_RIGHTSHIFT},
	"alt":     {evdev.KEY_LEFTALT, evdev.KEY_RIGHTALT},
	"meta":    {evdev.KEY_LEFTMETA, evdev.KEY_RIGHTMETA},
	"super":   {evdev.KEY_LEFTMETA, evdev.KEY_RIGHTMETA},
}

var chordKeys = map[string]evdev.EvCode{
	"a": evdev.KEY_A, "b": evdev.KEY_B, "c": evdev.KEY_C, "d": evdev.KEY_D,
	"e": evdev.KEY_E, "f": evdev.KEY_F, "g": evdev.KEY_G, "h": evdev.KEY_H,
	"i": evdev.KEY_I, "j": evdev.KEY_J, "k": evdev.KEY_K, "l": evdev.KEY_L,
	"m": evdev.KEY_M, "n": evdev.KEY_N, "o": evdev.KEY_O, "p": evdev.KEY_P,
	"q": evdev.KEY_Q, "r": evdev.KEY_R, "s": evdev.KEY_S, "t": evdev.KEY_T,
	"u": evdev.KEY_U, "v": evdev.KEY_V, "w": evdev.KEY_W, "x": evdev.KEY_X,
	"y": evdev.KEY_Y, "z": evdev.KEY_Z,

	"0": evdev.KEY_0, "1": evdev.KEY_1, "2": evdev.KEY_2, "3": evdev.KEY_3,
	"4": evdev.KEY_4, "5": evdev.KEY_5, "6": evdev.KEY_6, "7": evdev.KEY_7,
	"8": evdev.KEY_8, "9": evdev.KEY_9,

	"f1": evdev.KEY_F1, "f2": evdev.KEY_F2, "f3": evdev.KEY_F3,
	"f4": evdev.KEY_F4, "f5": evdev.KEY_F5, "f6": evdev.KEY_F6,
	"f7": evdev.KEY_F7, "f8": evdev.KEY_F8, "f9": evdev.KEY_F9,
	"f10": evdev.KEY_F10, "f11": evdev.KEY_F11, "f12": evdev.KEY_F12,

	"esc":        evdev.KEY_ESC,
	"escape":     evdev.KEY_ESC,
	"space":      evdev.KEY_SPACE,
	"tab":        evdev.KEY_TAB,
	"enter":      evdev.KEY_ENTER,
	"backspace":  evdev.KEY_BACKSPACE,
	"delete":     evdev.KEY_DELETE,
	"insert":     evdev.KEY_INSERT,
	"home":       evdev.KEY_HOME,
	"end":        evdev.KEY_END,
	"pageup":     evdev.KEY_PAGEUP,
	"pagedown":   evdev.KEY_PAGEDOWN,
	"pause":      evdev.KEY_PAUSE,
	"scrolllock": evdev.KEY_SCROLLLOCK,
	"sysrq":      evdev.KEY_SYSRQ,
	"minus":      evdev.KEY_MINUS,
	"equal":      evdev.KEY_EQUAL,
}

// ParseChord parses a "ctrl+shift+f12" style hotkey description.
func ParseChord(spec string) (*Chord, error) {
	chord := &Chord{spec: spec}
	for _, token := range strings.Split(spec, "+") {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			return nil, fmt.Errorf("hotkey %q has an empty component", spec)
		}
		if mods, ok := chordModifiers[token]; ok {
			chord.groups = append(chord.groups, mods)
			continue
		}
		code, ok := chordKeys[token]
		if !ok {
			return nil, fmt.Errorf("hotkey %q: unknown key %q", spec, token)
		}
		chord.groups = append(chord.groups, []evdev.EvCode{code})
	}
	if len(chord.groups) == 0 {
		return nil, fmt.Errorf("hotkey %q is empty", spec)
	}
	return chord, nil
}

// ChordDetector tracks which chord members are physically held and fires
// exactly once on the press that completes the chord. It does not fire
// again until at least one member is released.
type ChordDetector struct {
	chord *Chord
	down  map[evdev.EvCode]bool
	fired bool
}

// NewChordDetector builds a detector over a parsed chord.
func NewChordDetector(chord *Chord) *ChordDetector {
	return &ChordDetector{chord: chord, down: make(map[evdev.EvCode]bool)}
}

// Feed observes one key event and reports whether the chord completed.
func (d *ChordDetector) Feed(code evdev.EvCode, press bool) bool {
	if !d.member(code) {
		return false
	}
	if press {
		d.down[code] = true
		if !d.fired && d.satisfied() {
			d.fired = true
			return true
		}
		return false
	}
	delete(d.down, code)
	if !d.satisfied() {
		d.fired = false
	}
	return false
}

func (d *ChordDetector) member(code evdev.EvCode) bool {
	for _, group := range d.chord.groups {
		for _, c := range group {
			if c == code {
				return true
			}
		}
	}
	return false
}

func (d *ChordDetector) satisfied() bool {
	for _, group := range d.chord.groups {
		held := false
		for _, c := range group {
			if d.down[c] {
				held = true
				break
			}
		}
		if !held {
			return false
		}
	}
	return true
}
