// Package hidmap translates evdev input events into HID usage reports.
//
// The mapping is plain table data so it can be audited against the HID
// usage tables and exercised exhaustively in tests. Unknown codes never
// produce an error; they simply do not translate.
package hidmap

import (
	evdev "github.com/holoplot/go-evdev"
)

// Category identifies which gadget endpoint a report targets.
type Category uint8

const (
	Keyboard Category = iota
	Mouse
	Consumer
)

func (c Category) String() string {
	switch c {
	case Keyboard:
		return "keyboard"
	case Mouse:
		return "mouse"
	case Consumer:
		return "consumer"
	}
	return "unknown"
}

// Keyboard usage IDs for the modifier keys occupy a dedicated range; the
// boot keyboard report encodes them as a bitmask rather than key slots.
const (
	ModifierUsageFirst = 0xE0
	ModifierUsageLast  = 0xE7
)

// Report is a translated input event, ready for a HID sink. Key reports
// carry both the HID usage and the originating evdev code: the gadget
// sink needs the former, the uinput loopback sink the latter.
type Report struct {
	Category Category

	// Key/button fields
	Usage uint16       // HID usage ID, or button bitmask bit for mouse buttons
	Code  evdev.EvCode // originating evdev code
	Press bool

	// Relative motion fields (Category == Mouse, Motion == true)
	Motion bool
	DX     int32
	DY     int32
	Wheel  int32
}

// Translate maps a raw evdev event to a HID report. The second return
// value is false when the event has no HID equivalent (unknown code,
// autorepeat, sync events) and must be skipped by the caller.
func Translate(evType evdev.EvType, code evdev.EvCode, value int32) (Report, bool) {
	switch evType {
	case evdev.EV_KEY:
		// Autorepeat is left to the downstream host.
		if value != 0 && value != 1 {
			return Report{}, false
		}
		press := value == 1
		if bit, ok := mouseButtons[code]; ok {
			return Report{Category: Mouse, Usage: uint16(bit), Code: code, Press: press}, true
		}
		if usage, ok := consumerUsages[code]; ok {
			return Report{Category: Consumer, Usage: usage, Code: code, Press: press}, true
		}
		if usage, ok := keyboardUsages[code]; ok {
			return Report{Category: Keyboard, Usage: usage, Code: code, Press: press}, true
		}
		return Report{}, false
	case evdev.EV_REL:
		switch code {
		case evdev.REL_X:
			return Report{Category: Mouse, Motion: true, DX: value}, true
		case evdev.REL_Y:
			return Report{Category: Mouse, Motion: true, DY: value}, true
		case evdev.REL_WHEEL:
			return Report{Category: Mouse, Motion: true, Wheel: value}, true
		}
		return Report{}, false
	}
	return Report{}, false
}

// IsModifierUsage reports whether a keyboard usage ID belongs to the
// modifier bitmask range of the boot keyboard report.
func IsModifierUsage(usage uint16) bool {
	return usage >= ModifierUsageFirst && usage <= ModifierUsageLast
}

// KeyboardUsages exposes a copy of the keyboard table for tests and
// reverse lookups.
func KeyboardUsages() map[evdev.EvCode]uint16 { return cloneTable(keyboardUsages) }

// ConsumerUsages exposes a copy of the consumer-control table.
func ConsumerUsages() map[evdev.EvCode]uint16 { return cloneTable(consumerUsages) }

// MouseButtons exposes a copy of the button table.
func MouseButtons() map[evdev.EvCode]uint8 {
	out := make(map[evdev.EvCode]uint8, len(mouseButtons))
	for k, v := range mouseButtons {
		out[k] = v
	}
	return out
}

func cloneTable(src map[evdev.EvCode]uint16) map[evdev.EvCode]uint16 {
	out := make(map[evdev.EvCode]uint16, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// mouseButtons maps evdev button codes to bits of the 1-byte button field
// of the mouse report.
var mouseButtons = map[evdev.EvCode]uint8{
	evdev.BTN_LEFT:    1 << 0,
	evdev.BTN_RIGHT:   1 << 1,
	evdev.BTN_MIDDLE:  1 << 2,
	evdev.BTN_SIDE:    1 << 3,
	evdev.BTN_EXTRA:   1 << 4,
	evdev.BTN_FORWARD: 1 << 5,
	evdev.BTN_BACK:    1 << 6,
	evdev.BTN_TASK:    1 << 7,
}

// keyboardUsages maps evdev key codes to HID keyboard/keypad page (0x07)
// usage IDs.
var keyboardUsages = map[evdev.EvCode]uint16{
	evdev.KEY_A: 0x04,
	evdev.KEY_B: 0x05,
	evdev.KEY_C: 0x06,
	evdev.KEY_D: 0x07,
	evdev.KEY_E: 0x08,
	evdev.KEY_F: 0x09,
	evdev.KEY_G: 0x0A,
	evdev.KEY_H: 0x0B,
	evdev.KEY_I: 0x0C,
	evdev.KEY_J: 0x0D,
	evdev.KEY_K: 0x0E,
	evdev.KEY_L: 0x0F,
	evdev.KEY_M: 0x10,
	evdev.KEY_N: 0x11,
	evdev.KEY_O: 0x12,
	evdev.KEY_P: 0x13,
	evdev.KEY_Q: 0x14,
	evdev.KEY_R: 0x15,
	evdev.KEY_S: 0x16,
	evdev.KEY_T: 0x17,
	evdev.KEY_U: 0x18,
	evdev.KEY_V: 0x19,
	evdev.KEY_W: 0x1A,
	evdev.KEY_X: 0x1B,
	evdev.KEY_Y: 0x1C,
	evdev.KEY_Z: 0x1D,

	evdev.KEY_1: 0x1E,
	evdev.KEY_2: 0x1F,
	evdev.KEY_3: 0x20,
	evdev.KEY_4: 0x21,
	evdev.KEY_5: 0x22,
	evdev.KEY_6: 0x23,
	evdev.KEY_7: 0x24,
	evdev.KEY_8: 0x25,
	evdev.KEY_9: 0x26,
	evdev.KEY_0: 0x27,

	evdev.KEY_ENTER:      0x28,
	evdev.KEY_ESC:        0x29,
	evdev.KEY_BACKSPACE:  0x2A,
	evdev.KEY_TAB:        0x2B,
	evdev.KEY_SPACE:      0x2C,
	evdev.KEY_MINUS:      0x2D,
	evdev.KEY_EQUAL:      0x2E,
	evdev.KEY_LEFTBRACE:  0x2F,
	evdev.KEY_RIGHTBRACE: 0x30,
	evdev.KEY_BACKSLASH:  0x31,
	evdev.KEY_SEMICOLON:  0x33,
	evdev.KEY_APOSTROPHE: 0x34,
	evdev.KEY_GRAVE:      0x35,
	evdev.KEY_COMMA:      0x36,
	evdev.KEY_DOT:        0x37,
	evdev.KEY_SLASH:      0x38,
	evdev.KEY_CAPSLOCK:   0x39,

	evdev.KEY_F1:  0x3A,
	evdev.KEY_F2:  0x3B,
	evdev.KEY_F3:  0x3C,
	evdev.KEY_F4:  0x3D,
	evdev.KEY_F5:  0x3E,
	evdev.KEY_F6:  0x3F,
	evdev.KEY_F7:  0x40,
	evdev.KEY_F8:  0x41,
	evdev.KEY_F9:  0x42,
	evdev.KEY_F10: 0x43,
	evdev.KEY_F11: 0x44,
	evdev.KEY_F12: 0x45,

	evdev.KEY_SYSRQ:      0x46,
	evdev.KEY_SCROLLLOCK: 0x47,
	evdev.KEY_PAUSE:      0x48,
	evdev.KEY_INSERT:     0x49,
	evdev.KEY_HOME:       0x4A,
	evdev.KEY_PAGEUP:     0x4B,
	evdev.KEY_DELETE:     0x4C,
	evdev.KEY_END:        0x4D,
	evdev.KEY_PAGEDOWN:   0x4E,
	evdev.KEY_RIGHT:      0x4F,
	evdev.KEY_LEFT:       0x50,
	evdev.KEY_DOWN:       0x51,
	evdev.KEY_UP:         0x52,

	evdev.KEY_NUMLOCK:    0x53,
	evdev.KEY_KPSLASH:    0x54,
	evdev.KEY_KPASTERISK: 0x55,
	evdev.KEY_KPMINUS:    0x56,
	evdev.KEY_KPPLUS:     0x57,
	evdev.KEY_KPENTER:    0x58,
	evdev.KEY_KP1:        0x59,
	evdev.KEY_KP2:        0x5A,
	evdev.KEY_KP3:        0x5B,
	evdev.KEY_KP4:        0x5C,
	evdev.KEY_KP5:        0x5D,
	evdev.KEY_KP6:        0x5E,
	evdev.KEY_KP7:        0x5F,
	evdev.KEY_KP8:        0x60,
	evdev.KEY_KP9:        0x61,
	evdev.KEY_KP0:        0x62,
	evdev.KEY_KPDOT:      0x63,
	evdev.KEY_102ND:      0x64,
	evdev.KEY_COMPOSE:    0x65,
	evdev.KEY_POWER:      0x66,
	evdev.KEY_KPEQUAL:    0x67,

	evdev.KEY_F13: 0x68,
	evdev.KEY_F14: 0x69,
	evdev.KEY_F15: 0x6A,
	evdev.KEY_F16: 0x6B,
	evdev.KEY_F17: 0x6C,
	evdev.KEY_F18: 0x6D,
	evdev.KEY_F19: 0x6E,
	evdev.KEY_F20: 0x6F,
	evdev.KEY_F21: 0x70,
	evdev.KEY_F22: 0x71,
	evdev.KEY_F23: 0x72,
	evdev.KEY_F24: 0x73,

	evdev.KEY_OPEN:  0x74,
	evdev.KEY_HELP:  0x75,
	evdev.KEY_PROPS: 0x76,
	evdev.KEY_FRONT: 0x77,
	evdev.KEY_STOP:  0x78,
	evdev.KEY_AGAIN: 0x79,
	evdev.KEY_UNDO:  0x7A,
	evdev.KEY_CUT:   0x7B,
	evdev.KEY_COPY:  0x7C,
	evdev.KEY_PASTE: 0x7D,
	evdev.KEY_FIND:  0x7E,

	evdev.KEY_KPCOMMA: 0x85,

	evdev.KEY_RO:               0x87,
	evdev.KEY_KATAKANAHIRAGANA: 0x88,
	evdev.KEY_YEN:              0x89,
	evdev.KEY_HENKAN:           0x8A,
	evdev.KEY_MUHENKAN:         0x8B,
	evdev.KEY_KPJPCOMMA:        0x8C,
	evdev.KEY_HANGEUL:          0x90,
	evdev.KEY_HANJA:            0x91,
	evdev.KEY_KATAKANA:         0x92,
	evdev.KEY_HIRAGANA:         0x93,
	evdev.KEY_ZENKAKUHANKAKU:   0x94,

	evdev.KEY_KPLEFTPAREN:  0xB6,
	evdev.KEY_KPRIGHTPAREN: 0xB7,

	evdev.KEY_LEFTCTRL:   0xE0,
	evdev.KEY_LEFTSHIFT:  0xE1,
	evdev.KEY_LEFTALT:    0xE2,
	evdev.KEY_LEFTMETA:   0xE3,
	evdev.KEY_RIGHTCTRL:  0xE4,
	evdev.KEY_RIGHTSHIFT: 0xE5,
	evdev.KEY_RIGHTALT:   0xE6,
	evdev.KEY_RIGHTMETA:  0xE7,
}

// consumerUsages maps multimedia/system evdev key codes to HID consumer
// page (0x0C) usage IDs.
var consumerUsages = map[evdev.EvCode]uint16{
	// Media transport
	evdev.KEY_PLAYCD:       0xB0,
	evdev.KEY_PAUSECD:      0xB1,
	evdev.KEY_RECORD:       0xB2,
	evdev.KEY_FASTFORWARD:  0xB3,
	evdev.KEY_REWIND:       0xB4,
	evdev.KEY_NEXTSONG:     0xB5,
	evdev.KEY_PREVIOUSSONG: 0xB6,
	evdev.KEY_STOPCD:       0xB7,
	evdev.KEY_EJECTCD:      0xB8,
	evdev.KEY_EJECTCLOSECD: 0xB8,
	evdev.KEY_SHUFFLE:      0xB9,
	evdev.KEY_PLAYPAUSE:    0xCD,
	evdev.KEY_VOICECOMMAND: 0xCF,

	// Audio
	evdev.KEY_MUTE:       0xE2,
	evdev.KEY_BASSBOOST:  0xE5,
	evdev.KEY_VOLUMEUP:   0xE9,
	evdev.KEY_VOLUMEDOWN: 0xEA,

	// System / display
	evdev.KEY_SLEEP:          0x32,
	evdev.KEY_MENU:           0x40,
	evdev.KEY_BRIGHTNESSUP:   0x6F,
	evdev.KEY_BRIGHTNESSDOWN: 0x70,
	evdev.KEY_KBDILLUMUP:     0x79,
	evdev.KEY_KBDILLUMDOWN:   0x7A,
	evdev.KEY_KBDILLUMTOGGLE: 0x7C,
	evdev.KEY_CAMERA:         0x65,

	// Channel / media selection
	evdev.KEY_PC:          0x88,
	evdev.KEY_TV:          0x89,
	evdev.KEY_DVD:         0x8B,
	evdev.KEY_PHONE:       0x8C,
	evdev.KEY_PROGRAM:     0x8D,
	evdev.KEY_CHANNELUP:   0x9C,
	evdev.KEY_CHANNELDOWN: 0x9D,

	// Application launch
	evdev.KEY_MEDIA:     0x183,
	evdev.KEY_CONFIG:    0x183,
	evdev.KEY_MAIL:      0x18A,
	evdev.KEY_FINANCE:   0x191,
	evdev.KEY_CALC:      0x192,
	evdev.KEY_COMPUTER:  0x194,
	evdev.KEY_WWW:       0x196,
	evdev.KEY_COFFEE:    0x19E,
	evdev.KEY_DOCUMENTS: 0x1A7,

	// Application control
	evdev.KEY_NEW:        0x201,
	evdev.KEY_CLOSE:      0x203,
	evdev.KEY_PRINT:      0x208,
	evdev.KEY_SEARCH:     0x221,
	evdev.KEY_HOMEPAGE:   0x223,
	evdev.KEY_BACK:       0x224,
	evdev.KEY_FORWARD:    0x225,
	evdev.KEY_REFRESH:    0x227,
	evdev.KEY_BOOKMARKS:  0x22A,
	evdev.KEY_ZOOMIN:     0x22D,
	evdev.KEY_ZOOMOUT:    0x22E,
	evdev.KEY_ZOOMRESET:  0x22F,
	evdev.KEY_SCROLLUP:   0x233,
	evdev.KEY_SCROLLDOWN: 0x234,
	evdev.KEY_REDO:       0x279,
}
