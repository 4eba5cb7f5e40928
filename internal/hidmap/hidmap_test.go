package hidmap

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyboardUsagesWithinValidRange(t *testing.T) {
	for code, usage := range KeyboardUsages() {
		assert.GreaterOrEqual(t, usage, uint16(0x04), "code %d maps below keyboard usage range", code)
		assert.LessOrEqual(t, usage, uint16(0xE7), "code %d maps above keyboard usage range", code)
	}
}

func TestConsumerUsagesWithinValidRange(t *testing.T) {
	for code, usage := range ConsumerUsages() {
		assert.GreaterOrEqual(t, usage, uint16(0x01), "code %d maps below consumer usage range", code)
		assert.LessOrEqual(t, usage, uint16(0x2FF), "code %d maps above consumer usage range", code)
	}
}

func TestMouseButtonsAreSingleBits(t *testing.T) {
	seen := map[uint8]evdev.EvCode{}
	for code, bit := range MouseButtons() {
		assert.NotZero(t, bit)
		assert.Zero(t, bit&(bit-1), "button %d is not a single bit", code)
		if prev, dup := seen[bit]; dup {
			t.Errorf("bit %#x assigned to both %d and %d", bit, prev, code)
		}
		seen[bit] = code
	}
}

func TestTranslateRoundTripsEveryTableEntry(t *testing.T) {
	for code, usage := range KeyboardUsages() {
		rep, ok := Translate(evdev.EV_KEY, code, 1)
		require.True(t, ok, "keyboard code %d did not translate", code)
		assert.Equal(t, Keyboard, rep.Category)
		assert.Equal(t, usage, rep.Usage)
		assert.Equal(t, code, rep.Code)
		assert.True(t, rep.Press)
	}
	for code, usage := range ConsumerUsages() {
		rep, ok := Translate(evdev.EV_KEY, code, 0)
		require.True(t, ok, "consumer code %d did not translate", code)
		assert.Equal(t, Consumer, rep.Category)
		assert.Equal(t, usage, rep.Usage)
		assert.False(t, rep.Press)
	}
	for code, bit := range MouseButtons() {
		rep, ok := Translate(evdev.EV_KEY, code, 1)
		require.True(t, ok, "button code %d did not translate", code)
		assert.Equal(t, Mouse, rep.Category)
		assert.Equal(t, uint16(bit), rep.Usage)
		assert.False(t, rep.Motion)
	}
}

func TestTranslateRelativeMotion(t *testing.T) {
	rep, ok := Translate(evdev.EV_REL, evdev.REL_X, -7)
	require.True(t, ok)
	assert.Equal(t, Mouse, rep.Category)
	assert.True(t, rep.Motion)
	assert.Equal(t, int32(-7), rep.DX)

	rep, ok = Translate(evdev.EV_REL, evdev.REL_Y, 3)
	require.True(t, ok)
	assert.Equal(t, int32(3), rep.DY)

	rep, ok = Translate(evdev.EV_REL, evdev.REL_WHEEL, 1)
	require.True(t, ok)
	assert.Equal(t, int32(1), rep.Wheel)
}

func TestTranslateSkipsUnknownAndNoise(t *testing.T) {
	// Unknown key code
	_, ok := Translate(evdev.EV_KEY, evdev.KEY_MAX, 1)
	assert.False(t, ok)

	// Horizontal wheel is not part of the mouse report layout
	_, ok = Translate(evdev.EV_REL, evdev.REL_HWHEEL, 1)
	assert.False(t, ok)

	// Autorepeat
	_, ok = Translate(evdev.EV_KEY, evdev.KEY_A, 2)
	assert.False(t, ok)

	// Sync events
	_, ok = Translate(evdev.EV_SYN, evdev.SYN_REPORT, 0)
	assert.False(t, ok)
}

func TestModifierClassification(t *testing.T) {
	mods := []evdev.EvCode{
		evdev.KEY_LEFTCTRL, evdev.KEY_LEFTSHIFT, evdev.KEY_LEFTALT, evdev.KEY_LEFTMETA,
		evdev.KEY_RIGHTCTRL, evdev.KEY_RIGHTSHIFT, evdev.KEY_RIGHTALT, evdev.KEY_RIGHTMETA,
	}
	for _, code := range mods {
		rep, ok := Translate(evdev.EV_KEY, code, 1)
		require.True(t, ok)
		assert.True(t, IsModifierUsage(rep.Usage), "code %d should be a modifier", code)
	}
	rep, _ := Translate(evdev.EV_KEY, evdev.KEY_A, 1)
	assert.False(t, IsModifierUsage(rep.Usage))
}
