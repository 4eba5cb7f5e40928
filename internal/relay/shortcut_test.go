package relay

import (
	"testing"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedTaps(t *TapToggle, base time.Time, offsets ...time.Duration) bool {
	fired := false
	for _, off := range offsets {
		if t.Feed(evdev.KEY_LEFTCTRL, true, base.Add(off)) {
			fired = true
		}
	}
	return fired
}

func TestTapToggleFiresWithinWindow(t *testing.T) {
	base := time.Unix(1000, 0)
	tap := NewTapToggle()

	// Five taps spanning exactly 3.000s: the window is inclusive.
	assert.True(t, feedTaps(tap, base, 0, 750*time.Millisecond, 1500*time.Millisecond,
		2250*time.Millisecond, 3000*time.Millisecond))
}

func TestTapToggleRejectsWindowOverrun(t *testing.T) {
	base := time.Unix(1000, 0)
	tap := NewTapToggle()

	assert.False(t, feedTaps(tap, base, 0, 750*time.Millisecond, 1500*time.Millisecond,
		2250*time.Millisecond, 3001*time.Millisecond))

	// The overrun dropped only the first tap; one more inside the window
	// completes the gesture.
	assert.True(t, tap.Feed(evdev.KEY_LEFTCTRL, true, base.Add(3200*time.Millisecond)))
}

func TestTapToggleResetsOnForeignKey(t *testing.T) {
	base := time.Unix(1000, 0)
	tap := NewTapToggle()

	assert.False(t, feedTaps(tap, base, 0, 100*time.Millisecond, 200*time.Millisecond,
		300*time.Millisecond))
	assert.False(t, tap.Feed(evdev.KEY_A, true, base.Add(350*time.Millisecond)))

	// The counter restarted from zero: four more taps do not fire, the
	// fifth does.
	assert.False(t, feedTaps(tap, base, 400*time.Millisecond, 500*time.Millisecond,
		600*time.Millisecond, 700*time.Millisecond))
	assert.True(t, tap.Feed(evdev.KEY_RIGHTCTRL, true, base.Add(800*time.Millisecond)))
}

func TestTapToggleIgnoresReleasesAndEitherControlCounts(t *testing.T) {
	base := time.Unix(1000, 0)
	tap := NewTapToggle()

	fired := false
	for i := 0; i < 5; i++ {
		code := evdev.KEY_LEFTCTRL
		if i%2 == 1 {
			code = evdev.KEY_RIGHTCTRL
		}
		if tap.Feed(code, true, base.Add(time.Duration(i)*100*time.Millisecond)) {
			fired = true
		}
		// Releases between taps must not reset the counter.
		tap.Feed(code, false, base.Add(time.Duration(i)*100*time.Millisecond+50*time.Millisecond))
	}
	assert.True(t, fired)
}

func TestParseChord(t *testing.T) {
	chord, err := ParseChord("ctrl+shift+f12")
	require.NoError(t, err)
	assert.Len(t, chord.groups, 3)
	assert.Equal(t, "ctrl+shift+f12", chord.String())

	_, err = ParseChord("ctrl+warp")
	assert.Error(t, err)
	_, err = ParseChord("")
	assert.Error(t, err)
	_, err = ParseChord("ctrl++q")
	assert.Error(t, err)
}

func TestChordDetectorFiresOnCompletingPress(t *testing.T) {
	chord, err := ParseChord("ctrl+shift+f12")
	require.NoError(t, err)
	det := NewChordDetector(chord)

	assert.False(t, det.Feed(evdev.KEY_LEFTCTRL, true))
	assert.False(t, det.Feed(evdev.KEY_LEFTSHIFT, true))
	assert.True(t, det.Feed(evdev.KEY_F12, true), "the press completing the chord fires")
	assert.False(t, det.Feed(evdev.KEY_F12, true), "holding does not refire")

	// Releasing and re-pressing any member fires again.
	assert.False(t, det.Feed(evdev.KEY_F12, false))
	assert.True(t, det.Feed(evdev.KEY_F12, true))
}

func TestChordDetectorAcceptsEitherModifierSide(t *testing.T) {
	chord, err := ParseChord("ctrl+q")
	require.NoError(t, err)
	det := NewChordDetector(chord)

	assert.False(t, det.Feed(evdev.KEY_RIGHTCTRL, true))
	assert.True(t, det.Feed(evdev.KEY_Q, true))
}

func TestChordDetectorIgnoresForeignKeys(t *testing.T) {
	chord, err := ParseChord("ctrl+q")
	require.NoError(t, err)
	det := NewChordDetector(chord)

	assert.False(t, det.Feed(evdev.KEY_LEFTCTRL, true))
	assert.False(t, det.Feed(evdev.KEY_A, true))
	assert.False(t, det.Feed(evdev.KEY_A, false))
	assert.True(t, det.Feed(evdev.KEY_Q, true))
}
