package hid

import (
	"testing"

	"github.com/bnema/btrelay/internal/hidmap"
	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// scriptedWriter fails with the scripted errors before succeeding.
type scriptedWriter struct {
	errs     []error
	attempts int
	written  [][]byte
	closed   bool
}

func (w *scriptedWriter) Write(p []byte) (int, error) {
	w.attempts++
	if len(w.errs) > 0 {
		err := w.errs[0]
		w.errs = w.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	w.written = append(w.written, buf)
	return len(p), nil
}

func (w *scriptedWriter) Close() error {
	w.closed = true
	return nil
}

func newTestSink() (*GadgetSink, *scriptedWriter, *scriptedWriter, *scriptedWriter) {
	kb := &scriptedWriter{}
	mouse := &scriptedWriter{}
	consumer := &scriptedWriter{}
	return newGadgetSinkFromWriters(kb, mouse, consumer), kb, mouse, consumer
}

func keyReport(code evdev.EvCode, press bool) hidmap.Report {
	rep, ok := hidmap.Translate(evdev.EV_KEY, code, map[bool]int32{true: 1, false: 0}[press])
	if !ok {
		panic("untranslatable code in test")
	}
	return rep
}

func TestWriteRetriesTransientFailures(t *testing.T) {
	sink, kb, _, _ := newTestSink()
	kb.errs = []error{unix.EAGAIN, unix.EAGAIN}

	err := sink.Write(keyReport(evdev.KEY_A, true))
	require.NoError(t, err, "two transient failures then success must succeed overall")
	assert.Equal(t, 3, kb.attempts)
	// Exactly one report reached the endpoint; the failed attempts did
	// not emit anything.
	require.Len(t, kb.written, 1)
	assert.Equal(t, []byte{0, 0, 0x04, 0, 0, 0, 0, 0}, kb.written[0])
}

func TestWriteFailsAfterRetryExhaustion(t *testing.T) {
	sink, kb, _, _ := newTestSink()
	kb.errs = []error{unix.EAGAIN, unix.EAGAIN, unix.EAGAIN}

	err := sink.Write(keyReport(evdev.KEY_A, true))
	require.Error(t, err)
	assert.Equal(t, 3, kb.attempts)
	assert.Empty(t, kb.written)
}

func TestWriteDoesNotRetryHardFailures(t *testing.T) {
	sink, kb, _, _ := newTestSink()
	kb.errs = []error{unix.EPIPE}

	err := sink.Write(keyReport(evdev.KEY_A, true))
	require.Error(t, err)
	assert.Equal(t, 1, kb.attempts, "EPIPE means the cable is gone; retrying is pointless")
}

func TestKeyboardStateTracksPressAndRelease(t *testing.T) {
	sink, kb, _, _ := newTestSink()

	require.NoError(t, sink.Write(keyReport(evdev.KEY_LEFTSHIFT, true)))
	require.NoError(t, sink.Write(keyReport(evdev.KEY_A, true)))
	require.NoError(t, sink.Write(keyReport(evdev.KEY_A, false)))
	require.NoError(t, sink.Write(keyReport(evdev.KEY_LEFTSHIFT, false)))

	require.Len(t, kb.written, 4)
	assert.Equal(t, []byte{0x02, 0, 0, 0, 0, 0, 0, 0}, kb.written[0], "left shift sets modifier bit 1")
	assert.Equal(t, []byte{0x02, 0, 0x04, 0, 0, 0, 0, 0}, kb.written[1], "A pressed while shift held")
	assert.Equal(t, []byte{0x02, 0, 0, 0, 0, 0, 0, 0}, kb.written[2], "A released")
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0}, kb.written[3], "all released")
}

func TestKeyboardRolloverLimit(t *testing.T) {
	sink, kb, _, _ := newTestSink()

	keys := []evdev.EvCode{
		evdev.KEY_A, evdev.KEY_B, evdev.KEY_C,
		evdev.KEY_D, evdev.KEY_E, evdev.KEY_F,
	}
	for _, k := range keys {
		require.NoError(t, sink.Write(keyReport(k, true)))
	}
	require.Len(t, kb.written, 6)

	// Seventh key does not fit in the boot report and must be dropped
	// without emitting a report or failing the relay.
	require.NoError(t, sink.Write(keyReport(evdev.KEY_G, true)))
	assert.Len(t, kb.written, 6)
}

func TestMouseButtonsAndMotion(t *testing.T) {
	sink, _, mouse, _ := newTestSink()

	require.NoError(t, sink.Write(keyReport(evdev.BTN_LEFT, true)))
	require.NoError(t, sink.Write(hidmap.Report{Category: hidmap.Mouse, Motion: true, DX: -5, DY: 300}))
	require.NoError(t, sink.Write(keyReport(evdev.BTN_LEFT, false)))

	require.Len(t, mouse.written, 3)
	assert.Equal(t, []byte{0x01, 0, 0, 0}, mouse.written[0])
	// Button state is carried through motion reports; oversized deltas
	// are clamped to the report's int8 range.
	assert.Equal(t, []byte{0x01, 0xFB, 127, 0}, mouse.written[1])
	assert.Equal(t, []byte{0x00, 0, 0, 0}, mouse.written[2])
}

func TestConsumerReports(t *testing.T) {
	sink, _, _, consumer := newTestSink()

	require.NoError(t, sink.Write(keyReport(evdev.KEY_VOLUMEUP, true)))
	require.NoError(t, sink.Write(keyReport(evdev.KEY_VOLUMEUP, false)))

	require.Len(t, consumer.written, 2)
	assert.Equal(t, []byte{0xE9, 0x00}, consumer.written[0])
	assert.Equal(t, []byte{0x00, 0x00}, consumer.written[1])
}

func TestReleaseAllResetsEveryEndpoint(t *testing.T) {
	sink, kb, mouse, consumer := newTestSink()

	require.NoError(t, sink.Write(keyReport(evdev.KEY_LEFTCTRL, true)))
	require.NoError(t, sink.Write(keyReport(evdev.KEY_Z, true)))
	require.NoError(t, sink.Write(keyReport(evdev.BTN_RIGHT, true)))
	require.NoError(t, sink.Write(keyReport(evdev.KEY_PLAYPAUSE, true)))

	require.NoError(t, sink.ReleaseAll())

	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0}, kb.written[len(kb.written)-1])
	assert.Equal(t, []byte{0, 0, 0, 0}, mouse.written[len(mouse.written)-1])
	assert.Equal(t, []byte{0, 0}, consumer.written[len(consumer.written)-1])
}

func TestCloseClosesAllEndpoints(t *testing.T) {
	sink, kb, mouse, consumer := newTestSink()
	require.NoError(t, sink.Close())
	assert.True(t, kb.closed)
	assert.True(t, mouse.closed)
	assert.True(t, consumer.closed)
}
