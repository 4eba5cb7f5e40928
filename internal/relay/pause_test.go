package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPauseCausesAreIndependent(t *testing.T) {
	var p PauseSignal
	assert.False(t, p.Paused())

	p.SetCableDetached(true)
	assert.True(t, p.Paused())

	// The manual toggle must not clear the cable cause.
	assert.True(t, p.ToggleManual())
	assert.True(t, p.Paused())
	assert.False(t, p.ToggleManual())
	assert.True(t, p.Paused(), "cable still detached")

	p.SetCableDetached(false)
	assert.False(t, p.Paused())
}

func TestPauseManualToggleReturnsNewState(t *testing.T) {
	var p PauseSignal

	assert.True(t, p.ToggleManual())
	assert.True(t, p.ManualPaused())
	assert.True(t, p.Paused())

	assert.False(t, p.ToggleManual())
	assert.False(t, p.Paused())
}

func TestPauseCableCauseSurvivesManualChurn(t *testing.T) {
	var p PauseSignal
	p.SetCableDetached(true)

	for i := 0; i < 4; i++ {
		p.ToggleManual()
	}
	assert.False(t, p.ManualPaused())
	assert.True(t, p.CableDetached())
	assert.True(t, p.Paused())
}
