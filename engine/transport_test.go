package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type firedStep struct {
	at     float64
	step   int64
	nowlag float64 // clock.Now() at fire time minus at; negative = early
}

func collectTransport(clock *fakeClock) (*Transport, *[]firedStep) {
	var fired []firedStep
	var tr *Transport
	tr = NewTransport(clock, func(at float64, step int64) {
		fired = append(fired, firedStep{at: at, step: step, nowlag: clock.Now() - at})
	})
	return tr, &fired
}

func TestTransportClamps(t *testing.T) {
	clock := newFakeClock()
	tr := NewTransport(clock, func(float64, int64) {})

	tr.SetTempo(30)
	assert.Equal(t, 40.0, tr.Tempo())
	tr.SetTempo(350)
	assert.Equal(t, 300.0, tr.Tempo())
	tr.SetTempo(140)
	assert.Equal(t, 140.0, tr.Tempo())

	tr.SetSwing(-0.5)
	assert.Equal(t, 0.0, tr.Swing())
	tr.SetSwing(2)
	assert.Equal(t, 1.0, tr.Swing())
}

func TestTransportStepDuration(t *testing.T) {
	clock := newFakeClock()
	tr := NewTransport(clock, func(float64, int64) {})
	tr.SetTempo(120)

	tr.SetDivision(Div16)
	assert.InDelta(t, 0.125, tr.StepDuration(0), 1e-9)

	tr.SetDivision(Div4)
	assert.InDelta(t, 0.5, tr.StepDuration(0), 1e-9)

	// Triplets pack three steps into the span of two.
	tr.SetDivision(Div8T)
	assert.InDelta(t, 60.0/120/3, tr.StepDuration(0), 1e-9)

	// Swing lengthens odd steps only, up to 50%.
	tr.SetDivision(Div16)
	tr.SetSwing(1)
	assert.InDelta(t, 0.125, tr.StepDuration(0), 1e-9)
	assert.InDelta(t, 0.1875, tr.StepDuration(1), 1e-9)
	tr.SetSwing(0.5)
	assert.InDelta(t, 0.125*1.25, tr.StepDuration(1), 1e-9)
}

func TestTransportFiresFirstStepImmediately(t *testing.T) {
	clock := newFakeClock()
	tr, fired := collectTransport(clock)

	tr.Start()
	require.NotEmpty(t, *fired)
	assert.Equal(t, int64(0), (*fired)[0].step)
	assert.Equal(t, 0.0, (*fired)[0].at)
	tr.Stop()
}

func TestTransportLookAheadTiming(t *testing.T) {
	clock := newFakeClock()
	tr, fired := collectTransport(clock)
	tr.SetTempo(120)
	tr.SetDivision(Div16) // 0.125s per step

	tr.Start()
	clock.Advance(1.0)
	tr.Stop()

	require.GreaterOrEqual(t, len(*fired), 8)
	for i, f := range *fired {
		assert.InDelta(t, 0.125*float64(i), f.at, 1e-9, "step %d time", i)
		assert.Equal(t, int64(i), f.step)
		// Look-ahead guarantees each step is handed off before it is due.
		assert.LessOrEqual(t, f.nowlag, 0.0, "step %d fired late", i)
	}
}

func TestTransportSwingShiftsOddSteps(t *testing.T) {
	clock := newFakeClock()
	tr, fired := collectTransport(clock)
	tr.SetTempo(120)
	tr.SetDivision(Div16)
	tr.SetSwing(1)

	tr.Start()
	clock.Advance(1.0)
	tr.Stop()

	// Steps alternate 0.125 / 0.1875: 0, 0.125, 0.3125, 0.4375, 0.625 ...
	require.GreaterOrEqual(t, len(*fired), 5)
	assert.InDelta(t, 0.0, (*fired)[0].at, 1e-9)
	assert.InDelta(t, 0.125, (*fired)[1].at, 1e-9)
	assert.InDelta(t, 0.3125, (*fired)[2].at, 1e-9)
	assert.InDelta(t, 0.4375, (*fired)[3].at, 1e-9)
	assert.InDelta(t, 0.625, (*fired)[4].at, 1e-9)
}

func TestTransportStopCancelsPending(t *testing.T) {
	clock := newFakeClock()
	tr, fired := collectTransport(clock)

	tr.Start()
	clock.Advance(0.3)
	tr.Stop()
	n := len(*fired)

	clock.Advance(2.0)
	assert.Len(t, *fired, n, "no fires after Stop")
	assert.False(t, tr.Running())

	// Idempotent.
	tr.Stop()
	assert.False(t, tr.Running())
}

func TestTransportPauseResume(t *testing.T) {
	clock := newFakeClock()
	tr, fired := collectTransport(clock)
	tr.SetTempo(120)
	tr.SetDivision(Div16)

	tr.Start()
	clock.Advance(0.3)
	tr.Pause()
	assert.False(t, tr.Running())
	assert.True(t, tr.Paused())
	n := len(*fired)
	lastStep := (*fired)[n-1].step

	clock.Advance(1.0)
	assert.Len(t, *fired, n)

	tr.Resume()
	clock.Advance(0.2)
	require.Greater(t, len(*fired), n)
	// Step index (and its swing parity) carries across the pause.
	assert.Equal(t, lastStep+1, (*fired)[n].step)
	tr.Stop()
}

func TestTransportResumeOnlyAfterPause(t *testing.T) {
	clock := newFakeClock()
	tr, fired := collectTransport(clock)

	// Resume on a stopped (not paused) transport is a no-op.
	tr.Resume()
	assert.Empty(t, *fired)
	assert.False(t, tr.Running())
}
