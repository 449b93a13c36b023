package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSeq() (*StepSequencer, *fakeClock) {
	clock := newFakeClock()
	return NewStepSequencer(clock, nil), clock
}

func boolPtr(b bool) *bool          { return &b }
func int8Ptr(v int8) *int8          { return &v }
func uint8Ptr(v uint8) *uint8       { return &v }
func floatPtr(v float64) *float64   { return &v }

func TestSequencerDefaults(t *testing.T) {
	seq, _ := newTestSeq()
	assert.Equal(t, 16, seq.StepCount())
	st, ok := seq.GetStep(0)
	require.True(t, ok)
	assert.False(t, st.Gate)
	assert.Equal(t, uint8(defaultVelocity), st.Velocity)
}

func TestSequencerSetStepsValidation(t *testing.T) {
	seq, _ := newTestSeq()

	seq.SetSteps(32)
	assert.Equal(t, 32, seq.StepCount())

	// Unsupported counts fall back to the default.
	seq.SetSteps(7)
	assert.Equal(t, 16, seq.StepCount())
	seq.SetSteps(-4)
	assert.Equal(t, 16, seq.StepCount())
}

func TestSequencerResizePreservesOverlap(t *testing.T) {
	seq, _ := newTestSeq()
	for i := 0; i < 8; i++ {
		seq.UpdateStep(i, StepUpdate{Gate: boolPtr(true), Pitch: int8Ptr(int8(i))})
	}

	seq.SetSteps(8)
	for i := 0; i < 8; i++ {
		st, ok := seq.GetStep(i)
		require.True(t, ok)
		assert.True(t, st.Gate, "step %d", i)
		assert.Equal(t, int8(i), st.Pitch)
	}

	seq.SetSteps(16)
	for i := 0; i < 8; i++ {
		st, _ := seq.GetStep(i)
		assert.True(t, st.Gate, "step %d survived the round trip", i)
	}
	for i := 8; i < 16; i++ {
		st, ok := seq.GetStep(i)
		require.True(t, ok)
		assert.False(t, st.Gate, "regrown step %d starts cleared", i)
	}
}

func TestSequencerUpdateStep(t *testing.T) {
	seq, _ := newTestSeq()

	seq.UpdateStep(3, StepUpdate{Gate: boolPtr(true), Velocity: uint8Ptr(200), Length: floatPtr(2)})
	st, ok := seq.GetStep(3)
	require.True(t, ok)
	assert.True(t, st.Gate)
	assert.Equal(t, uint8(127), st.Velocity)
	assert.Equal(t, 1.0, st.Length)

	// Out-of-range indices are a no-op, and GetStep reports absence.
	seq.UpdateStep(-1, StepUpdate{Gate: boolPtr(true)})
	seq.UpdateStep(99, StepUpdate{Gate: boolPtr(true)})
	_, ok = seq.GetStep(-1)
	assert.False(t, ok)
	_, ok = seq.GetStep(16)
	assert.False(t, ok)
}

func TestSequencerForwardPlayback(t *testing.T) {
	seq, clock := newTestSeq()
	seq.SetSteps(4)
	seq.SetTempo(120)
	seq.SetDivision(Div16)

	var positions []int
	cycles := 0
	seq.OnStep(func(i int) { positions = append(positions, i) })
	seq.OnPatternComplete(func() { cycles++ })

	seq.Start()
	clock.Advance(1.0)
	seq.Stop()

	require.GreaterOrEqual(t, len(positions), 8)
	for i, pos := range positions {
		assert.Equal(t, i%4, pos, "playhead at emission %d", i)
	}
	assert.GreaterOrEqual(t, cycles, 2)
}

func TestSequencerPingPong(t *testing.T) {
	seq, clock := newTestSeq()
	seq.SetSteps(4)
	seq.SetMode(ModePingPong)
	seq.SetTempo(120)
	seq.SetDivision(Div16)

	var positions []int
	cycles := 0
	seq.OnStep(func(i int) { positions = append(positions, i) })
	seq.OnPatternComplete(func() { cycles++ })

	seq.Start()
	clock.Advance(1.5)
	seq.Stop()

	want := []int{0, 1, 2, 3, 2, 1, 0, 1, 2, 3, 2, 1}
	require.GreaterOrEqual(t, len(positions), len(want))
	for i, w := range want {
		assert.Equal(t, w, positions[i], "emission %d", i)
	}
	// Cycle completes exactly on the return to step 0.
	assert.GreaterOrEqual(t, cycles, 1)
}

func TestSequencerReverse(t *testing.T) {
	seq, clock := newTestSeq()
	seq.SetSteps(4)
	seq.SetMode(ModeReverse)
	seq.SetTempo(120)
	seq.SetDivision(Div16)

	var positions []int
	seq.OnStep(func(i int) { positions = append(positions, i) })

	seq.Start()
	clock.Advance(1.0)
	seq.Stop()

	want := []int{0, 3, 2, 1, 0, 3, 2, 1}
	require.GreaterOrEqual(t, len(positions), len(want))
	for i, w := range want {
		assert.Equal(t, w, positions[i], "emission %d", i)
	}
}

func TestSequencerRandomStaysInRange(t *testing.T) {
	seq, clock := newTestSeq()
	seq.SetSteps(8)
	seq.SetMode(ModeRandom)

	cycles := 0
	var positions []int
	seq.OnStep(func(i int) { positions = append(positions, i) })
	seq.OnPatternComplete(func() { cycles++ })

	seq.Start()
	clock.Advance(2.0)
	seq.Stop()

	require.NotEmpty(t, positions)
	for _, pos := range positions {
		assert.GreaterOrEqual(t, pos, 0)
		assert.Less(t, pos, 8)
	}
	assert.Zero(t, cycles, "random mode never completes a cycle")
}

func TestSequencerEmitsGatedNotes(t *testing.T) {
	seq, clock := newTestSeq()
	seq.SetSteps(4)
	seq.SetTempo(120)
	seq.SetDivision(Div16)
	seq.SetRootNote(60)
	seq.UpdateStep(0, StepUpdate{Gate: boolPtr(true), Pitch: int8Ptr(0), Velocity: uint8Ptr(100)})
	seq.UpdateStep(2, StepUpdate{Gate: boolPtr(true), Pitch: int8Ptr(7), Velocity: uint8Ptr(80), Length: floatPtr(0.5)})

	var events []NoteEvent
	seq.OnNote(func(ev NoteEvent) { events = append(events, ev) })

	seq.Start()
	clock.Advance(0.5) // one full pass
	seq.Stop()

	ons := onEvents(events)
	require.GreaterOrEqual(t, len(ons), 2)
	assert.Equal(t, uint8(60), ons[0].Pitch)
	assert.Equal(t, uint8(100), ons[0].Velocity)
	assert.InDelta(t, 0.0, ons[0].When, 1e-9)
	assert.Equal(t, uint8(67), ons[1].Pitch)
	assert.Equal(t, uint8(80), ons[1].Velocity)
	assert.InDelta(t, 0.25, ons[1].When, 1e-9)

	// The half-length step releases halfway through its slot.
	var offs []NoteEvent
	for _, ev := range events {
		if !ev.On && ev.Pitch == 67 {
			offs = append(offs, ev)
		}
	}
	require.NotEmpty(t, offs)
	assert.InDelta(t, 0.25+0.125*0.5, offs[0].When, 1e-9)
}

func TestSequencerRecording(t *testing.T) {
	seq, _ := newTestSeq()
	seq.SetSteps(4)
	seq.SetRootNote(60)

	seq.StartRecording()
	assert.True(t, seq.IsRecording())

	seq.RecordNote(64, 90)
	seq.RecordRest()
	seq.RecordNote(55, 70)
	assert.Equal(t, 3, seq.RecordCursor())

	st, _ := seq.GetStep(0)
	assert.True(t, st.Gate)
	assert.Equal(t, int8(4), st.Pitch)
	assert.Equal(t, uint8(90), st.Velocity)

	st, _ = seq.GetStep(1)
	assert.False(t, st.Gate)

	st, _ = seq.GetStep(2)
	assert.True(t, st.Gate)
	assert.Equal(t, int8(-5), st.Pitch)
	assert.Equal(t, uint8(70), st.Velocity)

	// Recording stops by itself when the cursor runs off the grid.
	seq.RecordNote(60, 100)
	assert.False(t, seq.IsRecording())
	seq.RecordNote(62, 100) // ignored
	st, _ = seq.GetStep(0)
	assert.Equal(t, int8(4), st.Pitch)
}

func TestSequencerPatternRoundTrip(t *testing.T) {
	seq, _ := newTestSeq()
	seq.SetSteps(8)
	seq.UpdateStep(0, StepUpdate{Gate: boolPtr(true), Pitch: int8Ptr(3)})
	seq.UpdateStep(5, StepUpdate{Gate: boolPtr(true), Velocity: uint8Ptr(64)})
	saved := seq.Steps()

	seq.SavePattern("x")
	seq.Clear()
	for _, st := range seq.Steps() {
		assert.False(t, st.Gate)
	}

	require.True(t, seq.LoadPattern("x"))
	assert.Equal(t, saved, seq.Steps())

	assert.False(t, seq.LoadPattern("not-saved"))

	seq.DeletePattern("x")
	assert.False(t, seq.LoadPattern("x"))
}

func TestSequencerSetPatternLengthMismatch(t *testing.T) {
	seq, _ := newTestSeq()
	seq.SetSteps(8)
	before := seq.Steps()

	// Bulk replace with the wrong length is rejected outright.
	assert.False(t, seq.SetPattern(make([]Step, 7)))
	assert.Equal(t, before, seq.Steps())

	steps := make([]Step, 8)
	for i := range steps {
		steps[i] = Step{Gate: true, Velocity: 100, Length: 0.8}
	}
	assert.True(t, seq.SetPattern(steps))
	st, _ := seq.GetStep(7)
	assert.True(t, st.Gate)
}

func TestSequencerRandomizeDensity(t *testing.T) {
	seq, _ := newTestSeq()

	seq.Randomize(0)
	for _, st := range seq.Steps() {
		assert.False(t, st.Gate)
	}

	seq.Randomize(1)
	for _, st := range seq.Steps() {
		assert.True(t, st.Gate)
		assert.GreaterOrEqual(t, st.Velocity, uint8(60))
		assert.LessOrEqual(t, st.Velocity, uint8(120))
	}
}

func TestSequencerStopIdempotent(t *testing.T) {
	seq, clock := newTestSeq()
	seq.SetSteps(4)

	seq.Start()
	clock.Advance(0.3)
	seq.Stop()
	assert.Equal(t, 0, seq.Position())
	assert.False(t, seq.Running())

	seq.Stop()
	assert.Equal(t, 0, seq.Position())
	assert.False(t, seq.Running())
}

func TestSequencerPauseResume(t *testing.T) {
	seq, clock := newTestSeq()
	seq.SetSteps(16)
	seq.SetTempo(120)
	seq.SetDivision(Div16)

	seq.Start()
	clock.Advance(0.3)
	seq.Pause()
	pos := seq.Position()
	assert.True(t, seq.Paused())

	clock.Advance(1.0)
	assert.Equal(t, pos, seq.Position())

	seq.Resume()
	assert.True(t, seq.Running())
	seq.Stop()
}

func TestSequencerDisposeSilences(t *testing.T) {
	seq, clock := newTestSeq()
	seq.SetSteps(4)
	seq.UpdateStep(0, StepUpdate{Gate: boolPtr(true)})

	var events []NoteEvent
	seq.OnNote(func(ev NoteEvent) { events = append(events, ev) })

	seq.Start()
	clock.Advance(0.05)
	seq.Dispose()
	n := len(events)

	clock.Advance(2.0)
	assert.Len(t, events, n)

	seq.Start()
	clock.Advance(0.5)
	assert.Len(t, events, n, "disposed sequencer must stay silent")
}

func TestPatternStoreSharedAcrossInstances(t *testing.T) {
	clock := newFakeClock()
	store := NewPatternStore()
	a := NewStepSequencer(clock, store)
	b := NewStepSequencer(clock, store)

	a.UpdateStep(0, StepUpdate{Gate: boolPtr(true), Pitch: int8Ptr(12)})
	a.SavePattern("shared")

	require.True(t, b.LoadPattern("shared"))
	st, _ := b.GetStep(0)
	assert.True(t, st.Gate)
	assert.Equal(t, int8(12), st.Pitch)
	assert.Equal(t, []string{"shared"}, store.Names())
}
