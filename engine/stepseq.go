package engine

import (
	"math/rand"
	"sync"
	"time"
)

// PlayMode is the step-advance rule.
type PlayMode string

const (
	ModeForward  PlayMode = "forward"
	ModeReverse  PlayMode = "reverse"
	ModePingPong PlayMode = "pingpong"
	ModeRandom   PlayMode = "random"
)

// PlayModes lists the modes in menu order.
var PlayModes = []PlayMode{ModeForward, ModeReverse, ModePingPong, ModeRandom}

// Step is one cell of the sequencer grid.
type Step struct {
	Gate     bool
	Pitch    int8    // semitone offset from the sequencer root note
	Velocity uint8   // 1-127
	Length   float64 // fraction of the step duration the note sustains
}

// StepUpdate is a partial edit of a step; nil fields are left untouched.
type StepUpdate struct {
	Gate     *bool
	Pitch    *int8
	Velocity *uint8
	Length   *float64
}

// DefaultStepCount is used when an unsupported count is requested.
const DefaultStepCount = 16

// validStepCounts are the supported grid sizes.
var validStepCounts = map[int]bool{4: true, 8: true, 16: true, 32: true, 64: true}

func defaultStep() Step {
	return Step{Velocity: defaultVelocity, Length: 0.8}
}

// StepSequencer is a fixed-grid sequencer with forward/reverse/ping-pong/
// random playback and live recording. It drives its own look-ahead transport.
type StepSequencer struct {
	clock     Clock
	transport *Transport
	store     *PatternStore

	mu         sync.Mutex
	steps      []Step
	pos        int
	dir        int // ±1, ping-pong direction
	mode       PlayMode
	root       uint8
	recording  bool
	recordPos  int
	noteSubs   []NoteFunc
	stepSubs   []func(int)
	cycleSubs  []func()
	epoch      uint64
	offCancels map[uint64]func()
	nextOffID  uint64
	disposed   bool
}

// NewStepSequencer creates a stopped 16-step sequencer. The store may be
// shared across instances; pass nil to give the sequencer its own.
func NewStepSequencer(clock Clock, store *PatternStore) *StepSequencer {
	if store == nil {
		store = NewPatternStore()
	}
	s := &StepSequencer{
		clock:      clock,
		store:      store,
		steps:      make([]Step, DefaultStepCount),
		dir:        1,
		mode:       ModeForward,
		root:       60,
		offCancels: make(map[uint64]func()),
	}
	for i := range s.steps {
		s.steps[i] = defaultStep()
	}
	s.transport = NewTransport(clock, s.fireStep)
	return s
}

func (s *StepSequencer) OnNote(fn NoteFunc) {
	s.mu.Lock()
	s.noteSubs = append(s.noteSubs, fn)
	s.mu.Unlock()
}

// OnStep registers a playhead listener, fired once per step whether or not
// the step gates a note.
func (s *StepSequencer) OnStep(fn func(int)) {
	s.mu.Lock()
	s.stepSubs = append(s.stepSubs, fn)
	s.mu.Unlock()
}

func (s *StepSequencer) OnPatternComplete(fn func()) {
	s.mu.Lock()
	s.cycleSubs = append(s.cycleSubs, fn)
	s.mu.Unlock()
}

// SetSteps resizes the grid. Unsupported counts fall back to 16. Existing
// step data survives up to the overlap; new steps start cleared.
func (s *StepSequencer) SetSteps(count int) {
	if !validStepCounts[count] {
		count = DefaultStepCount
	}
	s.mu.Lock()
	old := s.steps
	s.steps = make([]Step, count)
	for i := range s.steps {
		if i < len(old) {
			s.steps[i] = old[i]
		} else {
			s.steps[i] = defaultStep()
		}
	}
	if s.pos >= count {
		s.pos = 0
	}
	if s.recordPos >= count {
		s.recording = false
		s.recordPos = 0
	}
	s.mu.Unlock()
}

// StepCount returns the grid size.
func (s *StepSequencer) StepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

// GetStep returns a step by index; ok is false out of range.
func (s *StepSequencer) GetStep(i int) (Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.steps) {
		return Step{}, false
	}
	return s.steps[i], true
}

// UpdateStep applies a partial edit. Out-of-range indices are a no-op;
// velocity and length are clamped.
func (s *StepSequencer) UpdateStep(i int, u StepUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.steps) {
		return
	}
	st := &s.steps[i]
	if u.Gate != nil {
		st.Gate = *u.Gate
	}
	if u.Pitch != nil {
		st.Pitch = *u.Pitch
	}
	if u.Velocity != nil {
		st.Velocity = uint8(clampInt(int(*u.Velocity), 1, 127))
	}
	if u.Length != nil {
		st.Length = clampFloat(*u.Length, 0.05, 1)
	}
}

// ToggleStep flips a step's gate.
func (s *StepSequencer) ToggleStep(i int) {
	s.mu.Lock()
	if i >= 0 && i < len(s.steps) {
		s.steps[i].Gate = !s.steps[i].Gate
	}
	s.mu.Unlock()
}

// Steps returns a copy of the grid.
func (s *StepSequencer) Steps() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Step(nil), s.steps...)
}

// SetPattern replaces the whole grid. Rejected (no-op, false) unless the
// length matches the current step count.
func (s *StepSequencer) SetPattern(steps []Step) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(steps) != len(s.steps) {
		return false
	}
	copy(s.steps, steps)
	for i := range s.steps {
		s.steps[i].Velocity = uint8(clampInt(int(s.steps[i].Velocity), 1, 127))
		s.steps[i].Length = clampFloat(s.steps[i].Length, 0.05, 1)
	}
	return true
}

// Clear resets every step.
func (s *StepSequencer) Clear() {
	s.mu.Lock()
	for i := range s.steps {
		s.steps[i] = defaultStep()
	}
	s.mu.Unlock()
}

// randomizePitches are the offsets Randomize draws from (minor pentatonic
// plus the octave).
var randomizePitches = []int8{0, 0, 3, 5, 7, 10, 12}

// Randomize fills the grid: each step gates with probability density and
// gets a random velocity and pentatonic pitch.
func (s *StepSequencer) Randomize(density float64) {
	density = clampFloat(density, 0, 1)
	s.mu.Lock()
	for i := range s.steps {
		s.steps[i].Gate = rand.Float64() < density
		s.steps[i].Pitch = randomizePitches[rand.Intn(len(randomizePitches))]
		s.steps[i].Velocity = uint8(60 + rand.Intn(61))
	}
	s.mu.Unlock()
}

func (s *StepSequencer) SetMode(m PlayMode) {
	s.mu.Lock()
	s.mode = m
	s.dir = 1
	s.mu.Unlock()
}

func (s *StepSequencer) Mode() PlayMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetRootNote sets the pitch that step offset 0 sounds as.
func (s *StepSequencer) SetRootNote(n uint8) {
	s.mu.Lock()
	s.root = n
	s.mu.Unlock()
}

func (s *StepSequencer) RootNote() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Position returns the current playhead index.
func (s *StepSequencer) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Tempo/division/swing delegate to the transport.

func (s *StepSequencer) SetTempo(bpm float64)   { s.transport.SetTempo(bpm) }
func (s *StepSequencer) Tempo() float64         { return s.transport.Tempo() }
func (s *StepSequencer) SetDivision(d Division) { s.transport.SetDivision(d) }
func (s *StepSequencer) Division() Division     { return s.transport.Division() }
func (s *StepSequencer) SetSwing(sw float64)    { s.transport.SetSwing(sw) }
func (s *StepSequencer) Swing() float64         { return s.transport.Swing() }
func (s *StepSequencer) Running() bool          { return s.transport.Running() }
func (s *StepSequencer) Paused() bool           { return s.transport.Paused() }

// Start begins playback from step zero.
func (s *StepSequencer) Start() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.pos = 0
	s.dir = 1
	s.mu.Unlock()
	s.transport.Start()
}

// Stop halts playback and rewinds. Idempotent.
func (s *StepSequencer) Stop() {
	s.transport.Stop()
	s.mu.Lock()
	s.pos = 0
	s.dir = 1
	s.cancelOffsLocked()
	s.mu.Unlock()
}

// Pause halts playback keeping the playhead.
func (s *StepSequencer) Pause() {
	s.transport.Pause()
	s.mu.Lock()
	s.cancelOffsLocked()
	s.mu.Unlock()
}

// Resume continues after Pause.
func (s *StepSequencer) Resume() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.transport.Resume()
}

// Reset rewinds without stopping.
func (s *StepSequencer) Reset() {
	s.mu.Lock()
	s.pos = 0
	s.dir = 1
	s.mu.Unlock()
}

// Dispose stops the sequencer and drops all listeners.
func (s *StepSequencer) Dispose() {
	s.Stop()
	s.mu.Lock()
	s.disposed = true
	s.noteSubs = nil
	s.stepSubs = nil
	s.cycleSubs = nil
	s.mu.Unlock()
}

// Recording

// StartRecording arms step recording from the top of the grid.
func (s *StepSequencer) StartRecording() {
	s.mu.Lock()
	s.recording = true
	s.recordPos = 0
	s.mu.Unlock()
}

func (s *StepSequencer) StopRecording() {
	s.mu.Lock()
	s.recording = false
	s.mu.Unlock()
}

func (s *StepSequencer) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// RecordCursor returns the step the next recorded note lands on.
func (s *StepSequencer) RecordCursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordPos
}

// RecordNote writes a live note into the step at the record cursor and
// advances. Recording stops by itself when the cursor runs off the grid.
func (s *StepSequencer) RecordNote(pitch, velocity uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording || s.recordPos >= len(s.steps) {
		return
	}
	st := &s.steps[s.recordPos]
	st.Gate = true
	st.Pitch = int8(clampInt(int(pitch)-int(s.root), -128, 127))
	st.Velocity = uint8(clampInt(int(velocity), 1, 127))
	s.advanceRecordLocked()
}

// RecordRest writes a silent step at the record cursor and advances.
func (s *StepSequencer) RecordRest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording || s.recordPos >= len(s.steps) {
		return
	}
	s.steps[s.recordPos].Gate = false
	s.advanceRecordLocked()
}

func (s *StepSequencer) advanceRecordLocked() {
	s.recordPos++
	if s.recordPos >= len(s.steps) {
		s.recording = false
		s.recordPos = 0
	}
}

// Saved patterns

// SavePattern stores a snapshot of the grid under name.
func (s *StepSequencer) SavePattern(name string) {
	s.mu.Lock()
	snapshot := append([]Step(nil), s.steps...)
	s.mu.Unlock()
	s.store.Save(name, snapshot)
}

// LoadPattern restores a saved grid, adopting its step count. Returns false
// (no state change) for an unknown name.
func (s *StepSequencer) LoadPattern(name string) bool {
	steps, ok := s.store.Load(name)
	if !ok {
		return false
	}
	s.mu.Lock()
	s.steps = steps
	s.pos = 0
	s.dir = 1
	if s.recordPos >= len(s.steps) {
		s.recording = false
		s.recordPos = 0
	}
	s.mu.Unlock()
	return true
}

// DeletePattern removes a saved grid.
func (s *StepSequencer) DeletePattern(name string) {
	s.store.Delete(name)
}

// SavedPatterns lists saved grid names.
func (s *StepSequencer) SavedPatterns() []string {
	return s.store.Names()
}

// fireStep emits the step under the playhead, notifies playhead listeners,
// then advances per the playback mode.
func (s *StepSequencer) fireStep(at float64, step int64) {
	s.mu.Lock()
	if s.disposed || len(s.steps) == 0 {
		s.mu.Unlock()
		return
	}

	pos := s.pos
	st := s.steps[pos]
	cycle := s.advanceLocked()

	var events []NoteEvent
	if st.Gate {
		pitch := clampInt(int(s.root)+int(st.Pitch), 0, 127)
		events = append(events, NoteEvent{
			Pitch:    uint8(pitch),
			Velocity: st.Velocity,
			On:       true,
			When:     at,
			Gate:     st.Length,
		})
		stepDur := s.transport.StepDuration(step)
		s.scheduleOffLocked(uint8(pitch), at+stepDur*st.Length)
	}

	noteSubs := append([]NoteFunc(nil), s.noteSubs...)
	stepSubs := append(([]func(int))(nil), s.stepSubs...)
	var cycleSubs []func()
	if cycle {
		cycleSubs = append(cycleSubs, s.cycleSubs...)
	}
	s.mu.Unlock()

	for _, fn := range stepSubs {
		fn(pos)
	}
	for _, fn := range noteSubs {
		for _, ev := range events {
			fn(ev)
		}
	}
	for _, fn := range cycleSubs {
		fn()
	}
}

// advanceLocked moves the playhead one step per the mode and reports whether
// the pattern completed a cycle. Caller holds s.mu.
func (s *StepSequencer) advanceLocked() bool {
	n := len(s.steps)
	switch s.mode {
	case ModeReverse:
		s.pos = (s.pos - 1 + n) % n
		return s.pos == n-1
	case ModePingPong:
		s.pos += s.dir
		if s.pos >= n-1 {
			s.pos = n - 1
			s.dir = -1
			return false
		}
		if s.pos <= 0 {
			s.pos = 0
			s.dir = 1
			return true
		}
		return false
	case ModeRandom:
		s.pos = rand.Intn(n)
		return false
	default: // forward
		s.pos = (s.pos + 1) % n
		return s.pos == 0
	}
}

func (s *StepSequencer) cancelOffsLocked() {
	s.epoch++
	for id, cancel := range s.offCancels {
		cancel()
		delete(s.offCancels, id)
	}
}

func (s *StepSequencer) scheduleOffLocked(pitch uint8, offAt float64) {
	ep := s.epoch
	id := s.nextOffID
	s.nextOffID++
	delay := time.Duration((offAt - s.clock.Now()) * float64(time.Second))
	s.offCancels[id] = s.clock.AfterFunc(delay, func() {
		s.emitOff(ep, id, pitch, offAt)
	})
}

func (s *StepSequencer) emitOff(ep, id uint64, pitch uint8, offAt float64) {
	s.mu.Lock()
	if s.disposed || ep != s.epoch {
		s.mu.Unlock()
		return
	}
	delete(s.offCancels, id)
	subs := append([]NoteFunc(nil), s.noteSubs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(NoteEvent{Pitch: pitch, On: false, When: offAt})
	}
}
