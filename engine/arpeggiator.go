package engine

import (
	"math/rand"
	"sort"
	"sync"
	"time"
)

const (
	defaultVelocity = 100
	// Humanize bounds at humanize=1: timing shifts up to ±15ms, velocity up
	// to ±20.
	humanizeTimeMax = 0.015
	humanizeVelMax  = 20
)

// Arpeggiator turns a set of held notes into a timed stream of note events.
// All methods are safe for concurrent use; mutation happens under one mutex
// as the transport poll and UI setters race.
type Arpeggiator struct {
	clock     Clock
	catalog   *Catalog
	transport *Transport

	mu         sync.Mutex
	held       []uint8 // sorted ascending, unique
	velocities map[uint8]uint8
	seq        []uint8
	pos        int
	pattern    PatternKind
	octaves    int
	gate       float64
	humanize   float64
	prog       *progressionState
	noteSubs   []NoteFunc
	cycleSubs  []func()
	epoch      uint64 // bumped on stop/pause/dispose; orphans pending note-offs
	offCancels map[uint64]func()
	nextOffID  uint64
	disposed   bool
}

type progressionState struct {
	prog         Progression
	root         uint8
	idx          int
	barsPerChord int
	bars         int
}

// NewArpeggiator creates a stopped arpeggiator sharing the given catalog.
func NewArpeggiator(clock Clock, catalog *Catalog) *Arpeggiator {
	a := &Arpeggiator{
		clock:      clock,
		catalog:    catalog,
		velocities: make(map[uint8]uint8),
		pattern:    PatternUp,
		octaves:    1,
		gate:       0.8,
		offCancels: make(map[uint64]func()),
	}
	a.transport = NewTransport(clock, a.fireStep)
	return a
}

// OnNote registers a note event listener.
func (a *Arpeggiator) OnNote(fn NoteFunc) {
	a.mu.Lock()
	a.noteSubs = append(a.noteSubs, fn)
	a.mu.Unlock()
}

// OnCycleComplete registers a listener fired each time the sequence wraps
// back to position zero.
func (a *Arpeggiator) OnCycleComplete(fn func()) {
	a.mu.Lock()
	a.cycleSubs = append(a.cycleSubs, fn)
	a.mu.Unlock()
}

// SetNotes replaces the held-note set. Velocities default; live input goes
// through NoteOn/NoteOff instead.
func (a *Arpeggiator) SetNotes(notes []uint8) {
	a.mu.Lock()
	a.held = dedupeSorted(notes)
	a.velocities = make(map[uint8]uint8)
	a.regenerateLocked()
	a.mu.Unlock()
}

// NoteOn adds a held note with its played velocity.
func (a *Arpeggiator) NoteOn(pitch, velocity uint8) {
	a.mu.Lock()
	a.velocities[pitch] = uint8(clampInt(int(velocity), 1, 127))
	i := sort.Search(len(a.held), func(i int) bool { return a.held[i] >= pitch })
	if i == len(a.held) || a.held[i] != pitch {
		a.held = append(a.held, 0)
		copy(a.held[i+1:], a.held[i:])
		a.held[i] = pitch
	}
	a.regenerateLocked()
	a.mu.Unlock()
}

// NoteOff removes a held note.
func (a *Arpeggiator) NoteOff(pitch uint8) {
	a.mu.Lock()
	delete(a.velocities, pitch)
	for i, n := range a.held {
		if n == pitch {
			a.held = append(a.held[:i], a.held[i+1:]...)
			break
		}
	}
	a.regenerateLocked()
	a.mu.Unlock()
}

// HeldNotes returns a copy of the held-note set.
func (a *Arpeggiator) HeldNotes() []uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint8(nil), a.held...)
}

// Sequence returns a copy of the derived sequence.
func (a *Arpeggiator) Sequence() []uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint8(nil), a.seq...)
}

// Position returns the current sequence position.
func (a *Arpeggiator) Position() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pos
}

// SetChord replaces the held notes with a catalog chord built on root.
// Returns false (no state change) for an unknown chord name.
func (a *Arpeggiator) SetChord(root uint8, chordName string) bool {
	ch, ok := a.catalog.Chord(chordName)
	if !ok {
		return false
	}
	a.SetNotes(ch.Notes(root))
	return true
}

// LoadProgression activates a catalog progression: the first chord replaces
// the held notes, and every barsPerChord completed cycles the next chord
// loads automatically, wrapping at the end. Returns false (no state change)
// for an unknown name.
func (a *Arpeggiator) LoadProgression(name string, root uint8, barsPerChord int) bool {
	p, ok := a.catalog.Progression(name)
	if !ok || len(p.Steps) == 0 {
		return false
	}
	if barsPerChord < 1 {
		barsPerChord = 1
	}
	a.mu.Lock()
	a.prog = &progressionState{prog: p, root: root, barsPerChord: barsPerChord}
	a.held = dedupeSorted(a.catalog.ChordNotes(p.Steps[0], root))
	a.velocities = make(map[uint8]uint8)
	a.regenerateLocked()
	a.mu.Unlock()
	return true
}

// ClearProgression stops automatic chord changes, keeping the current notes.
func (a *Arpeggiator) ClearProgression() {
	a.mu.Lock()
	a.prog = nil
	a.mu.Unlock()
}

// ActiveProgression returns the active progression name, or "".
func (a *Arpeggiator) ActiveProgression() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.prog == nil {
		return ""
	}
	return a.prog.prog.Name
}

func (a *Arpeggiator) SetPattern(p PatternKind) {
	a.mu.Lock()
	a.pattern = p
	a.regenerateLocked()
	a.mu.Unlock()
}

func (a *Arpeggiator) Pattern() PatternKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pattern
}

// SetOctaves clamps to 1-4 and regenerates the sequence.
func (a *Arpeggiator) SetOctaves(n int) {
	a.mu.Lock()
	a.octaves = clampInt(n, 1, 4)
	a.regenerateLocked()
	a.mu.Unlock()
}

func (a *Arpeggiator) Octaves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.octaves
}

// SetGateLength clamps to 0-1.
func (a *Arpeggiator) SetGateLength(g float64) {
	a.mu.Lock()
	a.gate = clampFloat(g, 0, 1)
	a.mu.Unlock()
}

func (a *Arpeggiator) GateLength() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gate
}

// SetHumanize clamps to 0-1.
func (a *Arpeggiator) SetHumanize(h float64) {
	a.mu.Lock()
	a.humanize = clampFloat(h, 0, 1)
	a.mu.Unlock()
}

func (a *Arpeggiator) Humanize() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.humanize
}

// Tempo/division/swing delegate to the transport.

func (a *Arpeggiator) SetTempo(bpm float64)     { a.transport.SetTempo(bpm) }
func (a *Arpeggiator) Tempo() float64           { return a.transport.Tempo() }
func (a *Arpeggiator) SetDivision(d Division)   { a.transport.SetDivision(d) }
func (a *Arpeggiator) Division() Division       { return a.transport.Division() }
func (a *Arpeggiator) SetSwing(s float64)       { a.transport.SetSwing(s) }
func (a *Arpeggiator) Swing() float64           { return a.transport.Swing() }
func (a *Arpeggiator) Running() bool            { return a.transport.Running() }
func (a *Arpeggiator) Paused() bool             { return a.transport.Paused() }

// Start begins playback. The first note fires inside this call; no timer
// tick has to elapse first.
func (a *Arpeggiator) Start() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.pos = 0
	a.mu.Unlock()
	a.transport.Start()
}

// Stop halts playback and resets position to zero. Pending note-offs are
// cancelled. Idempotent.
func (a *Arpeggiator) Stop() {
	a.transport.Stop()
	a.mu.Lock()
	a.pos = 0
	if a.prog != nil {
		a.prog.bars = 0
	}
	a.cancelOffsLocked()
	a.mu.Unlock()
}

// Pause halts playback, keeping the position for Resume.
func (a *Arpeggiator) Pause() {
	a.transport.Pause()
	a.mu.Lock()
	a.cancelOffsLocked()
	a.mu.Unlock()
}

// Resume continues after Pause.
func (a *Arpeggiator) Resume() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	a.transport.Resume()
}

// Reset rewinds to position zero without stopping.
func (a *Arpeggiator) Reset() {
	a.mu.Lock()
	a.pos = 0
	if a.prog != nil {
		a.prog.bars = 0
	}
	a.mu.Unlock()
}

// Dispose stops the engine and drops all listeners. A disposed arpeggiator
// never fires again, even for callbacks already queued in the host timer.
func (a *Arpeggiator) Dispose() {
	a.Stop()
	a.mu.Lock()
	a.disposed = true
	a.noteSubs = nil
	a.cycleSubs = nil
	a.mu.Unlock()
}

// regenerateLocked rebuilds the derived sequence and rewinds. Caller holds
// a.mu.
func (a *Arpeggiator) regenerateLocked() {
	a.seq = GenerateSequence(a.held, a.octaves, a.pattern)
	a.pos = 0
}

func (a *Arpeggiator) cancelOffsLocked() {
	a.epoch++
	for id, cancel := range a.offCancels {
		cancel()
		delete(a.offCancels, id)
	}
}

// fireStep emits the note(s) at the current position and advances. Called by
// the transport ahead of the step's due time.
func (a *Arpeggiator) fireStep(at float64, step int64) {
	a.mu.Lock()
	if a.disposed || len(a.seq) == 0 {
		a.mu.Unlock()
		return
	}

	var pitches []uint8
	var wrapped bool
	if a.pattern == PatternChord {
		// One strike of the whole expanded set per step; every step is a
		// complete pass.
		pitches = append(pitches, a.seq...)
		wrapped = true
	} else {
		pitches = []uint8{a.seq[a.pos]}
		a.pos++
		if a.pos >= len(a.seq) {
			a.pos = 0
			wrapped = true
		}
	}

	when := at
	if a.humanize > 0 {
		when += (rand.Float64()*2 - 1) * a.humanize * humanizeTimeMax
	}
	events := make([]NoteEvent, 0, len(pitches))
	for _, p := range pitches {
		vel := a.velocities[p]
		if vel == 0 {
			vel = defaultVelocity
		}
		if a.humanize > 0 {
			jitter := int(float64((rand.Intn(2*humanizeVelMax+1) - humanizeVelMax)) * a.humanize)
			vel = uint8(clampInt(int(vel)+jitter, 1, 127))
		}
		events = append(events, NoteEvent{
			Pitch:    p,
			Velocity: vel,
			On:       true,
			When:     when,
			Gate:     a.gate,
		})
	}

	stepDur := a.transport.StepDuration(step)
	offAt := at + stepDur*a.gate
	a.scheduleOffLocked(pitches, offAt)

	if wrapped && a.prog != nil {
		a.prog.bars++
		if a.prog.bars >= a.prog.barsPerChord {
			a.prog.bars = 0
			a.prog.idx = (a.prog.idx + 1) % len(a.prog.prog.Steps)
			a.held = dedupeSorted(a.catalog.ChordNotes(a.prog.prog.Steps[a.prog.idx], a.prog.root))
			a.velocities = make(map[uint8]uint8)
			a.regenerateLocked()
		}
	}

	noteSubs := append([]NoteFunc(nil), a.noteSubs...)
	var cycleSubs []func()
	if wrapped {
		cycleSubs = append(cycleSubs, a.cycleSubs...)
	}
	a.mu.Unlock()

	for _, fn := range noteSubs {
		for _, ev := range events {
			fn(ev)
		}
	}
	for _, fn := range cycleSubs {
		fn()
	}
}

// scheduleOffLocked arms the release for the pitches just struck. Caller
// holds a.mu. The epoch guard keeps a stopped engine from releasing notes it
// no longer owns.
func (a *Arpeggiator) scheduleOffLocked(pitches []uint8, offAt float64) {
	ep := a.epoch
	id := a.nextOffID
	a.nextOffID++
	delay := time.Duration((offAt - a.clock.Now()) * float64(time.Second))
	off := append([]uint8(nil), pitches...)
	a.offCancels[id] = a.clock.AfterFunc(delay, func() {
		a.emitOff(ep, id, off, offAt)
	})
}

func (a *Arpeggiator) emitOff(ep, id uint64, pitches []uint8, offAt float64) {
	a.mu.Lock()
	if a.disposed || ep != a.epoch {
		a.mu.Unlock()
		return
	}
	delete(a.offCancels, id)
	subs := append([]NoteFunc(nil), a.noteSubs...)
	a.mu.Unlock()

	for _, fn := range subs {
		for _, p := range pitches {
			fn(NoteEvent{Pitch: p, On: false, When: offAt})
		}
	}
}
