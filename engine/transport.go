package engine

import (
	"sync"
	"time"
)

const (
	// lookAheadSec is how far ahead of the clock events are computed. Must be
	// comfortably larger than the poll interval so jitter in the host timer
	// never lets the playhead catch up with the schedule.
	lookAheadSec = 0.1
	// pollEvery is how often the transport re-checks the window.
	pollEvery = 25 * time.Millisecond
)

// FireFunc is called once per due step, ahead of time, with the step's exact
// clock time and the running step index. Step parity drives swing.
type FireFunc func(at float64, step int64)

// Transport is the drift-resistant look-ahead scheduler shared by the
// arpeggiator and the step sequencer. It owns tempo, division and swing, and
// keeps a poll loop armed through Clock.AfterFunc. A generation counter
// invalidates callbacks that were already queued when the transport stopped,
// so a stopped or disposed engine never fires.
type Transport struct {
	clock Clock
	fire  FireFunc

	mu         sync.Mutex
	tempo      float64
	division   Division
	swing      float64
	running    bool
	paused     bool
	gen        uint64
	cancelPoll func()
	nextTime   float64
	step       int64
}

// NewTransport creates a stopped transport at 120 BPM, sixteenth notes.
func NewTransport(clock Clock, fire FireFunc) *Transport {
	return &Transport{
		clock:    clock,
		fire:     fire,
		tempo:    120,
		division: Div16,
	}
}

// SetTempo clamps to 40-300 BPM. Live changes apply from the next computed
// step.
func (t *Transport) SetTempo(bpm float64) {
	t.mu.Lock()
	t.tempo = clampFloat(bpm, 40, 300)
	t.mu.Unlock()
}

func (t *Transport) Tempo() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tempo
}

func (t *Transport) SetDivision(d Division) {
	t.mu.Lock()
	t.division = d
	t.mu.Unlock()
}

func (t *Transport) Division() Division {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.division
}

// SetSwing clamps to 0-1. Swing lengthens odd steps by up to 50%.
func (t *Transport) SetSwing(s float64) {
	t.mu.Lock()
	t.swing = clampFloat(s, 0, 1)
	t.mu.Unlock()
}

func (t *Transport) Swing() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.swing
}

// StepDuration returns the duration in seconds of the given step index at the
// current tempo/division/swing.
func (t *Transport) StepDuration(step int64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stepDurationLocked(step)
}

func (t *Transport) stepDurationLocked(step int64) float64 {
	d := 60 / t.tempo / t.division.Factor()
	if step%2 != 0 {
		d *= 1 + t.swing*0.5
	}
	return d
}

func (t *Transport) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Transport) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Start begins playback from step zero. The first step is due immediately, so
// the first fire happens inside this call, before any timer elapses.
func (t *Transport) Start() {
	t.start(true)
}

// Resume continues after Pause, keeping the step index (and its swing
// parity). No-op unless paused.
func (t *Transport) Resume() {
	t.mu.Lock()
	paused := t.paused
	t.mu.Unlock()
	if paused {
		t.start(false)
	}
}

func (t *Transport) start(reset bool) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.paused = false
	if reset {
		t.step = 0
	}
	t.nextTime = t.clock.Now()
	t.gen++
	gen := t.gen
	t.mu.Unlock()
	t.poll(gen)
}

// Stop halts playback and resets the step index. Pending polls are
// invalidated. Idempotent.
func (t *Transport) Stop() {
	t.halt(true)
}

// Pause halts playback but keeps the step index for Resume.
func (t *Transport) Pause() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.halt(false)
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

func (t *Transport) halt(reset bool) {
	t.mu.Lock()
	t.gen++
	t.running = false
	t.paused = false
	if reset {
		t.step = 0
	}
	if t.cancelPoll != nil {
		t.cancelPoll()
		t.cancelPoll = nil
	}
	t.mu.Unlock()
}

// poll computes every step due inside the look-ahead window, re-arms itself,
// then fires outside the lock so listeners may call back into the engine.
func (t *Transport) poll(gen uint64) {
	t.mu.Lock()
	if !t.running || gen != t.gen {
		t.mu.Unlock()
		return
	}
	type due struct {
		at   float64
		step int64
	}
	var dues []due
	horizon := t.clock.Now() + lookAheadSec
	for t.nextTime < horizon {
		dues = append(dues, due{t.nextTime, t.step})
		t.nextTime += t.stepDurationLocked(t.step)
		t.step++
	}
	t.cancelPoll = t.clock.AfterFunc(pollEvery, func() { t.poll(gen) })
	t.mu.Unlock()

	for _, d := range dues {
		t.fire(d.at, d.step)
	}
}
