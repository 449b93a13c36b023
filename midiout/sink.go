package midiout

import (
	"sort"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-arpeggio/debug"
	"go-arpeggio/engine"
)

// Sink consumes engine note events and puts them on a MIDI wire at their
// scheduled time. The engine hands events over ahead of their When timestamp
// (look-ahead), so the sink's job is to hold them until due, in order, and
// survive port changes mid-performance.
type Sink struct {
	clock engine.Clock

	mu       sync.Mutex
	queue    []engine.NoteEvent // sorted by When
	portName string
	channel  uint8 // 0-15 on the wire
	senders  map[string]func(gomidi.Message) error

	stopChan      chan struct{}
	interruptChan chan struct{} // signal dispatch loop to recalculate (queue changed)
	running       bool
}

// NewSink creates a sink; call Run in a goroutine to start dispatching.
func NewSink(clock engine.Clock) *Sink {
	return &Sink{
		clock:         clock,
		senders:       make(map[string]func(gomidi.Message) error),
		stopChan:      make(chan struct{}),
		interruptChan: make(chan struct{}, 1),
	}
}

// SetPort selects the MIDI output port by name. The port opens lazily on
// first send.
func (s *Sink) SetPort(name string) {
	s.mu.Lock()
	s.portName = name
	s.mu.Unlock()
}

func (s *Sink) Port() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portName
}

// SetChannel sets the MIDI channel, clamped to 1-16.
func (s *Sink) SetChannel(ch int) {
	if ch < 1 {
		ch = 1
	}
	if ch > 16 {
		ch = 16
	}
	s.mu.Lock()
	s.channel = uint8(ch - 1)
	s.mu.Unlock()
}

// HandleNote enqueues an engine event for timed dispatch. Register this with
// Arpeggiator.OnNote / StepSequencer.OnNote.
func (s *Sink) HandleNote(ev engine.NoteEvent) {
	s.mu.Lock()
	i := sort.Search(len(s.queue), func(i int) bool { return s.queue[i].When > ev.When })
	s.queue = append(s.queue, engine.NoteEvent{})
	copy(s.queue[i+1:], s.queue[i:])
	s.queue[i] = ev
	s.mu.Unlock()
	s.interrupt()
}

func (s *Sink) interrupt() {
	select {
	case s.interruptChan <- struct{}{}:
	default:
	}
}

// Run dispatches queued events until Stop. Blocking - run in a goroutine.
func (s *Sink) Run() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var wait time.Duration
		have := len(s.queue) > 0
		if have {
			wait = time.Duration((s.queue[0].When - s.clock.Now()) * float64(time.Second))
		}
		s.mu.Unlock()

		if !have {
			select {
			case <-s.stopChan:
				return
			case <-s.interruptChan:
			}
			continue
		}

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-s.stopChan:
				timer.Stop()
				return
			case <-s.interruptChan:
				// Queue changed; an earlier event may have arrived.
				timer.Stop()
				continue
			case <-timer.C:
			}
		}

		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			continue
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		ch := s.channel
		sender := s.senderLocked()
		s.mu.Unlock()

		if sender == nil {
			continue
		}
		if ev.On {
			sender(gomidi.NoteOn(ch, ev.Pitch, ev.Velocity))
		} else {
			sender(gomidi.NoteOff(ch, ev.Pitch))
		}
		debug.Log("midiout", "ch=%d on=%v note=%d vel=%d when=%.3f", ch+1, ev.On, ev.Pitch, ev.Velocity, ev.When)
	}
}

// Stop halts dispatch, drops queued events and silences the port.
func (s *Sink) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.queue = nil
	ch := s.channel
	sender := s.senderLocked()
	s.mu.Unlock()

	close(s.stopChan)
	if sender != nil {
		// All notes off, so nothing rings past shutdown.
		sender(gomidi.ControlChange(ch, 123, 0))
	}
}

// Flush drops queued events and silences the port without stopping the loop.
// Called on transport stop so released keys do not linger.
func (s *Sink) Flush() {
	s.mu.Lock()
	s.queue = nil
	ch := s.channel
	sender := s.senderLocked()
	s.mu.Unlock()

	if sender != nil {
		sender(gomidi.ControlChange(ch, 123, 0))
	}
	s.interrupt()
}

// senderLocked returns the sender for the configured port, opening it on
// first use. Caller holds s.mu.
func (s *Sink) senderLocked() func(gomidi.Message) error {
	if s.portName == "" {
		return nil
	}
	if sender, ok := s.senders[s.portName]; ok {
		return sender
	}
	for _, port := range gomidi.GetOutPorts() {
		if port.String() == s.portName {
			sender, err := gomidi.SendTo(port)
			if err != nil {
				debug.Log("midiout", "open %s: %v", s.portName, err)
				return nil
			}
			s.senders[s.portName] = sender
			return sender
		}
	}
	return nil
}

// ListPorts returns the names of all MIDI output ports.
func ListPorts() []string {
	var names []string
	for _, port := range gomidi.GetOutPorts() {
		names = append(names, port.String())
	}
	return names
}
