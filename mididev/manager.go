package mididev

import (
	"context"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-arpeggio/debug"
)

// NoteEvent is live input from a connected keyboard.
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Channel  uint8
	On       bool
}

// DeviceEvent is emitted when keyboards connect/disconnect
type DeviceEvent struct {
	Type DeviceEventType
	ID   string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// Manager handles hot-plug detection of MIDI input devices and merges their
// note streams into one channel.
type Manager struct {
	keyboards map[string]*Keyboard
	mu        sync.RWMutex
	events    chan DeviceEvent
	notes     chan NoteEvent
	pollRate  time.Duration
}

// NewManager creates a new input device manager
func NewManager() *Manager {
	return &Manager{
		keyboards: make(map[string]*Keyboard),
		events:    make(chan DeviceEvent, 16),
		notes:     make(chan NoteEvent, 64),
		pollRate:  time.Second,
	}
}

// Events returns a channel of device connect/disconnect events
func (m *Manager) Events() <-chan DeviceEvent {
	return m.events
}

// Notes returns the merged live note stream from all connected keyboards
func (m *Manager) Notes() <-chan NoteEvent {
	return m.notes
}

// ConnectedIDs returns a snapshot of connected device names
func (m *Manager) ConnectedIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.keyboards))
	for id := range m.keyboards {
		ids = append(ids, id)
	}
	return ids
}

// Run starts the polling loop (blocking - run in goroutine)
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pollRate)
	defer ticker.Stop()

	// Initial scan
	m.scan()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			close(m.events)
			return
		case <-ticker.C:
			m.scan()
		}
	}
}

func (m *Manager) scan() {
	// Get current MIDI ports with timeout (CoreMIDI can hang)
	ch := make(chan []drivers.In, 1)
	go func() {
		ch <- gomidi.GetInPorts()
	}()

	var inPorts []drivers.In
	select {
	case inPorts = <-ch:
	case <-time.After(3 * time.Second):
		// MIDI backend is hung - skip this scan
		return
	}

	seenIDs := make(map[string]bool)
	for i, inPort := range inPorts {
		id := inPort.String()
		seenIDs[id] = true

		m.mu.RLock()
		_, exists := m.keyboards[id]
		m.mu.RUnlock()
		if exists {
			continue
		}

		kb, err := NewKeyboard(id, inPorts[i], m.notes)
		if err != nil {
			debug.Log("mididev", "open %s: %v", id, err)
			continue
		}

		m.mu.Lock()
		m.keyboards[id] = kb
		m.mu.Unlock()

		debug.Log("mididev", "connected %s", id)
		m.events <- DeviceEvent{Type: DeviceConnected, ID: id}
	}

	// Check for disconnects
	m.mu.Lock()
	var toRemove []string
	for id := range m.keyboards {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		m.keyboards[id].Close()
		delete(m.keyboards, id)
		debug.Log("mididev", "disconnected %s", id)
		m.events <- DeviceEvent{Type: DeviceDisconnected, ID: id}
	}
	m.mu.Unlock()
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, kb := range m.keyboards {
		kb.Close()
	}
	m.keyboards = make(map[string]*Keyboard)
}
