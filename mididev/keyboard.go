package mididev

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Keyboard listens to one MIDI input port and forwards note events into the
// manager's merged stream.
type Keyboard struct {
	id       string
	inPort   drivers.In
	stopFunc func()
}

// NewKeyboard opens an input port. Note-ons with velocity zero arrive as
// note-offs, per MIDI convention.
func NewKeyboard(id string, inPort drivers.In, out chan<- NoteEvent) (*Keyboard, error) {
	kb := &Keyboard{
		id:     id,
		inPort: inPort,
	}

	stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
		var channel, note, velocity uint8
		switch {
		case msg.GetNoteOn(&channel, &note, &velocity) && velocity > 0:
			select {
			case out <- NoteEvent{Note: note, Velocity: velocity, Channel: channel, On: true}:
			default:
			}
		case msg.GetNoteEnd(&channel, &note):
			select {
			case out <- NoteEvent{Note: note, Channel: channel, On: false}:
			default:
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	kb.stopFunc = stop

	return kb, nil
}

func (kb *Keyboard) ID() string {
	return kb.id
}

func (kb *Keyboard) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	return nil
}
