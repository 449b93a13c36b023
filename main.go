package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"go-arpeggio/config"
	"go-arpeggio/debug"
	"go-arpeggio/engine"
	"go-arpeggio/mididev"
	"go-arpeggio/midiout"
	"go-arpeggio/theme"
	"go-arpeggio/tui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Debug {
		debug.Enable()
		defer debug.Disable()
	}

	th := theme.New(theme.LoadGPLOrDefault(cfg.Palette))

	// Engines share one wall clock so arp and sequencer events interleave
	// correctly at the output.
	clock := engine.NewWallClock()
	catalog := engine.NewCatalog()
	arp := engine.NewArpeggiator(clock, catalog)
	store := engine.NewPatternStore()
	seq := engine.NewStepSequencer(clock, store)

	applyEngineConfig(cfg, arp, seq)

	sink := midiout.NewSink(clock)
	if cfg.Output.PortName != "" {
		sink.SetPort(cfg.Output.PortName)
	}
	sink.SetChannel(cfg.Output.Channel)
	go sink.Run()

	arp.OnNote(sink.HandleNote)
	seq.OnNote(sink.HandleNote)

	// Wake the TUI whenever the playhead moves.
	updates := make(chan struct{}, 1)
	notify := func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	}
	arp.OnNote(func(engine.NoteEvent) { notify() })
	seq.OnStep(func(int) { notify() })

	deviceMgr := mididev.NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go deviceMgr.Run(ctx)

	// Live keyboard input plays the arpeggiator, or fills the grid while
	// the sequencer is recording.
	go func() {
		for ev := range deviceMgr.Notes() {
			switch {
			case ev.On && seq.IsRecording():
				seq.RecordNote(ev.Note, ev.Velocity)
			case ev.On:
				arp.NoteOn(ev.Note, ev.Velocity)
			default:
				arp.NoteOff(ev.Note)
			}
			notify()
		}
	}()

	m := tui.NewModel(arp, seq, catalog, sink, deviceMgr, th, updates)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	saveEngineConfig(cfg, arp, seq, sink)
	if err := cfg.Save(); err != nil {
		debug.Log("main", "save config: %v", err)
	}
}

func applyEngineConfig(cfg *config.Config, arp *engine.Arpeggiator, seq *engine.StepSequencer) {
	arp.SetTempo(cfg.Engine.Tempo)
	arp.SetDivision(engine.Division(cfg.Engine.Division))
	arp.SetSwing(cfg.Engine.Swing)
	arp.SetPattern(engine.PatternKind(cfg.Engine.Pattern))
	arp.SetOctaves(cfg.Engine.Octaves)
	arp.SetGateLength(cfg.Engine.Gate)

	seq.SetTempo(cfg.Engine.Tempo)
	seq.SetDivision(engine.Division(cfg.Engine.Division))
	seq.SetSwing(cfg.Engine.Swing)
	seq.SetSteps(cfg.Engine.Steps)
	if cfg.Engine.RootNote >= 0 && cfg.Engine.RootNote <= 127 {
		seq.SetRootNote(uint8(cfg.Engine.RootNote))
	}
}

func saveEngineConfig(cfg *config.Config, arp *engine.Arpeggiator, seq *engine.StepSequencer, sink *midiout.Sink) {
	cfg.Engine.Tempo = arp.Tempo()
	cfg.Engine.Division = string(arp.Division())
	cfg.Engine.Swing = arp.Swing()
	cfg.Engine.Pattern = string(arp.Pattern())
	cfg.Engine.Octaves = arp.Octaves()
	cfg.Engine.Gate = arp.GateLength()
	cfg.Engine.Steps = seq.StepCount()
	cfg.Engine.RootNote = int(seq.RootNote())
	cfg.Output.PortName = sink.Port()
}
