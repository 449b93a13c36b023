package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "note":
		sendTestNote(os.Args[2:])
	case "poll":
		pollDevices()
	case "monitor":
		monitorInput()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list           - List all MIDI ports")
	fmt.Println("  note [port]    - Send a test arpeggio to an output port")
	fmt.Println("  poll           - Poll for device changes")
	fmt.Println("  monitor        - Print incoming notes from all inputs")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

func sendTestNote(args []string) {
	outs := midi.GetOutPorts()
	if len(outs) == 0 {
		fmt.Println("No MIDI output ports")
		return
	}

	idx := 0
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n >= 0 && n < len(outs) {
			idx = n
		}
	}
	outPort := outs[idx]
	fmt.Printf("Using output: %s\n", outPort.String())

	send, err := midi.SendTo(outPort)
	if err != nil {
		fmt.Printf("Error opening port: %v\n", err)
		return
	}

	// C major up, one octave, so you can hear timing by ear
	fmt.Println("Playing C-E-G-C...")
	for _, note := range []uint8{60, 64, 67, 72} {
		send(midi.NoteOn(0, note, 100))
		time.Sleep(150 * time.Millisecond)
		send(midi.NoteOff(0, note))
		time.Sleep(50 * time.Millisecond)
	}

	fmt.Println("Done!")
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect a keyboard to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()

		var inNames, outNames []string
		for _, p := range ins {
			inNames = append(inNames, p.String())
		}
		for _, p := range outs {
			outNames = append(outNames, p.String())
		}

		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)

			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}

func monitorInput() {
	ins := midi.GetInPorts()
	if len(ins) == 0 {
		fmt.Println("No MIDI input ports")
		return
	}

	for _, inPort := range ins {
		name := inPort.String()
		_, err := midi.ListenTo(inPort, func(msg midi.Message, timestampms int32) {
			var ch, note, vel uint8
			switch {
			case msg.GetNoteOn(&ch, &note, &vel) && vel > 0:
				fmt.Printf("[%s] note on  ch:%d note:%d vel:%d\n", name, ch, note, vel)
			case msg.GetNoteEnd(&ch, &note):
				fmt.Printf("[%s] note off ch:%d note:%d\n", name, ch, note)
			}
		})
		if err != nil {
			fmt.Printf("Error opening %s: %v\n", name, err)
			continue
		}
		fmt.Printf("Listening on %s\n", name)
	}

	fmt.Println("Ctrl+C to exit.")
	select {}
}
