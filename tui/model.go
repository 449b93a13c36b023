package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-arpeggio/engine"
	"go-arpeggio/mididev"
	"go-arpeggio/midiout"
	"go-arpeggio/theme"
	"go-arpeggio/widgets"
)

type page int

const (
	pageArp page = iota
	pageSeq
)

// pianoKeys maps a computer keyboard row to semitones above the root,
// mirroring the classic DAW typing-keyboard layout (a=C, w=C#, s=D, ...).
var pianoKeys = map[string]uint8{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5,
	"t": 6, "g": 7, "y": 8, "h": 9, "u": 10, "j": 11, "k": 12,
}

const pianoRoot uint8 = 60 // C4

const scratchSlot = "scratch"

type Model struct {
	Arp       *engine.Arpeggiator
	Seq       *engine.StepSequencer
	Catalog   *engine.Catalog
	Sink      *midiout.Sink
	DeviceMgr *mididev.Manager
	Theme     *theme.Theme
	Updates   <-chan struct{}

	page      page
	cursor    int
	status    string
	lastChord string
	devices   map[string]bool
	quitting  bool
}

type UpdateMsg struct{}

type DeviceEventMsg mididev.DeviceEvent

func NewModel(arp *engine.Arpeggiator, seq *engine.StepSequencer, catalog *engine.Catalog,
	sink *midiout.Sink, deviceMgr *mididev.Manager, th *theme.Theme, updates <-chan struct{}) Model {
	return Model{
		Arp:       arp,
		Seq:       seq,
		Catalog:   catalog,
		Sink:      sink,
		DeviceMgr: deviceMgr,
		Theme:     th,
		Updates:   updates,
		devices:   make(map[string]bool),
	}
}

func ListenForUpdates(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-updates
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *mididev.Manager) tea.Cmd {
	return func() tea.Msg {
		event := <-deviceMgr.Events()
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Updates),
		ListenForDevices(m.DeviceMgr),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		next := m.handleKey(msg.String())
		if next.quitting {
			return next, tea.Quit
		}
		return next, nil

	case UpdateMsg:
		return m, ListenForUpdates(m.Updates)

	case DeviceEventMsg:
		if msg.Type == mididev.DeviceConnected {
			m.devices[msg.ID] = true
			m.status = "connected " + msg.ID
		} else {
			delete(m.devices, msg.ID)
			m.status = "disconnected " + msg.ID
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m Model) handleKey(key string) Model {
	m.status = ""

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.Arp.Dispose()
		m.Seq.Dispose()
		m.Sink.Stop()
		return m

	case "tab":
		if m.page == pageArp {
			m.page = pageSeq
		} else {
			m.page = pageArp
		}
		return m

	case "p":
		m.togglePlay()
		return m

	case "P":
		m.togglePause()
		return m

	case "+", "=":
		m.focused().SetTempo(m.focused().Tempo() + 5)
		return m

	case "-", "_":
		m.focused().SetTempo(m.focused().Tempo() - 5)
		return m

	case "v":
		m.focused().SetDivision(nextDivision(m.focused().Division()))
		return m

	case "[":
		m.focused().SetSwing(m.focused().Swing() - 0.1)
		return m

	case "]":
		m.focused().SetSwing(m.focused().Swing() + 0.1)
		return m
	}

	if m.page == pageArp {
		return m.handleArpKey(key)
	}
	return m.handleSeqKey(key)
}

// transportControls is the slice of controls both engines share, so the
// global keys can act on whichever page is focused.
type transportControls interface {
	SetTempo(float64)
	Tempo() float64
	SetDivision(engine.Division)
	Division() engine.Division
	SetSwing(float64)
	Swing() float64
	Running() bool
	Paused() bool
	Start()
	Stop()
	Pause()
	Resume()
}

func (m *Model) focused() transportControls {
	if m.page == pageArp {
		return m.Arp
	}
	return m.Seq
}

func (m *Model) togglePlay() {
	eng := m.focused()
	if eng.Running() {
		eng.Stop()
		m.Sink.Flush()
	} else {
		eng.Start()
	}
}

func (m *Model) togglePause() {
	eng := m.focused()
	switch {
	case eng.Paused():
		eng.Resume()
	case eng.Running():
		eng.Pause()
	}
}

func (m Model) handleArpKey(key string) Model {
	if semis, ok := pianoKeys[key]; ok {
		m.toggleHeld(pianoRoot + semis)
		return m
	}

	switch key {
	case "backspace":
		m.Arp.SetNotes(nil)
		m.Arp.ClearProgression()

	case "up":
		m.Arp.SetOctaves(m.Arp.Octaves() + 1)

	case "down":
		m.Arp.SetOctaves(m.Arp.Octaves() - 1)

	case "left":
		m.Arp.SetPattern(cycleString(engine.PatternKinds, m.Arp.Pattern(), -1))

	case "right":
		m.Arp.SetPattern(cycleString(engine.PatternKinds, m.Arp.Pattern(), +1))

	case "{":
		m.Arp.SetGateLength(m.Arp.GateLength() - 0.1)

	case "}":
		m.Arp.SetGateLength(m.Arp.GateLength() + 0.1)

	case "9":
		m.Arp.SetHumanize(m.Arp.Humanize() - 0.1)

	case "0":
		m.Arp.SetHumanize(m.Arp.Humanize() + 0.1)

	case "c":
		name := cycleString(m.Catalog.ChordNames(), m.lastChord, +1)
		m.lastChord = name
		m.Arp.SetChord(pianoRoot, name)
		m.status = "chord " + name

	case "b":
		name := cycleString(m.Catalog.ProgressionNames(), m.Arp.ActiveProgression(), +1)
		if m.Arp.LoadProgression(name, pianoRoot, 1) {
			m.status = "progression " + name
		}

	case "B":
		m.Arp.ClearProgression()
		m.status = "progression off"
	}

	return m
}

func (m *Model) toggleHeld(pitch uint8) {
	for _, held := range m.Arp.HeldNotes() {
		if held == pitch {
			m.Arp.NoteOff(pitch)
			return
		}
	}
	m.Arp.NoteOn(pitch, 100)
}

func (m Model) handleSeqKey(key string) Model {
	n := m.Seq.StepCount()

	switch key {
	case "h", "left":
		m.cursor = (m.cursor - 1 + n) % n

	case "l", "right":
		m.cursor = (m.cursor + 1) % n

	case " ":
		m.Seq.ToggleStep(m.cursor)

	case "k", "up":
		m.nudgeStep(func(st engine.Step, u *engine.StepUpdate) {
			p := st.Pitch + 1
			u.Pitch = &p
		})

	case "j", "down":
		m.nudgeStep(func(st engine.Step, u *engine.StepUpdate) {
			p := st.Pitch - 1
			u.Pitch = &p
		})

	case "u":
		m.nudgeStep(func(st engine.Step, u *engine.StepUpdate) {
			v := st.Velocity
			if v > 10 {
				v -= 10
			} else {
				v = 1
			}
			u.Velocity = &v
		})

	case "i":
		m.nudgeStep(func(st engine.Step, u *engine.StepUpdate) {
			v := st.Velocity
			if v < 117 {
				v += 10
			} else {
				v = 127
			}
			u.Velocity = &v
		})

	case ",":
		m.nudgeStep(func(st engine.Step, u *engine.StepUpdate) {
			l := st.Length - 0.1
			u.Length = &l
		})

	case ".":
		m.nudgeStep(func(st engine.Step, u *engine.StepUpdate) {
			l := st.Length + 0.1
			u.Length = &l
		})

	case "m":
		m.Seq.SetMode(nextMode(m.Seq.Mode()))

	case "s":
		m.Seq.SetSteps(nextStepCount(n))
		if m.cursor >= m.Seq.StepCount() {
			m.cursor = 0
		}

	case "r":
		if m.Seq.IsRecording() {
			m.Seq.StopRecording()
			m.status = "recording off"
		} else {
			m.Seq.StartRecording()
			m.status = "recording"
		}

	case "x":
		if m.Seq.IsRecording() {
			m.Seq.RecordRest()
		}

	case "R":
		m.Seq.Randomize(0.5)

	case "C":
		m.Seq.Clear()

	case "w":
		m.Seq.SavePattern(scratchSlot)
		m.status = "saved " + scratchSlot

	case "e":
		if m.Seq.LoadPattern(scratchSlot) {
			m.status = "loaded " + scratchSlot
		} else {
			m.status = "no saved pattern"
		}
	}

	return m
}

func (m *Model) nudgeStep(edit func(engine.Step, *engine.StepUpdate)) {
	st, ok := m.Seq.GetStep(m.cursor)
	if !ok {
		return
	}
	var u engine.StepUpdate
	edit(st, &u)
	m.Seq.UpdateStep(m.cursor, u)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	eng := m.focused()
	playState := "STOP"
	if eng.Paused() {
		playState = "PAUSE"
	} else if eng.Running() {
		playState = "PLAY"
	}

	pageName := "arp"
	if m.page == pageSeq {
		pageName = "seq"
	}

	header := headerStyle.Render(fmt.Sprintf("go-arpeggio  %-5s %3.0fbpm  %s  swing:%s  [%s]  kbd:%d",
		playState, eng.Tempo(), eng.Division(), widgets.Meter(eng.Swing(), 5), pageName, len(m.devices)))

	var body string
	var help string
	if m.page == pageArp {
		body = m.arpView()
		help = "a-k:notes  left/right:pattern  up/down:oct  {}:gate  9/0:human  c:chord  b/B:prog  backspace:clear"
	} else {
		body = m.seqView()
		help = "hjkl:nav/pitch  space:toggle  u/i:vel  ,/.:len  m:mode  s:steps  r:rec  x:rest  R:rand  C:clear  w/e:save/load"
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(body)
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render(help))
	out.WriteString("\n")
	out.WriteString(dimStyle.Render("tab:page  p:play  P:pause  +/-:tempo  v:division  [/]:swing  q:quit"))

	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render(m.status))
	}

	return out.String()
}

func (m Model) arpView() string {
	activeStyle := lipgloss.NewStyle().Foreground(m.Theme.Active())
	cursorStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor()).Bold(true)
	fgStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	var out strings.Builder

	held := m.Arp.HeldNotes()
	out.WriteString(fgStyle.Render("held  "))
	if len(held) == 0 {
		out.WriteString(dimStyle.Render("(none)"))
	}
	for i, n := range held {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(activeStyle.Render(noteName(n)))
	}
	out.WriteString("\n\n")

	seq := m.Arp.Sequence()
	pos := m.Arp.Position()
	out.WriteString(fgStyle.Render("seq   "))
	for i, n := range seq {
		if i > 0 {
			out.WriteString(" ")
		}
		name := noteName(n)
		if i == pos && m.Arp.Running() {
			out.WriteString(cursorStyle.Render(name))
		} else {
			out.WriteString(dimStyle.Render(name))
		}
	}
	out.WriteString("\n\n")

	out.WriteString(fgStyle.Render(fmt.Sprintf("pattern:%-12s oct:%d  gate:%s  human:%s",
		m.Arp.Pattern(), m.Arp.Octaves(),
		widgets.Meter(m.Arp.GateLength(), 5), widgets.Meter(m.Arp.Humanize(), 5))))

	if prog := m.Arp.ActiveProgression(); prog != "" {
		out.WriteString("\n")
		out.WriteString(activeStyle.Render("prog: " + prog))
	}

	return out.String()
}

func (m Model) seqView() string {
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	cursorStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor()).Bold(true)
	playStyle := lipgloss.NewStyle().Foreground(m.Theme.Success()).Bold(true)
	recStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning()).Bold(true)

	steps := m.Seq.Steps()
	pos := m.Seq.Position()
	playing := m.Seq.Running() && !m.Seq.Paused()
	recording := m.Seq.IsRecording()
	recCursor := m.Seq.RecordCursor()
	sym := m.Theme.Symbols

	var out strings.Builder
	for i, st := range steps {
		if i > 0 && i%16 == 0 {
			out.WriteString("\n")
		} else if i > 0 {
			out.WriteString(" ")
		}

		var glyph rune
		var style lipgloss.Style
		switch {
		case recording && i == recCursor:
			glyph = sym.StepRecord
			style = recStyle
		case playing && i == pos && i == m.cursor:
			glyph = sym.CursorPlayhead
			style = playStyle
		case playing && i == pos:
			glyph = sym.StepPlayhead
			style = playStyle
		case i == m.cursor && st.Gate:
			glyph = sym.CursorActive
			style = cursorStyle
		case i == m.cursor:
			glyph = sym.CursorEmpty
			style = cursorStyle
		case st.Gate:
			glyph = sym.StepActive
			style = lipgloss.NewStyle().Foreground(m.Theme.Color(float64(st.Velocity) / 127))
		default:
			glyph = sym.StepEmpty
			style = dimStyle
		}
		out.WriteString(style.Render(string(glyph)))
	}
	out.WriteString("\n\n")

	st, _ := m.Seq.GetStep(m.cursor)
	out.WriteString(dimStyle.Render(fmt.Sprintf("step %02d  pitch:%+d  vel:%d  len:%.2f",
		m.cursor, st.Pitch, st.Velocity, st.Length)))
	out.WriteString("\n")
	out.WriteString(dimStyle.Render(fmt.Sprintf("mode:%s  steps:%d  root:%s  saved:%s",
		m.Seq.Mode(), len(steps), noteName(m.Seq.RootNote()),
		strings.Join(m.Seq.SavedPatterns(), ","))))

	return out.String()
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func noteName(n uint8) string {
	return fmt.Sprintf("%s%d", noteNames[n%12], int(n)/12-1)
}

// cycleString steps through options relative to current, wrapping. Unknown
// current lands on the first option.
func cycleString[T ~string](options []T, current T, dir int) T {
	for i, o := range options {
		if o == current {
			return options[(i+dir+len(options))%len(options)]
		}
	}
	return options[0]
}

func nextDivision(d engine.Division) engine.Division {
	return cycleString(engine.Divisions, d, +1)
}

func nextMode(mode engine.PlayMode) engine.PlayMode {
	return cycleString(engine.PlayModes, mode, +1)
}

func nextStepCount(n int) int {
	counts := []int{4, 8, 16, 32, 64}
	for i, c := range counts {
		if c == n {
			return counts[(i+1)%len(counts)]
		}
	}
	return 16
}
