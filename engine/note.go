package engine

// NoteEvent is what the engine emits to its listeners. The consumer (MIDI
// sink, softsynth, UI) is responsible for sample-accurate scheduling at When;
// the engine guarantees events are delivered ahead of that time.
type NoteEvent struct {
	Pitch    uint8
	Velocity uint8
	On       bool
	When     float64 // absolute Clock seconds
	Gate     float64 // fraction of the step the note sustains (note-on only)
}

// NoteFunc receives note-on/note-off events.
type NoteFunc func(NoteEvent)

// Division is a rhythmic subdivision relative to the quarter note.
type Division string

const (
	Div4   Division = "1/4"
	Div8   Division = "1/8"
	Div16  Division = "1/16"
	Div8T  Division = "1/8T"
	Div16T Division = "1/16T"
	Div32  Division = "1/32"
)

// Divisions lists the supported subdivisions in menu order.
var Divisions = []Division{Div4, Div8, Div16, Div8T, Div16T, Div32}

// Factor returns how many steps of this division fit in one quarter note.
// Triplet divisions pack three notes into the span of two.
func (d Division) Factor() float64 {
	switch d {
	case Div4:
		return 1
	case Div8:
		return 2
	case Div16:
		return 4
	case Div8T:
		return 3
	case Div16T:
		return 6
	case Div32:
		return 8
	default:
		return 4 // unknown divisions fall back to sixteenths
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
