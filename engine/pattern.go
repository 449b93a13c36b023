package engine

import (
	"math/rand"
	"sort"
)

// PatternKind selects how a set of held notes is expanded into a repeating
// sequence.
type PatternKind string

const (
	PatternUp          PatternKind = "up"
	PatternDown        PatternKind = "down"
	PatternUpDown      PatternKind = "updown"
	PatternDownUp      PatternKind = "downup"
	PatternConverge    PatternKind = "converge"
	PatternDiverge     PatternKind = "diverge"
	PatternRandom      PatternKind = "random"
	PatternPinchedUp   PatternKind = "pinched-up"
	PatternPinchedDown PatternKind = "pinched-down"
	PatternChord       PatternKind = "chord"
)

// PatternKinds lists all patterns in menu order.
var PatternKinds = []PatternKind{
	PatternUp, PatternDown, PatternUpDown, PatternDownUp,
	PatternConverge, PatternDiverge, PatternRandom,
	PatternPinchedUp, PatternPinchedDown, PatternChord,
}

// GenerateSequence expands held notes across octaves into the repeating
// sequence the arpeggiator walks. Pure: no timing, no engine state. The input
// is treated as a set; it is sorted and deduplicated before expansion. An
// empty input yields an empty sequence.
//
// For PatternChord the caller must treat the whole returned sequence as one
// simultaneous strike per step rather than a melodic walk.
func GenerateSequence(held []uint8, octaves int, pattern PatternKind) []uint8 {
	if len(held) == 0 {
		return nil
	}
	octaves = clampInt(octaves, 1, 4)

	notes := dedupeSorted(held)
	expanded := expandOctaves(notes, octaves)

	// A single held note degenerates to the same rising-octave run for every
	// pattern.
	if len(notes) == 1 {
		return expanded
	}

	switch pattern {
	case PatternDown:
		return reversed(expanded)
	case PatternUpDown:
		return upDown(expanded)
	case PatternDownUp:
		return reversed(upDown(expanded))
	case PatternConverge:
		return converge(expanded)
	case PatternDiverge:
		return reversed(converge(expanded))
	case PatternRandom:
		return randomDraw(expanded)
	case PatternPinchedUp:
		return pinched(expanded, false)
	case PatternPinchedDown:
		return pinched(expanded, true)
	case PatternUp, PatternChord:
		return expanded
	default:
		return expanded
	}
}

func dedupeSorted(held []uint8) []uint8 {
	notes := make([]uint8, len(held))
	copy(notes, held)
	sort.Slice(notes, func(i, j int) bool { return notes[i] < notes[j] })
	out := notes[:0]
	for i, n := range notes {
		if i == 0 || n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	return out
}

// expandOctaves repeats the note set per octave, shifted +12 per octave,
// octaves concatenated ascending. Notes past the MIDI range pin at 127.
func expandOctaves(notes []uint8, octaves int) []uint8 {
	out := make([]uint8, 0, len(notes)*octaves)
	for oct := 0; oct < octaves; oct++ {
		for _, n := range notes {
			v := int(n) + 12*oct
			if v > 127 {
				v = 127
			}
			out = append(out, uint8(v))
		}
	}
	return out
}

func reversed(seq []uint8) []uint8 {
	out := make([]uint8, len(seq))
	for i, n := range seq {
		out[len(seq)-1-i] = n
	}
	return out
}

// upDown is the ascending run followed by the descending run with neither
// boundary note repeated.
func upDown(seq []uint8) []uint8 {
	if len(seq) <= 2 {
		return seq
	}
	out := make([]uint8, 0, 2*len(seq)-2)
	out = append(out, seq...)
	for i := len(seq) - 2; i >= 1; i-- {
		out = append(out, seq[i])
	}
	return out
}

// converge alternates lowest-remaining and highest-remaining, narrowing
// inward.
func converge(seq []uint8) []uint8 {
	out := make([]uint8, 0, len(seq))
	lo, hi := 0, len(seq)-1
	for lo <= hi {
		out = append(out, seq[lo])
		lo++
		if lo <= hi {
			out = append(out, seq[hi])
			hi--
		}
	}
	return out
}

// randomDraw draws uniformly from the expanded set once per slot. The draw
// happens at generation time; the sequence is then fixed until the next
// regeneration.
func randomDraw(seq []uint8) []uint8 {
	out := make([]uint8, len(seq))
	for i := range out {
		out[i] = seq[rand.Intn(len(seq))]
	}
	return out
}

// pinched revisits the root (lowest expanded note) between every step of the
// up or down walk.
func pinched(seq []uint8, down bool) []uint8 {
	if len(seq) <= 1 {
		return seq
	}
	root := seq[0]
	rest := seq[1:]
	if down {
		rest = reversed(rest)
	}
	out := make([]uint8, 0, 2*len(rest))
	for _, n := range rest {
		out = append(out, root, n)
	}
	return out
}
