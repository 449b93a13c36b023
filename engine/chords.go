package engine

import "sort"

// Chord is a named set of semitone offsets from a root note.
type Chord struct {
	Name      string
	Intervals []int
}

// Notes resolves the chord against a root note. Offsets that leave the MIDI
// range are dropped.
func (c Chord) Notes(root uint8) []uint8 {
	out := make([]uint8, 0, len(c.Intervals))
	for _, iv := range c.Intervals {
		v := int(root) + iv
		if v < 0 || v > 127 {
			continue
		}
		out = append(out, uint8(v))
	}
	return out
}

// ProgressionStep is one chord of a progression: which chord shape, and the
// semitone offset of its root from the progression root.
type ProgressionStep struct {
	Chord  string
	Degree int
}

// Progression is a named ordered chord sequence, one chord per bar group.
type Progression struct {
	Name  string
	Steps []ProgressionStep
}

// Catalog is the immutable chord/progression table. Build one at startup with
// NewCatalog and share it by reference across engine instances; nothing
// mutates it after construction.
type Catalog struct {
	chords       map[string]Chord
	progressions map[string]Progression
}

// NewCatalog builds the built-in catalog.
func NewCatalog() *Catalog {
	c := &Catalog{
		chords:       make(map[string]Chord),
		progressions: make(map[string]Progression),
	}

	for _, ch := range []Chord{
		{Name: "major", Intervals: []int{0, 4, 7}},
		{Name: "minor", Intervals: []int{0, 3, 7}},
		{Name: "dim", Intervals: []int{0, 3, 6}},
		{Name: "aug", Intervals: []int{0, 4, 8}},
		{Name: "sus2", Intervals: []int{0, 2, 7}},
		{Name: "sus4", Intervals: []int{0, 5, 7}},
		{Name: "maj7", Intervals: []int{0, 4, 7, 11}},
		{Name: "min7", Intervals: []int{0, 3, 7, 10}},
		{Name: "dom7", Intervals: []int{0, 4, 7, 10}},
		{Name: "dim7", Intervals: []int{0, 3, 6, 9}},
		{Name: "m7b5", Intervals: []int{0, 3, 6, 10}},
		{Name: "maj9", Intervals: []int{0, 4, 7, 11, 14}},
		{Name: "min9", Intervals: []int{0, 3, 7, 10, 14}},
		{Name: "add9", Intervals: []int{0, 4, 7, 14}},
		{Name: "6", Intervals: []int{0, 4, 7, 9}},
		{Name: "m6", Intervals: []int{0, 3, 7, 9}},
		{Name: "power", Intervals: []int{0, 7}},
	} {
		c.chords[ch.Name] = ch
	}

	for _, p := range []Progression{
		{Name: "major-i-iv-v", Steps: []ProgressionStep{
			{Chord: "major", Degree: 0},
			{Chord: "major", Degree: 5},
			{Chord: "major", Degree: 7},
		}},
		{Name: "minor-i-iv-v", Steps: []ProgressionStep{
			{Chord: "minor", Degree: 0},
			{Chord: "minor", Degree: 5},
			{Chord: "minor", Degree: 7},
		}},
		{Name: "pop-i-v-vi-iv", Steps: []ProgressionStep{
			{Chord: "major", Degree: 0},
			{Chord: "major", Degree: 7},
			{Chord: "minor", Degree: 9},
			{Chord: "major", Degree: 5},
		}},
		{Name: "50s-i-vi-iv-v", Steps: []ProgressionStep{
			{Chord: "major", Degree: 0},
			{Chord: "minor", Degree: 9},
			{Chord: "major", Degree: 5},
			{Chord: "major", Degree: 7},
		}},
		{Name: "jazz-ii-v-i", Steps: []ProgressionStep{
			{Chord: "min7", Degree: 2},
			{Chord: "dom7", Degree: 7},
			{Chord: "maj7", Degree: 0},
		}},
		{Name: "andalusian", Steps: []ProgressionStep{
			{Chord: "minor", Degree: 0},
			{Chord: "major", Degree: -2},
			{Chord: "major", Degree: -4},
			{Chord: "major", Degree: -5},
		}},
		{Name: "blues-12bar", Steps: []ProgressionStep{
			{Chord: "dom7", Degree: 0},
			{Chord: "dom7", Degree: 0},
			{Chord: "dom7", Degree: 0},
			{Chord: "dom7", Degree: 0},
			{Chord: "dom7", Degree: 5},
			{Chord: "dom7", Degree: 5},
			{Chord: "dom7", Degree: 0},
			{Chord: "dom7", Degree: 0},
			{Chord: "dom7", Degree: 7},
			{Chord: "dom7", Degree: 5},
			{Chord: "dom7", Degree: 0},
			{Chord: "dom7", Degree: 7},
		}},
	} {
		c.progressions[p.Name] = p
	}

	return c
}

// ChordNames returns all chord names, sorted.
func (c *Catalog) ChordNames() []string {
	names := make([]string, 0, len(c.chords))
	for name := range c.chords {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chord looks up a chord by name.
func (c *Catalog) Chord(name string) (Chord, bool) {
	ch, ok := c.chords[name]
	return ch, ok
}

// ProgressionNames returns all progression names, sorted.
func (c *Catalog) ProgressionNames() []string {
	names := make([]string, 0, len(c.progressions))
	for name := range c.progressions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Progression looks up a progression by name.
func (c *Catalog) Progression(name string) (Progression, bool) {
	p, ok := c.progressions[name]
	return p, ok
}

// ChordNotes resolves a progression step against the progression root.
func (c *Catalog) ChordNotes(step ProgressionStep, root uint8) []uint8 {
	ch, ok := c.chords[step.Chord]
	if !ok {
		return nil
	}
	r := int(root) + step.Degree
	if r < 0 || r > 127 {
		return nil
	}
	return ch.Notes(uint8(r))
}
