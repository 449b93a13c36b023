package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogChordLookup(t *testing.T) {
	cat := NewCatalog()

	tests := []struct {
		chord string
		root  uint8
		notes []uint8
	}{
		{"major", 60, []uint8{60, 64, 67}},
		{"minor", 57, []uint8{57, 60, 64}},
		{"maj7", 60, []uint8{60, 64, 67, 71}},
		{"dom7", 67, []uint8{67, 71, 74, 77}},
		{"power", 36, []uint8{36, 43}},
	}
	for _, tt := range tests {
		ch, ok := cat.Chord(tt.chord)
		require.True(t, ok, "chord %s", tt.chord)
		assert.Equal(t, tt.notes, ch.Notes(tt.root), "chord %s on %d", tt.chord, tt.root)
	}

	_, ok := cat.Chord("not-a-chord")
	assert.False(t, ok)
}

func TestCatalogChordNamesSorted(t *testing.T) {
	cat := NewCatalog()
	names := cat.ChordNames()
	assert.Contains(t, names, "major")
	assert.Contains(t, names, "min7")
	assert.IsIncreasing(t, names)
}

func TestCatalogProgressions(t *testing.T) {
	cat := NewCatalog()

	p, ok := cat.Progression("major-i-iv-v")
	require.True(t, ok)
	require.Len(t, p.Steps, 3)
	assert.Equal(t, []uint8{60, 64, 67}, cat.ChordNotes(p.Steps[0], 60))
	assert.Equal(t, []uint8{65, 69, 72}, cat.ChordNotes(p.Steps[1], 60))
	assert.Equal(t, []uint8{67, 71, 74}, cat.ChordNotes(p.Steps[2], 60))

	blues, ok := cat.Progression("blues-12bar")
	require.True(t, ok)
	assert.Len(t, blues.Steps, 12)

	_, ok = cat.Progression("not-a-real-name")
	assert.False(t, ok)
}

func TestChordNotesDropsOutOfRange(t *testing.T) {
	cat := NewCatalog()
	ch, ok := cat.Chord("maj9")
	require.True(t, ok)
	notes := ch.Notes(120)
	for _, n := range notes {
		assert.LessOrEqual(t, n, uint8(127))
	}
	assert.Len(t, notes, 3) // 131 and 134 dropped
}
