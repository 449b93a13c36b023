package engine

import (
	"sort"
	"sync"
)

// PatternStore is an in-memory keyed snapshot table for sequencer grids.
// Read-mostly; safe to share across sequencer instances. Nothing here touches
// disk, durable storage is the caller's business.
type PatternStore struct {
	mu       sync.RWMutex
	patterns map[string][]Step
}

func NewPatternStore() *PatternStore {
	return &PatternStore{patterns: make(map[string][]Step)}
}

// Save stores a copy of steps under name, replacing any previous snapshot.
func (ps *PatternStore) Save(name string, steps []Step) {
	snapshot := append([]Step(nil), steps...)
	ps.mu.Lock()
	ps.patterns[name] = snapshot
	ps.mu.Unlock()
}

// Load returns a copy of the snapshot under name.
func (ps *PatternStore) Load(name string) ([]Step, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	steps, ok := ps.patterns[name]
	if !ok {
		return nil, false
	}
	return append([]Step(nil), steps...), true
}

// Delete removes a snapshot. Unknown names are a no-op.
func (ps *PatternStore) Delete(name string) {
	ps.mu.Lock()
	delete(ps.patterns, name)
	ps.mu.Unlock()
}

// Names lists stored snapshot names, sorted.
func (ps *PatternStore) Names() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	names := make([]string, 0, len(ps.patterns))
	for name := range ps.patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
