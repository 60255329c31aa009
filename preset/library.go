package preset

import (
	"sync"

	"github.com/cwbudde/algo-sitar/sitar"
)

// MaxPresets caps the library size.
const MaxPresets = 5

// Entry is a named preset.
type Entry struct {
	Name   string             `json:"name"`
	Params sitar.ParameterSet `json:"-"`
}

// Library is an in-memory, capped preset collection. Additions beyond
// MaxPresets are dropped silently.
type Library struct {
	mu      sync.Mutex
	entries []Entry
}

// Add stores p under name and reports whether it was kept. An existing name
// is overwritten in place.
func (l *Library) Add(name string, p sitar.ParameterSet) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].Name == name {
			l.entries[i].Params = p.Clamped()
			return true
		}
	}
	if len(l.entries) >= MaxPresets {
		return false
	}
	l.entries = append(l.entries, Entry{Name: name, Params: p.Clamped()})
	return true
}

// Get looks up a preset by name.
func (l *Library) Get(name string) (sitar.ParameterSet, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Name == name {
			return e.Params, true
		}
	}
	return sitar.ParameterSet{}, false
}

// Remove deletes a preset by name.
func (l *Library) Remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.Name == name {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

// List returns the entries in insertion order.
func (l *Library) List() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of stored presets.
func (l *Library) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
