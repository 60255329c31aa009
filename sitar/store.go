package sitar

import (
	"sort"
	"sync"
)

// Change describes one accepted write to the Store.
type Change struct {
	ID     ParamID
	Params ParameterSet // snapshot after the write
}

// Store holds the current target value of every control and notifies
// subscribers on change. It is safe for concurrent use; listeners run on the
// writer's goroutine after the lock is released.
type Store struct {
	mu        sync.Mutex
	params    ParameterSet
	listeners map[int]func(Change)
	nextID    int
}

// NewStore creates a store seeded with p (clamped).
func NewStore(p ParameterSet) *Store {
	return &Store{
		params:    p.Clamped(),
		listeners: make(map[int]func(Change)),
	}
}

// Snapshot returns an immutable copy of the current parameters.
func (s *Store) Snapshot() ParameterSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Set writes one control, clamping out-of-range values, and notifies
// subscribers. It returns the stored value.
func (s *Store) Set(id ParamID, v float64) float64 {
	s.mu.Lock()
	s.params.Set(id, v)
	stored := s.params.Get(id)
	c := Change{ID: id, Params: s.params}
	ls := s.snapshotListeners()
	s.mu.Unlock()

	for _, fn := range ls {
		fn(c)
	}
	return stored
}

// SetBool writes a switch.
func (s *Store) SetBool(id ParamID, on bool) {
	s.Set(id, boolToFloat(on))
}

// SetMode switches the sitar mode.
func (s *Store) SetMode(m SitarMode) {
	s.Set(ParamSitarMode, float64(m))
}

// Replace swaps in a whole parameter set (e.g. a preset) and notifies one
// change per control.
func (s *Store) Replace(p ParameterSet) {
	p = p.Clamped()
	s.mu.Lock()
	s.params = p
	ls := s.snapshotListeners()
	s.mu.Unlock()

	ids := append(append([]ParamID(nil), NumericParams...),
		ParamDriveEnabled, ParamDelayEnabled, ParamMonitorEnabled, ParamSitarMode)
	for _, id := range ids {
		c := Change{ID: id, Params: p}
		for _, fn := range ls {
			fn(c)
		}
	}
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) snapshotListeners() []func(Change) {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}
