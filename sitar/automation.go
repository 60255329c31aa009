package sitar

import "sync"

// Clock reports the render clock in seconds.
type Clock interface {
	Now() float64
}

// Automation forwards every Store change to the live graph as a smoothed
// transition starting at the current render time.
type Automation struct {
	store *Store
	graph *Graph
	clock Clock
	tau   float64

	mu    sync.Mutex
	unsub func()
}

// NewAutomation subscribes to store and drives graph. tau <= 0 selects
// SmoothingTau.
func NewAutomation(store *Store, graph *Graph, clock Clock, tau float64) *Automation {
	if tau <= 0 {
		tau = SmoothingTau
	}
	a := &Automation{store: store, graph: graph, clock: clock, tau: tau}
	a.unsub = store.Subscribe(a.apply)
	return a
}

// apply serializes graph updates and reads the store's latest values, so
// concurrent writers cannot leave the graph on an older target than the store.
func (a *Automation) apply(c Change) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.graph.Apply(c.ID, a.store.Snapshot(), a.clock.Now(), a.tau)
}

// Close stops forwarding changes. It is safe to call more than once.
func (a *Automation) Close() {
	a.mu.Lock()
	unsub := a.unsub
	a.unsub = nil
	a.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
