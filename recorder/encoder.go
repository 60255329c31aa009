package recorder

import "sync"

// Encoder accumulates the destination's blocks into one interleaved stereo
// take while active.
type Encoder struct {
	dest *Destination

	mu     sync.Mutex
	data   []float32
	cancel chan struct{}
	done   chan struct{}
}

// NewEncoder creates an encoder reading from dest.
func NewEncoder(dest *Destination) *Encoder {
	return &Encoder{dest: dest}
}

// Start discards stale blocks, resets the accumulated take and starts
// collecting. Starting an active encoder is a no-op.
func (e *Encoder) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}
	e.drain(e.dest.Recycle)
	e.data = nil
	e.cancel = make(chan struct{})
	e.done = make(chan struct{})
	go e.loop(e.cancel, e.done)
}

func (e *Encoder) loop(cancel, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-cancel:
			e.drain(e.appendChunk)
			return
		case c := <-e.dest.Chunks():
			e.appendChunk(c)
		}
	}
}

func (e *Encoder) appendChunk(c *Chunk) {
	e.data = append(e.data, c.Data...)
	e.dest.Recycle(c)
}

func (e *Encoder) drain(fn func(*Chunk)) {
	for {
		select {
		case c := <-e.dest.Chunks():
			fn(c)
		default:
			return
		}
	}
}

// Stop flushes pending blocks, stops collecting and returns the take. It
// returns nil when the encoder was not active.
func (e *Encoder) Stop() []float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel == nil {
		return nil
	}
	close(e.cancel)
	<-e.done
	e.cancel, e.done = nil, nil
	data := e.data
	e.data = nil
	return data
}

// Active reports whether the encoder is collecting.
func (e *Encoder) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}
