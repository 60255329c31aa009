package recorder

import (
	"sync"
	"sync/atomic"
)

// DefaultQueueDepth is the number of blocks the destination buffers between
// the render goroutine and the encoder.
const DefaultQueueDepth = 1024

// Chunk is one block of the recording bus.
type Chunk struct {
	Frame int64
	Data  []float32
}

// Destination is the recording bus endpoint. WriteBus copies each block into
// a pooled chunk and hands it over without blocking; when the encoder falls
// behind, blocks are dropped and counted.
type Destination struct {
	ch      chan *Chunk
	pool    sync.Pool
	dropped atomic.Int64
}

// NewDestination creates a destination buffering up to depth blocks.
func NewDestination(depth int) *Destination {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	d := &Destination{ch: make(chan *Chunk, depth)}
	d.pool.New = func() any { return &Chunk{} }
	return d
}

// WriteBus implements sitar.BusSink.
func (d *Destination) WriteBus(frame int64, data []float32) {
	c := d.pool.Get().(*Chunk)
	c.Frame = frame
	c.Data = append(c.Data[:0], data...)
	select {
	case d.ch <- c:
	default:
		d.dropped.Add(1)
		d.pool.Put(c)
	}
}

// Chunks returns the queue the encoder reads from.
func (d *Destination) Chunks() <-chan *Chunk { return d.ch }

// Recycle returns c to the pool once its data has been copied.
func (d *Destination) Recycle(c *Chunk) { d.pool.Put(c) }

// Dropped returns the number of blocks lost to a full queue.
func (d *Destination) Dropped() int64 { return d.dropped.Load() }
