// Package status carries advisory user-facing messages and live readouts
// (recording time, playback progress) from the control domain to the UI.
package status

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Level classifies a message.
type Level int

const (
	Info Level = iota
	Error
)

func (l Level) String() string {
	if l == Error {
		return "error"
	}
	return "info"
}

// Message is one status line.
type Message struct {
	Text  string    `json:"text"`
	Level Level     `json:"-"`
	Time  time.Time `json:"time"`
}

// Channel holds the latest message and fans it out to subscribers. Slow
// subscribers miss messages instead of blocking publishers.
type Channel struct {
	mu     sync.Mutex
	last   Message
	subs   map[int]chan Message
	nextID int
}

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{subs: make(map[int]chan Message)}
}

// Publish posts an informational message.
func (c *Channel) Publish(text string) {
	c.post(Message{Text: text, Level: Info, Time: time.Now()})
}

// Error posts err as an error message. nil is ignored.
func (c *Channel) Error(err error) {
	if err == nil {
		return
	}
	c.post(Message{Text: err.Error(), Level: Error, Time: time.Now()})
}

func (c *Channel) post(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = m
	for _, ch := range c.subs {
		select {
		case ch <- m:
		default:
		}
	}
}

// Last returns the most recent message.
func (c *Channel) Last() Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Subscribe returns a buffered receive channel and a cancel function.
func (c *Channel) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Message, buffer)
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// Gauge is a published float readout.
type Gauge struct {
	bits atomic.Uint64
}

// Set publishes v.
func (g *Gauge) Set(v float64) { g.bits.Store(math.Float64bits(v)) }

// Get returns the last published value.
func (g *Gauge) Get() float64 { return math.Float64frombits(g.bits.Load()) }
