// Package cursor animates playback progress on a frame cadence, independent
// of the audio goroutine.
package cursor

import (
	"sync"
	"time"
)

// DefaultFrameRate is the progress update cadence in Hz.
const DefaultFrameRate = 60

// Clock reports the render clock in seconds.
type Clock interface {
	Now() float64
}

// FrameSource delivers frame ticks until stop is called.
type FrameSource func() (ticks <-chan time.Time, stop func())

// TickerSource returns a FrameSource backed by time.Ticker at rate Hz.
func TickerSource(rate float64) FrameSource {
	if rate <= 0 {
		rate = DefaultFrameRate
	}
	period := time.Duration(float64(time.Second) / rate)
	return func() (<-chan time.Time, func()) {
		t := time.NewTicker(period)
		return t.C, t.Stop
	}
}

// Scheduler publishes clamp(elapsed/duration, 0, 1) on every frame while a
// playback is running. Publish is called from the scheduler goroutine.
type Scheduler struct {
	clock   Clock
	publish func(float64)
	frames  FrameSource

	mu  sync.Mutex
	run *run
}

type run struct {
	cancel chan struct{}
	done   chan struct{}
}

// New creates a scheduler. A nil frames source ticks at DefaultFrameRate.
func New(clock Clock, publish func(float64), frames FrameSource) *Scheduler {
	if frames == nil {
		frames = TickerSource(DefaultFrameRate)
	}
	if publish == nil {
		publish = func(float64) {}
	}
	return &Scheduler{clock: clock, publish: publish, frames: frames}
}

// Start animates a playback that began at startTime (render clock seconds)
// and lasts duration seconds. A running animation is stopped first.
func (s *Scheduler) Start(startTime, duration float64) {
	s.Stop()

	r := &run{cancel: make(chan struct{}), done: make(chan struct{})}
	s.mu.Lock()
	s.run = r
	s.mu.Unlock()

	ticks, stop := s.frames()
	go func() {
		defer close(r.done)
		defer stop()
		for {
			select {
			case <-r.cancel:
				return
			case _, ok := <-ticks:
				if !ok {
					return
				}
			}
			// A cancel that raced the tick wins.
			select {
			case <-r.cancel:
				return
			default:
			}
			elapsed := s.clock.Now() - startTime
			s.publish(Progress(elapsed, duration))
			if elapsed >= duration {
				return
			}
		}
	}()
}

// Stop cancels the animation, waits for it to exit and publishes 0. Without
// a started animation it does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	r := s.run
	s.run = nil
	s.mu.Unlock()
	if r == nil {
		return
	}
	close(r.cancel)
	<-r.done
	s.publish(0)
}

// Running reports whether an animation is in flight.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Progress returns clamp(elapsed/duration, 0, 1).
func Progress(elapsed, duration float64) float64 {
	if duration <= 0 {
		return 1
	}
	p := elapsed / duration
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
