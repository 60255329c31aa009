package dsp

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-approx"
)

const settleEpsilon = 1e-6

// AudioParam is a sample-accurate automatable value.
//
// One goroutine schedules changes with SetValue or SetTargetAtTime while the
// render goroutine pulls values with Next. The schedule is published through an
// atomic pointer, so neither side blocks the other.
type AudioParam struct {
	sampleRate float64

	// Render side only.
	value float64

	ev      atomic.Pointer[paramEvent]
	current atomic.Uint64
}

type paramEvent struct {
	target     float64
	startFrame int64
	alpha      float64
	instant    bool
}

// NewAudioParam creates a parameter holding initial.
func NewAudioParam(sampleRate int, initial float64) *AudioParam {
	p := &AudioParam{
		sampleRate: float64(sampleRate),
		value:      initial,
	}
	p.current.Store(math.Float64bits(initial))
	p.ev.Store(&paramEvent{target: initial, instant: true})
	return p
}

// SetValue jumps to v at the next rendered sample.
func (p *AudioParam) SetValue(v float64) {
	p.ev.Store(&paramEvent{target: v, instant: true})
	p.current.Store(math.Float64bits(v))
}

// SetTargetAtTime starts an exponential approach towards target at startTime
// (seconds on the render clock) with time constant tau (seconds). After one
// tau the value has covered about 63% of the distance.
func (p *AudioParam) SetTargetAtTime(target, startTime, tau float64) {
	if tau <= 0 || p.sampleRate <= 0 {
		p.SetValue(target)
		return
	}
	p.ev.Store(&paramEvent{
		target:     target,
		startFrame: int64(math.Floor(startTime * p.sampleRate)),
		alpha:      SmoothingCoefficient(tau, p.sampleRate),
	})
}

// Next renders the value for absolute frame index frame.
func (p *AudioParam) Next(frame int64) float64 {
	ev := p.ev.Load()
	if ev != nil && frame >= ev.startFrame && p.value != ev.target {
		if ev.instant {
			p.value = ev.target
		} else {
			p.value += (ev.target - p.value) * ev.alpha
			if math.Abs(ev.target-p.value) < settleEpsilon {
				p.value = ev.target
			}
		}
		p.current.Store(math.Float64bits(p.value))
	}
	return p.value
}

// Advance renders n frames starting at frame and returns the value at the
// first of them. Control-rate consumers (filter coefficients) call it once per
// block.
func (p *AudioParam) Advance(frame int64, n int) float64 {
	v := p.Next(frame)
	for i := 1; i < n; i++ {
		p.Next(frame + int64(i))
	}
	return v
}

// Value returns the most recently rendered (or directly set) value.
func (p *AudioParam) Value() float64 {
	return math.Float64frombits(p.current.Load())
}

// Target returns the value the parameter is heading to.
func (p *AudioParam) Target() float64 {
	ev := p.ev.Load()
	if ev == nil {
		return p.Value()
	}
	return ev.target
}

// SmoothingCoefficient returns the per-sample one-pole coefficient for time
// constant tau seconds at sampleRate.
func SmoothingCoefficient(tau, sampleRate float64) float64 {
	if tau <= 0 || sampleRate <= 0 {
		return 1
	}
	return 1 - float64(approx.FastExp(float32(-1.0/(tau*sampleRate))))
}
