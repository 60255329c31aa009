package dsp

import (
	"sync/atomic"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// Shaper implements a lookup-table waveshaper (no heap allocations in ProcessSample).
//
// The curve spans the input range [-1, 1]: the first point maps x = -1, the last
// point maps x = +1, values in between are linearly interpolated and inputs
// outside the range take the end values. A nil or empty curve passes through.
type Shaper struct {
	curve atomic.Pointer[[]float64]
}

// NewShaper creates a shaper with the given transfer curve.
func NewShaper(curve []float64) *Shaper {
	s := &Shaper{}
	s.SetCurve(curve)
	return s
}

// SetCurve replaces the transfer curve. The swap is atomic, so it may be
// called while another goroutine is processing.
func (s *Shaper) SetCurve(curve []float64) {
	c := append([]float64(nil), curve...)
	s.curve.Store(&c)
}

// Curve returns the active transfer curve.
func (s *Shaper) Curve() []float64 {
	c := s.curve.Load()
	if c == nil {
		return nil
	}
	return *c
}

// ProcessSample maps one sample through the curve.
func (s *Shaper) ProcessSample(x float64) float64 {
	c := s.curve.Load()
	if c == nil || len(*c) == 0 {
		return x
	}
	curve := *c
	n := len(curve)
	if n == 1 {
		return curve[0]
	}

	pos := (x + 1) * 0.5 * float64(n-1)
	if pos <= 0 {
		return curve[0]
	}
	if pos >= float64(n-1) {
		return curve[n-1]
	}
	i := int(pos)
	frac := pos - float64(i)
	return curve[i] + frac*(curve[i+1]-curve[i])
}

// FlushDenormals converts denormal numbers to zero to avoid performance issues
func FlushDenormals(x float64) float64 {
	return core.FlushDenormals(x)
}
