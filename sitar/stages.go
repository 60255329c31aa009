package sitar

import (
	"github.com/cwbudde/algo-dsp/dsp/delay"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"

	"github.com/cwbudde/algo-sitar/dsp"
)

const shelfQ = 0.7071067811865476

// gainStage multiplies by an automatable gain.
type gainStage struct {
	gain *dsp.AudioParam
}

func newGainStage(sampleRate int, initial float64) *gainStage {
	return &gainStage{gain: dsp.NewAudioParam(sampleRate, initial)}
}

func (s *gainStage) process(x float64, frame int64) float64 {
	return x * s.gain.Next(frame)
}

func (s *gainStage) setGain(v, at, tau float64) {
	setParam(s.gain, v, at, tau)
}

type filterKind int

const (
	lowShelf filterKind = iota
	peaking
	highShelf
	lowpass
	highpass
	bandpass
)

// filterStage is a biquad whose frequency, Q and gain are automatable.
// Coefficients are recomputed at control rate (once per block) when any of
// them moved.
type filterStage struct {
	kind       filterKind
	sampleRate float64

	freq   *dsp.AudioParam
	q      *dsp.AudioParam
	gainDB *dsp.AudioParam

	section             *biquad.Section
	lastF, lastQ, lastG float64
}

func newFilterStage(kind filterKind, sampleRate int, freq, q, gainDB float64) *filterStage {
	s := &filterStage{
		kind:       kind,
		sampleRate: float64(sampleRate),
		freq:       dsp.NewAudioParam(sampleRate, freq),
		q:          dsp.NewAudioParam(sampleRate, q),
		gainDB:     dsp.NewAudioParam(sampleRate, gainDB),
	}
	s.section = biquad.NewSection(s.design(freq, q, gainDB))
	s.lastF, s.lastQ, s.lastG = freq, q, gainDB
	return s
}

// maxFilterRatio keeps filter corners below Nyquist at low sample rates.
const maxFilterRatio = 0.45

func (s *filterStage) design(f, q, g float64) biquad.Coefficients {
	f = min(f, maxFilterRatio*s.sampleRate)
	switch s.kind {
	case lowShelf:
		return design.LowShelf(f, g, q, s.sampleRate)
	case peaking:
		return design.Peak(f, g, q, s.sampleRate)
	case highShelf:
		return design.HighShelf(f, g, q, s.sampleRate)
	case lowpass:
		return design.Lowpass(f, q, s.sampleRate)
	case highpass:
		return design.Highpass(f, q, s.sampleRate)
	default:
		return design.Bandpass(f, q, s.sampleRate)
	}
}

// prepare advances the control parameters over n frames starting at frame
// and redesigns the section if they moved.
func (s *filterStage) prepare(frame int64, n int) {
	f := s.freq.Advance(frame, n)
	q := s.q.Advance(frame, n)
	g := s.gainDB.Advance(frame, n)
	if f == s.lastF && q == s.lastQ && g == s.lastG {
		return
	}
	s.section.Coefficients = s.design(f, q, g)
	s.lastF, s.lastQ, s.lastG = f, q, g
}

func (s *filterStage) process(x float64) float64 {
	return s.section.ProcessSample(x)
}

func (s *filterStage) setFrequency(v, at, tau float64) { setParam(s.freq, v, at, tau) }
func (s *filterStage) setQ(v, at, tau float64)         { setParam(s.q, v, at, tau) }
func (s *filterStage) setGainDB(v, at, tau float64)    { setParam(s.gainDB, v, at, tau) }

// coefficients returns the currently designed section coefficients.
func (s *filterStage) coefficients() biquad.Coefficients {
	return s.section.Coefficients
}

// delayStage is a fractional delay line with an automatable delay time.
type delayStage struct {
	line       *delay.Line
	time       *dsp.AudioParam
	sampleRate float64
}

func newDelayStage(sampleRate int, maxSeconds, initial float64) (*delayStage, error) {
	size := int(maxSeconds*float64(sampleRate)) + 4
	line, err := delay.New(size)
	if err != nil {
		return nil, err
	}
	return &delayStage{
		line:       line,
		time:       dsp.NewAudioParam(sampleRate, initial),
		sampleRate: float64(sampleRate),
	}, nil
}

// read returns the sample written time seconds ago. Call before write.
func (s *delayStage) read(frame int64) float64 {
	return s.line.ReadFractional(s.time.Next(frame) * s.sampleRate)
}

func (s *delayStage) write(x float64) {
	s.line.Write(dsp.FlushDenormals(x))
}

func (s *delayStage) setTime(v, at, tau float64) { setParam(s.time, v, at, tau) }

func setParam(p *dsp.AudioParam, v, at, tau float64) {
	if tau <= 0 {
		p.SetValue(v)
		return
	}
	p.SetTargetAtTime(v, at, tau)
}
