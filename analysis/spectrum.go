package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/window"
	algofft "github.com/cwbudde/algo-fft"
)

// Band is a frequency range compared between two signals.
type Band struct {
	Name       string
	LoHz, HiHz float64
}

// Segment is a time range compared between two signals.
type Segment struct {
	Name         string
	StartS, EndS float64
}

// GuitarBands covers the range of an electric guitar through the effect
// chain, including the jawari buzz region.
var GuitarBands = []Band{
	{"low (60-200Hz)", 60, 200},
	{"low-mid (200-800Hz)", 200, 800},
	{"mid (800-2kHz)", 800, 2000},
	{"buzz (2-5kHz)", 2000, 5000},
	{"presence (5-10kHz)", 5000, 10000},
	{"air (10-18kHz)", 10000, 18000},
}

// NoteSegments splits a plucked note into attack, body and reverb tail.
var NoteSegments = []Segment{
	{"attack (0-20ms)", 0, 0.020},
	{"early (20-100ms)", 0.020, 0.100},
	{"body (0.1-0.5s)", 0.100, 0.500},
	{"sustain (0.5-2s)", 0.500, 2},
	{"tail (2-4s)", 2, 4},
}

// BandDiff compares one band within one segment.
type BandDiff struct {
	Band   Band
	RMSEDB float64 // per-bin magnitude error
	RefDB  float64
	CandDB float64
}

// Diff returns the candidate level relative to the reference.
func (b BandDiff) Diff() float64 { return b.CandDB - b.RefDB }

// SegmentReport is the band comparison of one segment.
type SegmentReport struct {
	Segment Segment
	Frames  int // STFT frames averaged
	Bands   []BandDiff
}

// SpectrumFFTSize and SpectrumHop are the STFT frame length and hop.
const (
	SpectrumFFTSize = 4096
	SpectrumHop     = 2048
)

// AlignPeaks trims the leading samples of whichever signal peaks later so
// that both peaks line up. It returns the lag of cand relative to ref.
func AlignPeaks(ref, cand []float64) ([]float64, []float64, int) {
	lag := peakIndex(cand) - peakIndex(ref)
	switch {
	case lag > 0 && lag < len(cand):
		cand = cand[lag:]
	case lag < 0 && -lag < len(ref):
		ref = ref[-lag:]
	}
	return ref, cand, lag
}

func peakIndex(x []float64) int {
	pos, peak := 0, -1.0
	for i, v := range x {
		if a := math.Abs(v); a > peak {
			pos, peak = i, a
		}
	}
	return pos
}

// CompareSpectra averages Hann-windowed STFT magnitudes of ref and cand per
// segment and reports the per-band difference. Segments past the shorter
// signal are skipped; a segment shorter than one frame is analysed as a
// single zero-padded frame.
func CompareSpectra(ref, cand []float64, sampleRate int, segments []Segment, bands []Band) ([]SegmentReport, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	plan, err := algofft.NewPlanReal64(SpectrumFFTSize)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}

	n := min(len(ref), len(cand))
	nBins := SpectrumFFTSize / 2
	binHz := float64(sampleRate) / SpectrumFFTSize
	hann := window.Generate(window.TypeHann, SpectrumFFTSize)

	specRef := make([]complex128, nBins+1)
	specCand := make([]complex128, nBins+1)
	bufRef := make([]float64, SpectrumFFTSize)
	bufCand := make([]float64, SpectrumFFTSize)

	accumulate := func(avgRef, avgCand []float64) error {
		if err := plan.Forward(specRef, bufRef); err != nil {
			return fmt.Errorf("fft: %w", err)
		}
		if err := plan.Forward(specCand, bufCand); err != nil {
			return fmt.Errorf("fft: %w", err)
		}
		for k := 1; k < nBins; k++ {
			avgRef[k] += cmplx.Abs(specRef[k])
			avgCand[k] += cmplx.Abs(specCand[k])
		}
		return nil
	}

	var reports []SegmentReport
	for _, seg := range segments {
		start := int(seg.StartS * float64(sampleRate))
		end := min(int(seg.EndS*float64(sampleRate)), n)
		if start >= end {
			continue
		}

		avgRef := make([]float64, nBins)
		avgCand := make([]float64, nBins)
		frames := 0
		for pos := start; pos+SpectrumFFTSize <= end; pos += SpectrumHop {
			for i := range bufRef {
				bufRef[i] = ref[pos+i] * hann[i]
				bufCand[i] = cand[pos+i] * hann[i]
			}
			if err := accumulate(avgRef, avgCand); err != nil {
				return nil, err
			}
			frames++
		}
		if frames == 0 {
			clear(bufRef)
			clear(bufCand)
			for i := 0; i < end-start; i++ {
				bufRef[i] = ref[start+i] * hann[i]
				bufCand[i] = cand[start+i] * hann[i]
			}
			if err := accumulate(avgRef, avgCand); err != nil {
				return nil, err
			}
			frames = 1
		}
		scale := 1 / float64(frames)
		for k := range avgRef {
			avgRef[k] *= scale
			avgCand[k] *= scale
		}

		rep := SegmentReport{Segment: seg, Frames: frames}
		for _, b := range bands {
			loK := max(int(b.LoHz/binHz), 1)
			hiK := min(int(b.HiHz/binHz), nBins-1)
			if loK > hiK {
				continue
			}
			var sumSq, refPow, candPow float64
			for k := loK; k <= hiK; k++ {
				d := LinToDB(avgRef[k]) - LinToDB(avgCand[k])
				sumSq += d * d
				refPow += avgRef[k] * avgRef[k]
				candPow += avgCand[k] * avgCand[k]
			}
			cnt := float64(hiK - loK + 1)
			rep.Bands = append(rep.Bands, BandDiff{
				Band:   b,
				RMSEDB: math.Sqrt(sumSq / cnt),
				RefDB:  core.LinearPowerToDB(math.Max(refPow/cnt, 1e-24)),
				CandDB: core.LinearPowerToDB(math.Max(candPow/cnt, 1e-24)),
			})
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
