package analysis

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// DefaultSummaryPoints is the waveform summary length used for display.
const DefaultSummaryPoints = 400

// WaveformSummary downsamples x into exactly points peak magnitudes.
//
// Each output bucket holds max|x| over its share of the input. Inputs shorter
// than points repeat samples across buckets, so the result length never
// depends on len(x). Empty input yields zeros.
func WaveformSummary(x []float32, points int) []float32 {
	if points <= 0 {
		return nil
	}
	out := make([]float32, points)
	n := len(x)
	if n == 0 {
		return out
	}
	for i := 0; i < points; i++ {
		start := i * n / points
		end := (i + 1) * n / points
		if end <= start {
			end = start + 1
		}
		if end > n {
			end = n
		}
		var peak float32
		for _, v := range x[start:end] {
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
		out[i] = peak
	}
	return out
}

// StereoToMono averages an interleaved stereo buffer.
func StereoToMono(st []float32) []float32 {
	n := len(st) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = 0.5 * (st[i*2] + st[i*2+1])
	}
	return out
}

// Peak returns max|x|.
func Peak(x []float32) float64 {
	peak := 0.0
	for _, v := range x {
		if a := math.Abs(float64(v)); a > peak {
			peak = a
		}
	}
	return peak
}

// RMS returns the root mean square of x.
func RMS(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, s := range x {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// LinToDB converts a linear magnitude to dBFS, flooring at -240 dB.
func LinToDB(x float64) float64 {
	if x < 1e-12 {
		return -240
	}
	return core.LinearToDB(x)
}

// IsFinite reports whether every sample is neither NaN nor Inf.
func IsFinite(x []float32) bool {
	for _, v := range x {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
