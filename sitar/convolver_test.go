package sitar

import (
	"math"
	"testing"

	algofft "github.com/cwbudde/algo-fft"
)

func runConvolver(c *Convolver, input []float32, block int) ([]float32, []float32) {
	lat := c.Latency()
	padded := make([]float32, len(input)+lat)
	copy(padded, input)
	outL := make([]float32, len(padded))
	outR := make([]float32, len(padded))
	for i := 0; i < len(padded); i += block {
		end := min(i+block, len(padded))
		c.ProcessTo(outL[i:end], outR[i:end], padded[i:end])
	}
	return outL[lat:], outR[lat:]
}

func TestConvolverMatchesDirectConvolution(t *testing.T) {
	c := NewConvolver(48000)

	input := make([]float32, 1024)
	for i := range input {
		input[i] = float32(math.Sin(float64(i)*0.07)) * 0.8
	}
	leftIR := []float32{1.0, 0.3, -0.2, 0.1, 0.05}
	rightIR := []float32{0.8, -0.1, 0.05}
	if err := c.SetIR(leftIR, rightIR); err != nil {
		t.Fatalf("SetIR: %v", err)
	}

	outL, outR := runConvolver(c, input, 100)
	directL := directConvolve(input, leftIR)[:len(input)]
	directR := directConvolve(input, rightIR)[:len(input)]

	if d := maxAbsDiff(outL, directL); d > 1e-4 {
		t.Fatalf("left channel mismatch too high: max diff=%g", d)
	}
	if d := maxAbsDiff(outR, directR); d > 1e-4 {
		t.Fatalf("right channel mismatch too high: max diff=%g", d)
	}
}

func TestConvolverLongImpulseMatchesFFTConvolution(t *testing.T) {
	c := NewConvolver(48000)
	irL, irR, err := ReverbImpulse(0.1, 48000)
	if err != nil {
		t.Fatalf("ReverbImpulse: %v", err)
	}
	if err := c.SetIR(irL, irR); err != nil {
		t.Fatalf("SetIR: %v", err)
	}

	input := sine(2048, 440, 48000, 0.5)
	outL, _ := runConvolver(c, input, DefaultBlockSize)

	want := make([]float32, len(input)+len(irL)-1)
	if err := algofft.ConvolveReal(want, input, irL); err != nil {
		t.Fatalf("ConvolveReal: %v", err)
	}
	if d := maxAbsDiff(outL, want[:len(input)]); d > 1e-3 {
		t.Fatalf("partitioned vs fft convolution mismatch: max diff=%g", d)
	}
}

func TestConvolverResetClearsTail(t *testing.T) {
	c := NewConvolver(48000)
	if err := c.SetIR([]float32{1, 0.5, 0.25}, []float32{1, 0.5, 0.25}); err != nil {
		t.Fatalf("SetIR: %v", err)
	}

	in := make([]float32, 256)
	in[0] = 1
	l := make([]float32, 256)
	r := make([]float32, 256)
	c.ProcessTo(l, r, in)
	c.Reset()

	zero := make([]float32, 512)
	l = make([]float32, 512)
	r = make([]float32, 512)
	c.ProcessTo(l, r, zero)
	if rms := stereoRMS(append(l, r...)); rms > 1e-7 {
		t.Fatalf("expected near-silence after reset, got rms=%g", rms)
	}
}
