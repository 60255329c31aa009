package sitar

import (
	"fmt"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"
)

const (
	convMinBlockOrder = 7 // 128 samples latency
	convMaxBlockOrder = 13
)

// Convolver implements low-latency partitioned convolution of a mono signal
// with a stereo impulse response (the reverb stage).
type Convolver struct {
	sampleRate int
	irLen      int

	left  *dspconv.PartitionedConvolution32
	right *dspconv.PartitionedConvolution32
}

// NewConvolver creates a convolver with a unit impulse on both channels.
func NewConvolver(sampleRate int) *Convolver {
	c := &Convolver{sampleRate: sampleRate}
	if err := c.SetIR([]float32{1.0}, []float32{1.0}); err != nil {
		panic(fmt.Sprintf("sitar: unit impulse convolver: %v", err))
	}
	return c
}

// ProcessTo convolves input into outL and outR. All three slices must have
// the same length. Output is delayed by Latency() samples.
func (c *Convolver) ProcessTo(outL, outR, input []float32) {
	if len(input) == 0 {
		return
	}
	errL := c.left.ProcessBlock(input, outL[:len(input)])
	errR := c.right.ProcessBlock(input, outR[:len(input)])
	if errL != nil || errR != nil {
		// Fallback: pass through for this block
		copy(outL, input)
		copy(outR, input)
	}
}

// SetIR configures left/right impulse responses.
func (c *Convolver) SetIR(leftIR []float32, rightIR []float32) error {
	if len(leftIR) == 0 {
		leftIR = []float32{1.0}
	}
	if len(rightIR) == 0 {
		rightIR = []float32{1.0}
	}

	left, err := dspconv.NewPartitionedConvolution32(leftIR, convMinBlockOrder, convMaxBlockOrder)
	if err != nil {
		return fmt.Errorf("left impulse: %w", err)
	}
	right, err := dspconv.NewPartitionedConvolution32(rightIR, convMinBlockOrder, convMaxBlockOrder)
	if err != nil {
		return fmt.Errorf("right impulse: %w", err)
	}
	c.left = left
	c.right = right
	c.irLen = max(len(leftIR), len(rightIR))
	return nil
}

// Reset clears convolver history.
func (c *Convolver) Reset() {
	c.left.Reset()
	c.right.Reset()
}

// Latency returns the output delay in samples.
func (c *Convolver) Latency() int {
	return c.left.Latency()
}

// IRLen returns the longer impulse length in samples.
func (c *Convolver) IRLen() int {
	return c.irLen
}
