// Package offline applies the processing chain to a whole buffer without
// real-time constraints, and previews or exports the result.
package offline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-sitar/analysis"
	"github.com/cwbudde/algo-sitar/sitar"
)

const (
	// ExportFileName is the file an offline render is exported to.
	ExportFileName = "neon-sitar-offline.wav"

	// MaxTailSeconds caps the rendered tail after the input ends.
	MaxTailSeconds = 10.0

	tailFloorDB = -60.0
)

// Job is one offline render request.
type Job struct {
	// Input is interleaved audio with Channels channels at SampleRate.
	Input      []float32
	Channels   int
	SampleRate int
	Params     sitar.ParameterSet

	// ImpulseLeft/Right override the cached reverb impulse.
	ImpulseLeft  []float32
	ImpulseRight []float32
	BlockSize    int
}

// Result is a rendered stereo buffer and its waveform summary.
type Result struct {
	SampleRate int
	Data       []float32 // interleaved stereo
	Summary    []float32
}

// Frames returns the number of rendered frames.
func (r *Result) Frames() int { return len(r.Data) / 2 }

// Duration returns the rendered length in seconds.
func (r *Result) Duration() float64 {
	return float64(r.Frames()) / float64(r.SampleRate)
}

// TailFrames returns how many frames to render after the input ends: the
// reverb length plus the echo decay to -60 dB, capped at MaxTailSeconds.
func TailFrames(p sitar.ParameterSet, sampleRate, impulseLen int) int {
	tail := float64(impulseLen) / float64(sampleRate)
	if p.DelayEnabled && p.DelayMix > 0 {
		echoes := 1.0
		if p.DelayFeedback > 0 {
			echoes = math.Ceil(tailFloorDB / (20 * math.Log10(p.DelayFeedback)))
		}
		tail += p.DelayTime * echoes
	}
	tail = math.Min(tail, MaxTailSeconds)
	return int(math.Ceil(tail * float64(sampleRate)))
}

// Render processes job through a freshly built graph with every parameter
// applied instantly. Given the same impulse it is deterministic.
func Render(ctx context.Context, job Job) (*Result, error) {
	if job.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", job.SampleRate)
	}
	if job.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", job.Channels)
	}
	if len(job.Input) < job.Channels {
		return nil, errors.New("empty input")
	}
	block := job.BlockSize
	if block <= 0 {
		block = sitar.DefaultBlockSize
	}

	irL, irR := job.ImpulseLeft, job.ImpulseRight
	if len(irL) == 0 && len(irR) == 0 {
		var err error
		irL, irR, err = sitar.ReverbImpulse(sitar.DefaultReverbSeconds, job.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("reverb impulse: %w", err)
		}
	}

	params := job.Params.Clamped()
	g, err := sitar.NewGraph(job.SampleRate, block, params, irL, irR)
	if err != nil {
		return nil, err
	}
	g.ApplyAll(params, 0, 0)

	ch := job.Channels
	inFrames := len(job.Input) / ch
	impulseLen := max(len(irL), len(irR)) + g.Reverb().Latency()
	total := inFrames + TailFrames(params, job.SampleRate, impulseLen)

	out := make([]float32, total*2)
	silence := make([]float32, block*ch)
	for pos := 0; pos < total; pos += block {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := min(block, total-pos)
		var in []float32
		switch {
		case pos+n <= inFrames:
			in = job.Input[pos*ch : (pos+n)*ch]
		case pos >= inFrames:
			in = silence[:n*ch]
		default:
			in = make([]float32, n*ch)
			copy(in, job.Input[pos*ch:inFrames*ch])
		}
		g.Process(int64(pos), in, ch, nil, out[pos*2:(pos+n)*2])
	}

	return &Result{
		SampleRate: job.SampleRate,
		Data:       out,
		Summary:    analysis.WaveformSummary(analysis.StereoToMono(out), analysis.DefaultSummaryPoints),
	}, nil
}
