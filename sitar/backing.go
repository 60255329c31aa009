package sitar

import (
	"fmt"

	"github.com/cwbudde/algo-sitar/analysis"
)

// BackingTrack is an immutable decoded stereo buffer at the engine rate.
type BackingTrack struct {
	Name       string
	SampleRate int
	// Data is interleaved stereo.
	Data    []float32
	Summary []float32
}

// NewBackingTrack builds a track from interleaved audio with the given
// channel count. Mono is duplicated, extra channels are dropped.
func NewBackingTrack(name string, sampleRate, channels int, data []float32) (*BackingTrack, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("backing track %q: invalid sample rate %d", name, sampleRate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("backing track %q: invalid channel count %d", name, channels)
	}
	frames := len(data) / channels
	stereo := make([]float32, frames*2)
	for i := range frames {
		l := data[i*channels]
		r := l
		if channels > 1 {
			r = data[i*channels+1]
		}
		stereo[i*2] = l
		stereo[i*2+1] = r
	}
	return &BackingTrack{
		Name:       name,
		SampleRate: sampleRate,
		Data:       stereo,
		Summary:    analysis.WaveformSummary(analysis.StereoToMono(stereo), analysis.DefaultSummaryPoints),
	}, nil
}

// Frames returns the track length in frames.
func (t *BackingTrack) Frames() int { return len(t.Data) / 2 }

// Duration returns the track length in seconds.
func (t *BackingTrack) Duration() float64 {
	return float64(t.Frames()) / float64(t.SampleRate)
}
