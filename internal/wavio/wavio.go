// Package wavio is the audio codec boundary: WAV decoding of uploaded or
// loaded files and WAV encoding of takes and renders.
package wavio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"

	"github.com/cwbudde/algo-sitar/sitar"
)

// Audio is a decoded interleaved buffer.
type Audio struct {
	SampleRate int
	Channels   int
	Data       []float32
}

// Frames returns the number of frames.
func (a *Audio) Frames() int {
	if a.Channels < 1 {
		return 0
	}
	return len(a.Data) / a.Channels
}

// Duration returns the length in seconds.
func (a *Audio) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(a.Frames()) / float64(a.SampleRate)
}

// Decode reads a WAV stream. Malformed or unsupported input yields a
// *sitar.DecodeError naming the source.
func Decode(name string, r io.ReadSeeker) (*Audio, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, &sitar.DecodeError{Name: name, Err: errors.New("not a valid wav file")}
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, &sitar.DecodeError{Name: name, Err: err}
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, &sitar.DecodeError{Name: name, Err: errors.New("invalid wav buffer")}
	}
	if buf.Format.SampleRate <= 0 {
		return nil, &sitar.DecodeError{Name: name, Err: fmt.Errorf("invalid sample rate %d", buf.Format.SampleRate)}
	}
	if len(buf.Data) < buf.Format.NumChannels {
		return nil, &sitar.DecodeError{Name: name, Err: errors.New("empty wav data")}
	}
	return &Audio{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Data:       buf.Data,
	}, nil
}

// ReadFile decodes the WAV file at path.
func ReadFile(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &sitar.DecodeError{Name: filepath.Base(path), Err: err}
	}
	defer f.Close()
	return Decode(filepath.Base(path), f)
}

// Resample converts a to rate, channel by channel. It returns a unchanged
// when the rates already match.
func Resample(a *Audio, rate int) (*Audio, error) {
	if a.SampleRate == rate {
		return a, nil
	}
	ch := a.Channels
	frames := a.Frames()
	var out []float32
	for c := 0; c < ch; c++ {
		r, err := dspresample.NewForRates(
			float64(a.SampleRate),
			float64(rate),
			dspresample.WithQuality(dspresample.QualityBest),
		)
		if err != nil {
			return nil, fmt.Errorf("resample %d -> %d: %w", a.SampleRate, rate, err)
		}
		in := make([]float64, frames)
		for i := 0; i < frames; i++ {
			in[i] = float64(a.Data[i*ch+c])
		}
		res := r.Process(in)
		if out == nil {
			out = make([]float32, len(res)*ch)
		}
		for i := 0; i < len(res) && i*ch+c < len(out); i++ {
			out[i*ch+c] = float32(res[i])
		}
	}
	return &Audio{SampleRate: rate, Channels: ch, Data: out}, nil
}

// Stereo splits a into left and right channels. Mono input is duplicated and
// channels past the second are ignored.
func Stereo(a *Audio) ([]float32, []float32) {
	ch := a.Channels
	frames := a.Frames()
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = a.Data[i*ch]
		right[i] = a.Data[i*ch+min(1, ch-1)]
	}
	return left, right
}

// ReadStereo decodes the WAV file at path, resamples it to rate and splits it
// into left and right. It is how custom reverb impulses are loaded.
func ReadStereo(path string, rate int) ([]float32, []float32, error) {
	a, err := ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if a, err = Resample(a, rate); err != nil {
		return nil, nil, &sitar.DecodeError{Name: filepath.Base(path), Err: err}
	}
	left, right := Stereo(a)
	return left, right, nil
}

// Mono downmixes a to one channel.
func Mono(a *Audio) []float32 {
	ch := a.Channels
	frames := a.Frames()
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < ch; c++ {
			sum += a.Data[i*ch+c]
		}
		out[i] = sum / float32(ch)
	}
	return out
}

// Encode writes interleaved samples as 16-bit PCM WAV.
func Encode(w io.WriteSeeker, samples []float32, sampleRate, channels int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// WriteStereo writes interleaved stereo samples to path, creating parent
// directories as needed.
func WriteStereo(path string, samples []float32, sampleRate int) error {
	return writeFile(path, samples, sampleRate, 2)
}

// WriteStereoLR interleaves left and right and writes them to path.
func WriteStereoLR(path string, left, right []float32, sampleRate int) error {
	if len(left) != len(right) {
		return fmt.Errorf("left/right length mismatch")
	}
	data := make([]float32, len(left)*2)
	for i := range left {
		data[i*2] = left[i]
		data[i*2+1] = right[i]
	}
	return WriteStereo(path, data, sampleRate)
}

// WriteMono writes a mono buffer to path.
func WriteMono(path string, data []float32, sampleRate int) error {
	return writeFile(path, data, sampleRate, 1)
}

func writeFile(path string, samples []float32, sampleRate, channels int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, samples, sampleRate, channels); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
