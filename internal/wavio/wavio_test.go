package wavio

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-sitar/sitar"
)

func TestWriteStereoRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "take.wav")
	data := make([]float32, 2*480)
	for i := 0; i < 480; i++ {
		v := float32(math.Sin(float64(i) * 0.05))
		data[i*2] = v * 0.5
		data[i*2+1] = -v * 0.25
	}
	if err := WriteStereo(path, data, 48000); err != nil {
		t.Fatalf("WriteStereo: %v", err)
	}

	a, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if a.SampleRate != 48000 || a.Channels != 2 || a.Frames() != 480 {
		t.Fatalf("unexpected format: rate=%d ch=%d frames=%d", a.SampleRate, a.Channels, a.Frames())
	}
	for i := range data {
		if math.Abs(float64(a.Data[i]-data[i])) > 1e-3 {
			t.Fatalf("sample %d: got %f want %f", i, a.Data[i], data[i])
		}
	}
	if d := a.Duration(); math.Abs(d-0.01) > 1e-9 {
		t.Fatalf("duration=%g", d)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("junk.wav", bytes.NewReader([]byte("definitely not a riff header")))
	var de *sitar.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.Name != "junk.wav" {
		t.Fatalf("decode error names %q", de.Name)
	}
	if !sitar.IsRecoverable(err) {
		t.Fatalf("decode errors should be recoverable")
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.wav"))
	var de *sitar.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestResampleChangesLength(t *testing.T) {
	a := &Audio{SampleRate: 24000, Channels: 2, Data: make([]float32, 2*2400)}
	for i := 0; i < 2400; i++ {
		a.Data[i*2] = float32(math.Sin(float64(i) * 0.01))
		a.Data[i*2+1] = 0.5
	}
	out, err := Resample(a, 48000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if out.SampleRate != 48000 || out.Channels != 2 {
		t.Fatalf("unexpected format %d/%d", out.SampleRate, out.Channels)
	}
	if f := out.Frames(); f < 4700 || f > 4900 {
		t.Fatalf("resampled frames=%d want about 4800", f)
	}
	same, err := Resample(out, 48000)
	if err != nil || same != out {
		t.Fatalf("same-rate resample should be a no-op")
	}
}

func TestMono(t *testing.T) {
	a := &Audio{SampleRate: 8000, Channels: 2, Data: []float32{1, 0, 0.5, 0.5}}
	m := Mono(a)
	if len(m) != 2 || m[0] != 0.5 || m[1] != 0.5 {
		t.Fatalf("unexpected mono %v", m)
	}
}

func TestReadStereoResamplesImpulse(t *testing.T) {
	left := make([]float32, 960)
	right := make([]float32, 960)
	left[0], right[0] = 1.0, 0.5
	left[1], right[1] = 0.2, 0.1
	path := filepath.Join(t.TempDir(), "ir96k.wav")
	if err := WriteStereoLR(path, left, right, 96000); err != nil {
		t.Fatalf("WriteStereoLR: %v", err)
	}

	l, r, err := ReadStereo(path, 48000)
	if err != nil {
		t.Fatalf("ReadStereo: %v", err)
	}
	if len(l) != len(r) || len(l) == 0 || len(l) >= 960 {
		t.Fatalf("resampled lengths L=%d R=%d, want fewer than 960", len(l), len(r))
	}
	var peakL, peakR float64
	for i := range l {
		peakL = math.Max(peakL, math.Abs(float64(l[i])))
		peakR = math.Max(peakR, math.Abs(float64(r[i])))
	}
	if peakL < 1e-3 || peakR < 1e-3 {
		t.Fatalf("impulse lost in resampling: L=%g R=%g", peakL, peakR)
	}
}

func TestReadStereoDuplicatesMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	if err := WriteMono(path, []float32{1, 0.4, 0.2, 0.1}, 48000); err != nil {
		t.Fatalf("WriteMono: %v", err)
	}
	l, r, err := ReadStereo(path, 48000)
	if err != nil {
		t.Fatalf("ReadStereo: %v", err)
	}
	if len(l) != 4 {
		t.Fatalf("frames=%d want 4", len(l))
	}
	for i := range l {
		if l[i] != r[i] {
			t.Fatalf("frame %d: L=%f R=%f", i, l[i], r[i])
		}
	}
}

func TestReadStereoMissingFile(t *testing.T) {
	_, _, err := ReadStereo(filepath.Join(t.TempDir(), "none.wav"), 48000)
	var de *sitar.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}
