package device

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/algo-sitar/internal/wavio"
	"github.com/cwbudde/algo-sitar/sitar"
)

func TestFileProviderMissingDevice(t *testing.T) {
	p := &FileProvider{}
	_, err := p.Acquire(context.Background(), RawConstraints())
	if !errors.Is(err, sitar.ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
	p.Path = filepath.Join(t.TempDir(), "guitar.wav")
	_, err = p.Acquire(context.Background(), RawConstraints())
	var de *sitar.DeviceError
	if !errors.As(err, &de) || !errors.Is(err, sitar.ErrNoDevice) {
		t.Fatalf("expected DeviceError(no device), got %v", err)
	}
	if !sitar.IsRecoverable(err) {
		t.Fatalf("device errors should be recoverable")
	}
}

func TestFileProviderRejectsProcessing(t *testing.T) {
	p := &FileProvider{Path: "x.wav"}
	_, err := p.Acquire(context.Background(), Constraints{EchoCancellation: true})
	if !errors.Is(err, ErrProcessingUnsupported) {
		t.Fatalf("expected ErrProcessingUnsupported, got %v", err)
	}
}

func TestFileProviderServesWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guitar.wav")
	data := make([]float32, 480)
	for i := range data {
		data[i] = 0.5
	}
	if err := wavio.WriteMono(path, data, 48000); err != nil {
		t.Fatalf("WriteMono: %v", err)
	}
	p := &FileProvider{Path: path, SampleRate: 48000}
	in, err := p.Acquire(context.Background(), RawConstraints())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer in.Close()
	if in.Channels() != 1 {
		t.Fatalf("channels=%d", in.Channels())
	}
	buf := make([]float32, 1024)
	n, err := in.Read(context.Background(), buf)
	if err != nil || n != 480 {
		t.Fatalf("Read n=%d err=%v", n, err)
	}
	if math.Abs(float64(buf[0])-0.5) > 1e-3 {
		t.Fatalf("unexpected sample %f", buf[0])
	}
	if _, err := in.Read(context.Background(), buf); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestBufferInputLoops(t *testing.T) {
	in := NewBufferInput(2, []float32{1, 2, 3, 4}, true)
	buf := make([]float32, 6)
	n, err := in.Read(context.Background(), buf)
	if err != nil || n != 6 {
		t.Fatalf("Read n=%d err=%v", n, err)
	}
	want := []float32{1, 2, 3, 4, 1, 2}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("buf=%v want %v", buf, want)
		}
	}
	_ = in.Close()
	if _, err := in.Read(context.Background(), buf); err == nil {
		t.Fatalf("read after close should fail")
	}
}

func TestPacedInputWaitsForWallClock(t *testing.T) {
	src := NewBufferInput(1, make([]float32, 1000), false)
	p := NewPacedInput(src, 1000)
	base := time.Now()
	now := base
	p.now = func() time.Time { return now }

	buf := make([]float32, 100)
	if n, err := p.Read(context.Background(), buf); err != nil || n != 100 {
		t.Fatalf("first read n=%d err=%v", n, err)
	}

	// The second block is due 100 ms after start, 50 ms after "now"; the
	// context expires first.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	now = base.Add(50 * time.Millisecond)
	if _, err := p.Read(ctx, buf); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the read to block until due, got %v", err)
	}
	now = base.Add(100 * time.Millisecond)
	if n, err := p.Read(context.Background(), buf); err != nil || n != 100 {
		t.Fatalf("due read n=%d err=%v", n, err)
	}
}

func TestStreamBufferPadsWithSilenceAndDropsOldest(t *testing.T) {
	s := newStreamBuffer(2 * bytesPerFrame)
	frame := func(v float32) []byte {
		b := make([]byte, bytesPerFrame)
		PutFloat32LE(b, []float32{v, v})
		return b
	}
	s.write(frame(1))
	s.write(frame(2))
	s.write(frame(3))

	p := make([]byte, 3*bytesPerFrame)
	if n, err := s.Read(p); err != nil || n != len(p) {
		t.Fatalf("Read n=%d err=%v", n, err)
	}
	got := func(i int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(p[i*bytesPerFrame:]))
	}
	if got(0) != 2 || got(1) != 3 || got(2) != 0 {
		t.Fatalf("unexpected frames %g %g %g", got(0), got(1), got(2))
	}
	s.close()
	if _, err := s.Read(p); err != io.EOF {
		t.Fatalf("expected EOF after close, got %v", err)
	}
}
