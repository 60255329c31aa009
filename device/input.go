package device

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/cwbudde/algo-sitar/internal/wavio"
	"github.com/cwbudde/algo-sitar/sitar"
)

// FileProvider serves a WAV recording as the live instrument input, paced in
// real time.
type FileProvider struct {
	Path       string
	SampleRate int
	Loop       bool
}

// Acquire implements Provider.
func (p *FileProvider) Acquire(ctx context.Context, c Constraints) (sitar.Input, error) {
	if err := checkRaw(p.Path, c); err != nil {
		return nil, err
	}
	if p.Path == "" {
		return nil, &sitar.DeviceError{Err: sitar.ErrNoDevice}
	}
	if _, err := os.Stat(p.Path); err != nil {
		cause := err
		switch {
		case errors.Is(err, fs.ErrNotExist):
			cause = sitar.ErrNoDevice
		case errors.Is(err, fs.ErrPermission):
			cause = sitar.ErrPermissionDenied
		}
		return nil, &sitar.DeviceError{Device: p.Path, Err: cause}
	}
	a, err := wavio.ReadFile(p.Path)
	if err != nil {
		return nil, &sitar.DeviceError{Device: p.Path, Err: err}
	}
	if p.SampleRate > 0 {
		if a, err = wavio.Resample(a, p.SampleRate); err != nil {
			return nil, &sitar.DeviceError{Device: p.Path, Err: err}
		}
	}
	return NewPacedInput(NewBufferInput(a.Channels, a.Data, p.Loop), a.SampleRate), nil
}

// BufferInput is an unpaced in-memory input.
type BufferInput struct {
	mu       sync.Mutex
	channels int
	data     []float32
	pos      int
	loop     bool
	closed   bool
}

// NewBufferInput serves interleaved data with the given channel count.
func NewBufferInput(channels int, data []float32, loop bool) *BufferInput {
	if channels < 1 {
		channels = 1
	}
	return &BufferInput{channels: channels, data: data, loop: loop}
}

// Channels implements sitar.Input.
func (b *BufferInput) Channels() int { return b.channels }

// Read implements sitar.Input.
func (b *BufferInput) Read(ctx context.Context, buf []float32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	n := 0
	for n < len(buf) {
		if b.pos >= len(b.data) {
			if !b.loop || len(b.data) == 0 {
				break
			}
			b.pos = 0
		}
		c := copy(buf[n:], b.data[b.pos:])
		b.pos += c
		n += c
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Close implements sitar.Input.
func (b *BufferInput) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (b *BufferInput) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// PacedInput delivers frames no faster than sampleRate frames per second of
// wall time, like a capture device would.
type PacedInput struct {
	src        sitar.Input
	sampleRate int
	now        func() time.Time

	start  time.Time
	frames int64
}

// NewPacedInput paces src at sampleRate.
func NewPacedInput(src sitar.Input, sampleRate int) *PacedInput {
	return &PacedInput{src: src, sampleRate: sampleRate, now: time.Now}
}

// Channels implements sitar.Input.
func (p *PacedInput) Channels() int { return p.src.Channels() }

// SampleRate returns the delivery rate.
func (p *PacedInput) SampleRate() int { return p.sampleRate }

// Read implements sitar.Input. It blocks until the block is due.
func (p *PacedInput) Read(ctx context.Context, buf []float32) (int, error) {
	if p.start.IsZero() {
		p.start = p.now()
	}
	ch := p.src.Channels()
	due := p.start.Add(time.Duration(float64(p.frames) / float64(p.sampleRate) * float64(time.Second)))
	if wait := due.Sub(p.now()); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return 0, ctx.Err()
		case <-t.C:
		}
	}
	n, err := p.src.Read(ctx, buf)
	p.frames += int64(n / ch)
	return n, err
}

// Close implements sitar.Input.
func (p *PacedInput) Close() error { return p.src.Close() }
