package device

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/hajimehoshi/oto/v2"

	"github.com/cwbudde/algo-sitar/offline"
)

const (
	outputChannels  = 2
	bytesPerFrame   = 4 * outputChannels
	monitorBufferMS = 200
)

// oto allows one context per process.
var (
	otoMu   sync.Mutex
	otoCtx  *oto.Context
	otoRate int
)

func otoContext(sampleRate int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()
	if otoCtx != nil {
		if otoRate != sampleRate {
			return nil, fmt.Errorf("audio output already opened at %d Hz, requested %d Hz", otoRate, sampleRate)
		}
		return otoCtx, nil
	}
	ctx, ready, err := oto.NewContext(sampleRate, outputChannels, oto.FormatFloat32LE)
	if err != nil {
		return nil, err
	}
	<-ready
	otoCtx = ctx
	otoRate = sampleRate
	return ctx, nil
}

// PutFloat32LE encodes interleaved samples as little-endian float32 bytes.
func PutFloat32LE(dst []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
	}
}

// streamBuffer is a bounded FIFO between the render goroutine and the
// device callback. The writer never blocks; overflow drops the oldest
// bytes. An empty buffer reads as silence so the device keeps running.
type streamBuffer struct {
	mu     sync.Mutex
	buf    []byte
	max    int
	closed bool
}

func newStreamBuffer(maxBytes int) *streamBuffer {
	return &streamBuffer{max: maxBytes}
}

func (s *streamBuffer) write(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, b...)
	if over := len(s.buf) - s.max; over > 0 {
		over += (bytesPerFrame - over%bytesPerFrame) % bytesPerFrame
		s.buf = append(s.buf[:0], s.buf[over:]...)
	}
}

func (s *streamBuffer) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.EOF
	}
	n := copy(p, s.buf)
	s.buf = append(s.buf[:0], s.buf[n:]...)
	clear(p[n:])
	return len(p), nil
}

func (s *streamBuffer) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// MonitorOutput plays the monitor bus on the default audio device.
type MonitorOutput struct {
	stream  *streamBuffer
	player  oto.Player
	scratch []byte
}

// OpenMonitor opens the default output device at sampleRate.
func OpenMonitor(sampleRate int) (*MonitorOutput, error) {
	ctx, err := otoContext(sampleRate)
	if err != nil {
		return nil, err
	}
	stream := newStreamBuffer(sampleRate * bytesPerFrame * monitorBufferMS / 1000)
	player := ctx.NewPlayer(stream)
	player.Play()
	return &MonitorOutput{stream: stream, player: player}, nil
}

// Write implements sitar.Output.
func (m *MonitorOutput) Write(buf []float32) error {
	if cap(m.scratch) < len(buf)*4 {
		m.scratch = make([]byte, len(buf)*4)
	}
	b := m.scratch[:len(buf)*4]
	PutFloat32LE(b, buf)
	m.stream.write(b)
	return nil
}

// Close implements sitar.Output.
func (m *MonitorOutput) Close() error {
	m.stream.close()
	return m.player.Close()
}

// PreviewSink plays offline renders on the default audio device.
type PreviewSink struct{}

// Play implements offline.Sink.
func (PreviewSink) Play(data []float32, sampleRate int) (offline.Playback, error) {
	ctx, err := otoContext(sampleRate)
	if err != nil {
		return nil, err
	}
	b := make([]byte, len(data)*4)
	PutFloat32LE(b, data)
	r := &countingReader{data: b}
	player := ctx.NewPlayer(r)
	player.Play()
	return &previewPlayback{player: player, reader: r, sampleRate: sampleRate}, nil
}

type countingReader struct {
	mu   sync.Mutex
	data []byte
	pos  int
}

func (r *countingReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func (r *countingReader) consumed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

type previewPlayback struct {
	mu         sync.Mutex
	player     oto.Player
	reader     *countingReader
	sampleRate int
	stopped    bool
}

// Position implements offline.Playback.
func (p *previewPlayback) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return 0
	}
	played := p.reader.consumed() - p.player.UnplayedBufferSize()
	if played < 0 {
		played = 0
	}
	return float64(played/bytesPerFrame) / float64(p.sampleRate)
}

// Stop implements offline.Playback.
func (p *previewPlayback) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	p.player.Pause()
	_ = p.player.Close()
}
