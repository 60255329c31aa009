package sitar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// Input is a live interleaved sample source at the engine rate.
type Input interface {
	Channels() int
	// Read fills buf with interleaved samples and returns how many were
	// written. It returns io.EOF when the source is exhausted.
	Read(ctx context.Context, buf []float32) (int, error)
	Close() error
}

// Output consumes interleaved stereo blocks (the monitor bus).
type Output interface {
	Write(buf []float32) error
	Close() error
}

// BusSink receives the recording bus. WriteBus is called on the render
// goroutine and must not block; data is only valid during the call.
type BusSink interface {
	WriteBus(frame int64, data []float32)
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	SampleRate int
	BlockSize  int
	// ReverbSeconds is the generated impulse length (DefaultReverbSeconds if 0).
	ReverbSeconds float64
	// ReverbIRLeft and ReverbIRRight optionally replace the generated
	// impulse. They must already be at SampleRate.
	ReverbIRLeft, ReverbIRRight []float32
}

// Impulse returns the configured reverb impulse, generating one when no
// custom impulse is set.
func (c EngineConfig) Impulse() ([]float32, []float32, error) {
	if len(c.ReverbIRLeft) > 0 || len(c.ReverbIRRight) > 0 {
		return c.ReverbIRLeft, c.ReverbIRRight, nil
	}
	return ReverbImpulse(c.ReverbSeconds, c.SampleRate)
}

// DefaultEngineConfig returns a 48 kHz configuration with 128-frame blocks.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SampleRate:    48000,
		BlockSize:     DefaultBlockSize,
		ReverbSeconds: DefaultReverbSeconds,
	}
}

type sinkRef struct {
	sink BusSink
}

type backingVoice struct {
	track   *BackingTrack
	pos     atomic.Int64
	onEnded func()
}

// Engine owns the live graph and renders it from an Input to an Output. The
// render clock advances by the number of processed frames.
type Engine struct {
	cfg   EngineConfig
	store *Store

	mu         sync.Mutex
	input      Input
	output     Output
	automation *Automation
	cancel     context.CancelFunc
	done       chan struct{}
	runErr     error

	graph   atomic.Pointer[Graph]
	frames  atomic.Int64
	sink    atomic.Pointer[sinkRef]
	backing atomic.Pointer[backingVoice]

	// Render goroutine scratch.
	monBuf []float32
	recBuf []float32
}

// NewEngine creates an engine bound to store. The graph is built lazily by
// BuildGraph once an input is attached.
func NewEngine(cfg EngineConfig, store *Store) (*Engine, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", cfg.SampleRate)
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.ReverbSeconds <= 0 {
		cfg.ReverbSeconds = DefaultReverbSeconds
	}
	if store == nil {
		store = NewStore(NewDefaultParams())
	}
	return &Engine{cfg: cfg, store: store}, nil
}

// SampleRate returns the engine rate in Hz.
func (e *Engine) SampleRate() int { return e.cfg.SampleRate }

// Store returns the parameter store driving the graph.
func (e *Engine) Store() *Store { return e.store }

// Graph returns the live graph or nil before BuildGraph.
func (e *Engine) Graph() *Graph { return e.graph.Load() }

// Now returns the render clock in seconds.
func (e *Engine) Now() float64 {
	return float64(e.frames.Load()) / float64(e.cfg.SampleRate)
}

// Frames returns the number of frames rendered so far.
func (e *Engine) Frames() int64 { return e.frames.Load() }

// AttachInput sets the live input and the monitor output (out may be nil).
// A previously attached input is closed.
func (e *Engine) AttachInput(in Input, out Output) {
	e.mu.Lock()
	prevIn, prevOut := e.input, e.output
	e.input = in
	e.output = out
	e.mu.Unlock()
	if prevIn != nil && prevIn != in {
		_ = prevIn.Close()
	}
	if prevOut != nil && prevOut != out {
		_ = prevOut.Close()
	}
}

// HasInput reports whether a live input is attached.
func (e *Engine) HasInput() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.input != nil
}

// BuildGraph constructs the graph from the current parameters and starts
// live automation. It is a no-op when the graph already exists or when no
// input is attached.
func (e *Engine) BuildGraph() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.graph.Load() != nil || e.input == nil {
		return nil
	}

	irL, irR, err := e.cfg.Impulse()
	if err != nil {
		return fmt.Errorf("reverb impulse: %w", err)
	}
	g, err := NewGraph(e.cfg.SampleRate, e.cfg.BlockSize, e.store.Snapshot(), irL, irR)
	if err != nil {
		return err
	}
	e.automation = NewAutomation(e.store, g, e, SmoothingTau)
	e.graph.Store(g)
	return nil
}

// BindRecording routes the recording bus to sink, replacing (and thereby
// disconnecting) any previous binding.
func (e *Engine) BindRecording(sink BusSink) {
	if sink == nil {
		e.sink.Store(nil)
		return
	}
	e.sink.Store(&sinkRef{sink: sink})
}

// UnbindRecording disconnects the recording bus.
func (e *Engine) UnbindRecording() {
	e.sink.Store(nil)
}

// PlayBacking starts track from its beginning, mixed into both output buses,
// and returns the render time at which it starts. onEnded (may be nil) runs
// on its own goroutine when the track plays to its end, never after
// StopBacking or a replacement.
func (e *Engine) PlayBacking(track *BackingTrack, onEnded func()) float64 {
	if track == nil {
		return e.Now()
	}
	e.backing.Store(&backingVoice{track: track, onEnded: onEnded})
	return e.Now()
}

// StopBacking halts backing playback without firing its end callback.
func (e *Engine) StopBacking() {
	e.backing.Store(nil)
}

// BackingPlaying reports whether a backing track is being mixed.
func (e *Engine) BackingPlaying() bool {
	return e.backing.Load() != nil
}

// ProcessBlock renders interleaved input with the given channel count and
// returns the monitor bus (interleaved stereo, valid until the next call).
// It must only be called from one goroutine at a time.
func (e *Engine) ProcessBlock(in []float32, channels int) ([]float32, error) {
	g := e.graph.Load()
	if g == nil {
		return nil, &GraphNotReadyError{Op: "process"}
	}
	if channels < 1 {
		channels = 1
	}
	frames := len(in) / channels
	e.monBuf = grow(e.monBuf, frames*2)
	e.recBuf = grow(e.recBuf, frames*2)
	mon, rec := e.monBuf, e.recBuf

	start := e.frames.Load()
	g.Process(start, in[:frames*channels], channels, mon, rec)
	e.mixBacking(mon, rec, frames)
	if ref := e.sink.Load(); ref != nil {
		ref.sink.WriteBus(start, rec)
	}
	e.frames.Add(int64(frames))
	return mon, nil
}

func (e *Engine) mixBacking(mon, rec []float32, frames int) {
	v := e.backing.Load()
	if v == nil {
		return
	}
	pos := int(v.pos.Load())
	total := v.track.Frames()
	n := min(frames, total-pos)
	data := v.track.Data[pos*2:]
	for i := 0; i < n*2; i++ {
		mon[i] += data[i]
		rec[i] += data[i]
	}
	pos += n
	v.pos.Store(int64(pos))
	if pos >= total && e.backing.CompareAndSwap(v, nil) && v.onEnded != nil {
		go v.onEnded()
	}
}

func grow(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}

// Run renders the attached input until ctx is cancelled or the input ends.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	in, out := e.input, e.output
	e.mu.Unlock()
	if in == nil || e.graph.Load() == nil {
		return &GraphNotReadyError{Op: "run"}
	}

	ch := max(in.Channels(), 1)
	buf := make([]float32, e.cfg.BlockSize*ch)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := in.Read(ctx, buf)
		n -= n % ch
		if n > 0 {
			mon, perr := e.ProcessBlock(buf[:n], ch)
			if perr != nil {
				return perr
			}
			if out != nil {
				if werr := out.Write(mon); werr != nil {
					return fmt.Errorf("write monitor: %w", werr)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
	}
}

// Start runs the engine on its own goroutine. Starting a running engine is a
// no-op.
func (e *Engine) Start(ctx context.Context) error {
	if e.graph.Load() == nil {
		return &GraphNotReadyError{Op: "start"}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	go func() {
		defer close(done)
		err := e.Run(ctx)
		e.mu.Lock()
		e.runErr = err
		e.mu.Unlock()
	}()
	return nil
}

// Stop halts the render goroutine and waits for it to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the render goroutine exits (nil if not running).
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Err returns the error the last run ended with.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runErr
}

// ReleaseInput stops rendering and closes the live input.
func (e *Engine) ReleaseInput() error {
	e.Stop()
	e.mu.Lock()
	in := e.input
	e.input = nil
	e.mu.Unlock()
	if in == nil {
		return nil
	}
	return in.Close()
}

// Close releases everything the engine holds. It is safe to call twice.
func (e *Engine) Close() error {
	e.StopBacking()
	e.UnbindRecording()
	errIn := e.ReleaseInput()

	e.mu.Lock()
	out, auto := e.output, e.automation
	e.output, e.automation = nil, nil
	e.mu.Unlock()

	if auto != nil {
		auto.Close()
	}
	var errOut error
	if out != nil {
		errOut = out.Close()
	}
	return errors.Join(errIn, errOut)
}
