// Package recorder drives recording takes: it binds the engine's recording
// bus to an encoder, plays an optional backing track in lock-step, tracks
// the elapsed time and writes each finished take to disk exactly once.
package recorder

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/algo-sitar/cursor"
	"github.com/cwbudde/algo-sitar/internal/status"
	"github.com/cwbudde/algo-sitar/internal/wavio"
	"github.com/cwbudde/algo-sitar/sitar"
)

const (
	// TakeFileName is the file every finished take is written to.
	TakeFileName = "neon-sitar-take.wav"

	// DefaultPollInterval is the elapsed-time publication period.
	DefaultPollInterval = 250 * time.Millisecond
)

// State is the orchestrator state.
type State int

const (
	Idle State = iota
	InputReady
	Recording
)

func (s State) String() string {
	switch s {
	case InputReady:
		return "input-ready"
	case Recording:
		return "recording"
	default:
		return "idle"
	}
}

// Engine is the part of sitar.Engine the orchestrator drives.
type Engine interface {
	BuildGraph() error
	Graph() *sitar.Graph
	BindRecording(sitar.BusSink)
	UnbindRecording()
	PlayBacking(track *sitar.BackingTrack, onEnded func()) float64
	StopBacking()
	Now() float64
	SampleRate() int
}

// Config configures an Orchestrator. Zero values select defaults.
type Config struct {
	Dir          string
	FileName     string
	PollInterval time.Duration
	QueueDepth   int

	Logger  *slog.Logger
	Status  *status.Channel
	Elapsed *status.Gauge
	Cursor  *cursor.Scheduler

	// Write encodes a finished take (wavio.WriteStereo by default).
	Write func(path string, samples []float32, sampleRate int) error
}

type take struct {
	start   float64
	backing *sitar.BackingTrack

	pollStop chan struct{}
	pollDone chan struct{}

	once sync.Once
	err  error
}

// Orchestrator is the Idle → InputReady → Recording state machine.
type Orchestrator struct {
	cfg    Config
	engine Engine
	log    *slog.Logger

	mu       sync.Mutex
	state    State
	dest     *Destination
	enc      *Encoder
	backing  *sitar.BackingTrack
	current  *take
	lastPath string
	lastErr  error
	takes    int
}

// New creates an idle orchestrator for engine.
func New(engine Engine, cfg Config) *Orchestrator {
	if cfg.FileName == "" {
		cfg.FileName = TakeFileName
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Status == nil {
		cfg.Status = status.NewChannel()
	}
	if cfg.Elapsed == nil {
		cfg.Elapsed = &status.Gauge{}
	}
	if cfg.Write == nil {
		cfg.Write = wavio.WriteStereo
	}
	return &Orchestrator{cfg: cfg, engine: engine, log: cfg.Logger}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// InputReady records that live input was acquired, building the graph if
// needed. During a take it changes nothing.
func (o *Orchestrator) InputReady() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == Recording {
		return nil
	}
	if err := o.engine.BuildGraph(); err != nil {
		return err
	}
	if o.engine.Graph() == nil {
		return &sitar.GraphNotReadyError{Op: "input ready"}
	}
	o.state = InputReady
	return nil
}

// InputLost returns to Idle when the live input goes away. An active take is
// finalized first.
func (o *Orchestrator) InputLost() error {
	err := o.Stop()
	o.mu.Lock()
	o.state = Idle
	o.mu.Unlock()
	return err
}

// SetBacking selects the backing track played with the next take (nil
// clears it).
func (o *Orchestrator) SetBacking(track *sitar.BackingTrack) {
	o.mu.Lock()
	o.backing = track
	o.mu.Unlock()
}

// Backing returns the loaded backing track.
func (o *Orchestrator) Backing() *sitar.BackingTrack {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.backing
}

// Start begins a take. From Idle it fails with GraphNotReadyError; while
// recording it is a no-op.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case Idle:
		return &sitar.GraphNotReadyError{Op: "record"}
	case Recording:
		return nil
	}

	if o.dest == nil {
		o.dest = NewDestination(o.cfg.QueueDepth)
		o.enc = NewEncoder(o.dest)
	}
	o.engine.UnbindRecording()
	o.engine.BindRecording(o.dest)

	t := &take{
		start:    o.engine.Now(),
		backing:  o.backing,
		pollStop: make(chan struct{}),
		pollDone: make(chan struct{}),
	}
	o.enc.Start()
	o.cfg.Elapsed.Set(0)
	go o.poll(t)

	if t.backing != nil {
		t.start = o.engine.PlayBacking(t.backing, func() {
			if err := o.finish(t); err != nil {
				o.log.Error("auto-stop failed", slog.Any("error", err))
			}
		})
		if o.cfg.Cursor != nil {
			o.cfg.Cursor.Start(t.start, t.backing.Duration())
		}
	}

	o.current = t
	o.state = Recording
	o.takes++
	o.log.Info("recording started", slog.Int("take", o.takes), slog.Bool("backing", t.backing != nil))
	o.cfg.Status.Publish("recording")
	return nil
}

func (o *Orchestrator) poll(t *take) {
	defer close(t.pollDone)
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.pollStop:
			return
		case <-ticker.C:
			o.cfg.Elapsed.Set(o.engine.Now() - t.start)
		}
	}
}

// Stop ends the current take and waits for it to be written. Outside a take
// it does nothing.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	t := o.current
	o.mu.Unlock()
	if t == nil {
		return nil
	}
	return o.finish(t)
}

// finish finalizes t exactly once, whichever of explicit stop and natural
// backing end gets here first.
func (o *Orchestrator) finish(t *take) error {
	t.once.Do(func() { t.err = o.finalize(t) })
	return t.err
}

func (o *Orchestrator) finalize(t *take) error {
	o.mu.Lock()
	o.engine.StopBacking()
	o.engine.UnbindRecording()
	samples := o.enc.Stop()
	close(t.pollStop)
	<-t.pollDone
	o.cfg.Elapsed.Set(0)
	if o.cfg.Cursor != nil {
		o.cfg.Cursor.Stop()
	}
	if o.current == t {
		o.current = nil
	}
	o.state = Idle
	dropped := o.dest.Dropped()
	o.mu.Unlock()

	path := filepath.Join(o.cfg.Dir, o.cfg.FileName)
	frames := len(samples) / 2
	if dropped > 0 {
		o.log.Warn("recording blocks dropped", slog.Int64("blocks", dropped))
	}

	err := o.cfg.Write(path, samples, o.engine.SampleRate())
	o.mu.Lock()
	if err != nil {
		err = &sitar.EncodingError{Path: path, Err: err}
		o.lastErr = err
	} else {
		o.lastPath = path
		o.lastErr = nil
	}
	o.mu.Unlock()

	if err != nil {
		o.log.Error("recording finalization failed", slog.String("path", path), slog.Any("error", err))
		o.cfg.Status.Error(err)
		return err
	}
	o.log.Info("recording finished", slog.String("path", path), slog.Int("frames", frames))
	o.cfg.Status.Publish(fmt.Sprintf("recording finished: %s", filepath.Base(path)))
	return nil
}

// LastTake returns the path of the most recent written take and the error
// of the most recent finalization.
func (o *Orchestrator) LastTake() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastPath, o.lastErr
}

// Elapsed returns the published recording time in seconds.
func (o *Orchestrator) Elapsed() float64 {
	return o.cfg.Elapsed.Get()
}
