// Package session ties the engine, recorder, cursor and offline renderer
// into one explicitly owned live session.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/algo-sitar/cursor"
	"github.com/cwbudde/algo-sitar/device"
	"github.com/cwbudde/algo-sitar/internal/status"
	"github.com/cwbudde/algo-sitar/internal/wavio"
	"github.com/cwbudde/algo-sitar/offline"
	"github.com/cwbudde/algo-sitar/preset"
	"github.com/cwbudde/algo-sitar/recorder"
	"github.com/cwbudde/algo-sitar/sitar"
)

// Config configures a Session.
type Config struct {
	Engine sitar.EngineConfig

	// Provider acquires the live input.
	Provider device.Provider

	// Monitor opens the monitor output at the engine rate. Nil renders
	// without an audible monitor.
	Monitor func(sampleRate int) (sitar.Output, error)

	// Preview plays offline renders. Nil disables preview.
	Preview offline.Sink

	// OutputDir receives takes and offline exports.
	OutputDir    string
	PollInterval time.Duration

	// Frames drives both progress cursors (60 Hz ticker when nil).
	Frames cursor.FrameSource

	Logger *slog.Logger
}

// Session owns one live engine and everything attached to it.
type Session struct {
	cfg Config
	log *slog.Logger

	store    *sitar.Store
	engine   *sitar.Engine
	status   *status.Channel
	elapsed  *status.Gauge
	progress *status.Gauge
	preview  *status.Gauge
	cursor   *cursor.Scheduler
	rec      *recorder.Orchestrator
	offline  *offline.Previewer
	presets  preset.Library

	mu          sync.Mutex
	inputGen    int
	offlineIn   *wavio.Audio
	offlineName string
	closed      bool
	watchers    sync.WaitGroup
}

// New creates an idle session with default parameters.
func New(cfg Config) (*Session, error) {
	def := sitar.DefaultEngineConfig()
	if cfg.Engine.SampleRate == 0 {
		cfg.Engine.SampleRate = def.SampleRate
	}
	if cfg.Engine.BlockSize <= 0 {
		cfg.Engine.BlockSize = def.BlockSize
	}
	if cfg.Engine.ReverbSeconds <= 0 {
		cfg.Engine.ReverbSeconds = def.ReverbSeconds
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store := sitar.NewStore(sitar.NewDefaultParams())
	eng, err := sitar.NewEngine(cfg.Engine, store)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	s := &Session{
		cfg:      cfg,
		log:      cfg.Logger,
		store:    store,
		engine:   eng,
		status:   status.NewChannel(),
		elapsed:  &status.Gauge{},
		progress: &status.Gauge{},
		preview:  &status.Gauge{},
	}
	s.cursor = cursor.New(eng, s.progress.Set, cfg.Frames)
	s.rec = recorder.New(eng, recorder.Config{
		Dir:          cfg.OutputDir,
		PollInterval: cfg.PollInterval,
		Logger:       cfg.Logger,
		Status:       s.status,
		Elapsed:      s.elapsed,
		Cursor:       s.cursor,
	})
	s.offline = offline.NewPreviewer(cfg.Preview, s.preview.Set, cfg.Frames, cfg.Logger)
	return s, nil
}

// Store returns the parameter store.
func (s *Session) Store() *sitar.Store { return s.store }

// Engine returns the live engine.
func (s *Session) Engine() *sitar.Engine { return s.engine }

// Status returns the status channel.
func (s *Session) Status() *status.Channel { return s.status }

// Recorder returns the recording orchestrator.
func (s *Session) Recorder() *recorder.Orchestrator { return s.rec }

// Presets returns the in-memory preset library.
func (s *Session) Presets() *preset.Library { return &s.presets }

// Elapsed returns the recording time in seconds.
func (s *Session) Elapsed() float64 { return s.elapsed.Get() }

// Progress returns the backing playback progress in [0,1].
func (s *Session) Progress() float64 { return s.progress.Get() }

// PreviewProgress returns the offline preview progress in [0,1].
func (s *Session) PreviewProgress() float64 { return s.preview.Get() }

// fail logs err for op, surfaces it on the status channel and returns it.
func (s *Session) fail(op string, err error) error {
	s.log.Error(op+" failed", slog.Any("error", err), slog.Bool("recoverable", sitar.IsRecoverable(err)))
	s.status.Error(err)
	return err
}

// AcquireInput opens the live input with every processing stage disabled,
// builds the graph and starts rendering. A held input is released first.
func (s *Session) AcquireInput(ctx context.Context) error {
	if s.cfg.Provider == nil {
		return s.fail("acquire input", &sitar.DeviceError{Err: sitar.ErrNoDevice})
	}
	if s.engine.HasInput() {
		if err := s.ReleaseInput(); err != nil {
			s.log.Warn("releasing previous input", slog.Any("error", err))
		}
	}

	in, err := s.cfg.Provider.Acquire(ctx, device.RawConstraints())
	if err != nil {
		return s.fail("acquire input", err)
	}
	var out sitar.Output
	if s.cfg.Monitor != nil {
		if out, err = s.cfg.Monitor(s.engine.SampleRate()); err != nil {
			_ = in.Close()
			return s.fail("open monitor", &sitar.DeviceError{Device: "monitor", Err: err})
		}
	}

	s.engine.AttachInput(in, out)
	if err := s.rec.InputReady(); err != nil {
		_ = s.engine.ReleaseInput()
		return s.fail("build graph", err)
	}
	if err := s.engine.Start(context.Background()); err != nil {
		_ = s.engine.ReleaseInput()
		return s.fail("start engine", err)
	}

	s.log.Info("live input ready",
		slog.Int("channels", in.Channels()),
		slog.Int("sample_rate", s.engine.SampleRate()))
	s.status.Publish("ready")

	s.mu.Lock()
	s.inputGen++
	gen := s.inputGen
	done := s.engine.Done()
	s.watchers.Add(1)
	s.mu.Unlock()
	go s.watchInput(gen, done)
	return nil
}

// watchInput returns the recorder to Idle when the render loop of input
// generation gen ends on its own.
func (s *Session) watchInput(gen int, done <-chan struct{}) {
	defer s.watchers.Done()
	if done == nil {
		return
	}
	<-done

	s.mu.Lock()
	current := gen == s.inputGen && !s.closed
	if current {
		s.inputGen++
	}
	s.mu.Unlock()
	if !current {
		return
	}

	if err := s.engine.Err(); err != nil {
		_ = s.fail("live input", err)
	} else {
		s.log.Info("live input ended")
		s.status.Publish("input ended")
	}
	if err := s.rec.InputLost(); err != nil {
		s.log.Error("finalize after input loss", slog.Any("error", err))
	}
	if err := s.engine.ReleaseInput(); err != nil {
		s.log.Warn("release input", slog.Any("error", err))
	}
}

// ReleaseInput finalizes any take and closes the live input.
func (s *Session) ReleaseInput() error {
	s.mu.Lock()
	s.inputGen++
	s.mu.Unlock()

	errRec := s.rec.InputLost()
	errIn := s.engine.ReleaseInput()
	return errors.Join(errRec, errIn)
}

// StartRecording begins a take, re-arming the recorder when the input is
// still held after a previous take.
func (s *Session) StartRecording() error {
	if s.rec.State() == recorder.Idle && s.engine.HasInput() {
		if err := s.rec.InputReady(); err != nil {
			return s.fail("record", err)
		}
	}
	if err := s.rec.Start(); err != nil {
		return s.fail("record", err)
	}
	return nil
}

// StopRecording ends the current take and returns once it is written.
func (s *Session) StopRecording() error {
	err := s.rec.Stop()
	if s.engine.HasInput() {
		if rerr := s.rec.InputReady(); rerr != nil {
			s.log.Warn("re-arm recorder", slog.Any("error", rerr))
		}
	}
	// the orchestrator already logged and published a failure
	return err
}

// LastTake returns the path of the latest written take.
func (s *Session) LastTake() (string, error) {
	path, err := s.rec.LastTake()
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", os.ErrNotExist
	}
	return path, nil
}

// decodeAt decodes an encoded file and resamples it to the engine rate.
func (s *Session) decodeAt(name string, r io.ReadSeeker) (*wavio.Audio, error) {
	a, err := wavio.Decode(name, r)
	if err != nil {
		return nil, err
	}
	a, err = wavio.Resample(a, s.engine.SampleRate())
	if err != nil {
		return nil, &sitar.DecodeError{Name: name, Err: err}
	}
	return a, nil
}

// LoadBacking decodes a backing track for the next take and resets the
// playback progress.
func (s *Session) LoadBacking(name string, r io.ReadSeeker) (*sitar.BackingTrack, error) {
	a, err := s.decodeAt(name, r)
	if err != nil {
		return nil, s.fail("load backing", err)
	}
	track, err := sitar.NewBackingTrack(name, a.SampleRate, a.Channels, a.Data)
	if err != nil {
		return nil, s.fail("load backing", &sitar.DecodeError{Name: name, Err: err})
	}
	s.rec.SetBacking(track)
	s.progress.Set(0)
	s.log.Info("backing loaded", slog.String("name", name), slog.Float64("seconds", track.Duration()))
	s.status.Publish("backing loaded: " + name)
	return track, nil
}

// LoadBackingFile is LoadBacking for a file on disk.
func (s *Session) LoadBackingFile(path string) (*sitar.BackingTrack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, s.fail("load backing", &sitar.DecodeError{Name: path, Err: err})
	}
	defer f.Close()
	return s.LoadBacking(filepath.Base(path), f)
}

// ClearBacking removes the backing track.
func (s *Session) ClearBacking() {
	s.rec.SetBacking(nil)
	s.progress.Set(0)
}

// SetParam writes one control by name and returns the stored (clamped)
// value.
func (s *Session) SetParam(name string, v float64) (float64, error) {
	id, ok := sitar.ParseParamID(name)
	if !ok {
		return 0, fmt.Errorf("unknown parameter %q", name)
	}
	return s.store.Set(id, v), nil
}

// ApplyPreset decodes an untyped payload and replaces every control.
func (s *Session) ApplyPreset(payload map[string]any) sitar.ParameterSet {
	p := preset.Decode(payload)
	s.store.Replace(p)
	return p
}

// SavePreset stores the current controls under name. It reports false when
// the library is full.
func (s *Session) SavePreset(name string) bool {
	return s.presets.Add(name, s.store.Snapshot())
}

// RecallPreset applies a stored preset.
func (s *Session) RecallPreset(name string) error {
	p, ok := s.presets.Get(name)
	if !ok {
		return fmt.Errorf("preset %q not found", name)
	}
	s.store.Replace(p)
	return nil
}

// LoadOfflineInput decodes the file to render offline.
func (s *Session) LoadOfflineInput(name string, r io.ReadSeeker) error {
	a, err := s.decodeAt(name, r)
	if err != nil {
		return s.fail("load offline input", err)
	}
	s.mu.Lock()
	s.offlineIn, s.offlineName = a, name
	s.mu.Unlock()
	s.log.Info("offline input loaded", slog.String("name", name), slog.Float64("seconds", a.Duration()))
	return nil
}

// RenderOffline renders the loaded offline input with the current controls.
func (s *Session) RenderOffline(ctx context.Context) (*offline.Result, error) {
	s.mu.Lock()
	a, name := s.offlineIn, s.offlineName
	s.mu.Unlock()
	if a == nil {
		return nil, s.fail("offline render", errors.New("no offline input loaded"))
	}
	ir := s.cfg.Engine
	if a.SampleRate != ir.SampleRate {
		ir.SampleRate = a.SampleRate
		ir.ReverbIRLeft, ir.ReverbIRRight = nil, nil
	}
	irL, irR, err := ir.Impulse()
	if err != nil {
		return nil, s.fail("offline render", err)
	}
	res, err := offline.Render(ctx, offline.Job{
		Input:        a.Data,
		Channels:     a.Channels,
		SampleRate:   a.SampleRate,
		Params:       s.store.Snapshot(),
		ImpulseLeft:  irL,
		ImpulseRight: irR,
		BlockSize:    s.cfg.Engine.BlockSize,
	})
	if err != nil {
		return nil, s.fail("offline render", err)
	}
	s.offline.SetResult(res)
	s.preview.Set(0)
	s.log.Info("offline render finished", slog.String("input", name), slog.Float64("seconds", res.Duration()))
	s.status.Publish("offline render ready")
	return res, nil
}

// StartPreview plays the latest offline render.
func (s *Session) StartPreview() error {
	if err := s.offline.StartPreview(); err != nil {
		return s.fail("preview", err)
	}
	return nil
}

// StopPreview halts the offline preview.
func (s *Session) StopPreview() { s.offline.StopPreview() }

// ExportOffline writes the latest offline render to the output directory.
func (s *Session) ExportOffline() (string, error) {
	path, err := s.offline.Export(s.cfg.OutputDir)
	if err != nil {
		return "", s.fail("export", err)
	}
	s.status.Publish("exported: " + filepath.Base(path))
	return path, nil
}

// OfflineResult returns the latest offline render or nil.
func (s *Session) OfflineResult() *offline.Result { return s.offline.Result() }

// Close tears the session down: backing playback, cursor, elapsed poll,
// live input, then the engine and its output. It is safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.inputGen++
	s.mu.Unlock()

	s.engine.StopBacking()
	s.cursor.Stop()
	s.offline.StopPreview()
	errRec := s.rec.Stop()
	s.elapsed.Set(0)
	errIn := s.engine.ReleaseInput()
	errEng := s.engine.Close()
	s.watchers.Wait()

	err := errors.Join(errRec, errIn, errEng)
	if err != nil {
		s.log.Error("session teardown", slog.Any("error", err))
	} else {
		s.log.Info("session closed")
	}
	return err
}
