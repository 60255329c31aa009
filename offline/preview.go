package offline

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/cwbudde/algo-sitar/cursor"
	"github.com/cwbudde/algo-sitar/internal/wavio"
)

// Playback is a running preview.
type Playback interface {
	// Position returns the played time in seconds.
	Position() float64
	Stop()
}

// Sink starts audible playback of an interleaved stereo buffer.
type Sink interface {
	Play(data []float32, sampleRate int) (Playback, error)
}

// Previewer plays, tracks and exports the latest render.
type Previewer struct {
	sink     Sink
	progress func(float64)
	frames   cursor.FrameSource
	log      *slog.Logger

	mu      sync.Mutex
	result  *Result
	playing Playback
	cursor  *cursor.Scheduler
}

// NewPreviewer creates a previewer. progress receives the 0..1 playback
// position on the cursor cadence; frames may be nil.
func NewPreviewer(sink Sink, progress func(float64), frames cursor.FrameSource, logger *slog.Logger) *Previewer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Previewer{sink: sink, progress: progress, frames: frames, log: logger}
}

// SetResult replaces the render to preview and stops a running preview.
func (p *Previewer) SetResult(r *Result) {
	p.StopPreview()
	p.mu.Lock()
	p.result = r
	p.mu.Unlock()
}

// Result returns the current render.
func (p *Previewer) Result() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// ErrNoRender is returned when previewing or exporting before a render.
var ErrNoRender = errors.New("no offline render available")

// StartPreview plays the current render from the beginning.
func (p *Previewer) StartPreview() error {
	p.StopPreview()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result == nil {
		return ErrNoRender
	}
	if p.sink == nil {
		return errors.New("no playback device")
	}
	pb, err := p.sink.Play(p.result.Data, p.result.SampleRate)
	if err != nil {
		return err
	}
	p.playing = pb
	p.cursor = cursor.New(positionClock{pb}, p.progress, p.frames)
	p.cursor.Start(0, p.result.Duration())
	p.log.Info("offline preview started", slog.Float64("seconds", p.result.Duration()))
	return nil
}

// StopPreview halts playback and resets progress. It does nothing when no
// preview is running.
func (p *Previewer) StopPreview() {
	p.mu.Lock()
	pb, cur := p.playing, p.cursor
	p.playing, p.cursor = nil, nil
	p.mu.Unlock()
	if pb != nil {
		pb.Stop()
	}
	if cur != nil {
		cur.Stop()
	}
}

// Previewing reports whether a preview was started and not stopped.
func (p *Previewer) Previewing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing != nil
}

// Export writes the current render to ExportFileName in dir and returns
// the written path.
func (p *Previewer) Export(dir string) (string, error) {
	p.mu.Lock()
	r := p.result
	p.mu.Unlock()
	if r == nil {
		return "", ErrNoRender
	}
	path := filepath.Join(dir, ExportFileName)
	if err := wavio.WriteStereo(path, r.Data, r.SampleRate); err != nil {
		return "", err
	}
	p.log.Info("offline render exported", slog.String("path", path))
	return path, nil
}

type positionClock struct{ pb Playback }

func (c positionClock) Now() float64 { return c.pb.Position() }
