package recorder

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cwbudde/algo-sitar/internal/status"
	"github.com/cwbudde/algo-sitar/internal/wavio"
	"github.com/cwbudde/algo-sitar/sitar"
)

// fakeEngine renders nothing; tests push recording-bus blocks by hand.
type fakeEngine struct {
	mu       sync.Mutex
	graph    *sitar.Graph
	hasInput bool
	sink     sitar.BusSink
	onEnded  func()
	playing  bool
	frames   int64
	binds    int
}

func (f *fakeEngine) BuildGraph() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.graph != nil || !f.hasInput {
		return nil
	}
	g, err := sitar.NewGraph(48000, 128, sitar.NewDefaultParams(), nil, nil)
	if err != nil {
		return err
	}
	f.graph = g
	return nil
}

func (f *fakeEngine) Graph() *sitar.Graph {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.graph
}

func (f *fakeEngine) BindRecording(s sitar.BusSink) {
	f.mu.Lock()
	f.sink = s
	f.binds++
	f.mu.Unlock()
}

func (f *fakeEngine) UnbindRecording() {
	f.mu.Lock()
	f.sink = nil
	f.mu.Unlock()
}

func (f *fakeEngine) PlayBacking(_ *sitar.BackingTrack, onEnded func()) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = true
	f.onEnded = onEnded
	return float64(f.frames) / 48000
}

func (f *fakeEngine) StopBacking() {
	f.mu.Lock()
	f.playing = false
	f.onEnded = nil
	f.mu.Unlock()
}

func (f *fakeEngine) Now() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return float64(f.frames) / 48000
}

func (f *fakeEngine) SampleRate() int { return 48000 }

// render pushes n frames of value v to the bound sink.
func (f *fakeEngine) render(n int, v float32) {
	f.mu.Lock()
	sink := f.sink
	start := f.frames
	f.frames += int64(n)
	f.mu.Unlock()
	if sink == nil {
		return
	}
	data := make([]float32, n*2)
	for i := range data {
		data[i] = v
	}
	sink.WriteBus(start, data)
}

// end simulates the backing track reaching its natural end.
func (f *fakeEngine) end() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn := f.onEnded
	f.onEnded = nil
	f.playing = false
	return fn
}

func newTestOrchestrator(t *testing.T, eng *fakeEngine) (*Orchestrator, *status.Channel, string) {
	t.Helper()
	dir := t.TempDir()
	ch := status.NewChannel()
	o := New(eng, Config{Dir: dir, Status: ch, PollInterval: 5 * time.Millisecond})
	return o, ch, dir
}

func TestStartFromIdleFails(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &fakeEngine{})
	err := o.Start()
	var nr *sitar.GraphNotReadyError
	if !errors.As(err, &nr) {
		t.Fatalf("expected GraphNotReadyError, got %v", err)
	}
	if o.State() != Idle {
		t.Fatalf("state=%s", o.State())
	}
	if err := o.InputReady(); err == nil {
		t.Fatalf("InputReady without input should fail")
	}
}

func TestRecordAndStopWritesTake(t *testing.T) {
	eng := &fakeEngine{hasInput: true}
	o, ch, dir := newTestOrchestrator(t, eng)
	if err := o.InputReady(); err != nil {
		t.Fatalf("InputReady: %v", err)
	}
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if o.State() != Recording {
		t.Fatalf("state=%s", o.State())
	}
	if err := o.Start(); err != nil {
		t.Fatalf("Start while recording should be a no-op: %v", err)
	}
	if eng.binds != 1 {
		t.Fatalf("second start rebound the bus")
	}

	for i := 0; i < 10; i++ {
		eng.render(128, 0.25)
	}
	deadline := time.Now().Add(time.Second)
	for o.Elapsed() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("elapsed time never published")
		}
		time.Sleep(time.Millisecond)
	}

	if err := o.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if o.State() != Idle {
		t.Fatalf("state after stop=%s", o.State())
	}
	if o.Elapsed() != 0 {
		t.Fatalf("elapsed not reset: %g", o.Elapsed())
	}
	if err := o.Stop(); err != nil {
		t.Fatalf("Stop from idle: %v", err)
	}

	path, err := o.LastTake()
	if err != nil {
		t.Fatalf("LastTake error: %v", err)
	}
	if path != filepath.Join(dir, TakeFileName) {
		t.Fatalf("unexpected take path %q", path)
	}
	a, err := wavio.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if a.Channels != 2 || a.Frames() != 1280 {
		t.Fatalf("take has %d channels / %d frames", a.Channels, a.Frames())
	}
	if !strings.HasPrefix(ch.Last().Text, "recording finished") {
		t.Fatalf("unexpected status %q", ch.Last().Text)
	}
}

func TestNewTakeResetsChunks(t *testing.T) {
	eng := &fakeEngine{hasInput: true}
	var lens []int
	o := New(eng, Config{
		Dir: t.TempDir(),
		Write: func(_ string, s []float32, _ int) error {
			lens = append(lens, len(s))
			return nil
		},
	})
	for take := 0; take < 2; take++ {
		if err := o.InputReady(); err != nil {
			t.Fatalf("InputReady: %v", err)
		}
		if err := o.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
		eng.render(64, 0.1)
		if err := o.Stop(); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	}
	eng.render(64, 0.1) // unbound, ignored
	if len(lens) != 2 || lens[0] != 128 || lens[1] != 128 {
		t.Fatalf("unexpected take lengths %v", lens)
	}
}

func TestBackingEndFinalizesOnceUnderRacingStop(t *testing.T) {
	eng := &fakeEngine{hasInput: true}
	var writes atomic.Int32
	ch := status.NewChannel()
	sub, cancel := ch.Subscribe(16)
	defer cancel()
	o := New(eng, Config{
		Dir:    t.TempDir(),
		Status: ch,
		Write: func(string, []float32, int) error {
			writes.Add(1)
			return nil
		},
	})
	track, err := sitar.NewBackingTrack("backing", 48000, 2, make([]float32, 2*4800))
	if err != nil {
		t.Fatalf("NewBackingTrack: %v", err)
	}
	o.SetBacking(track)

	if err := o.InputReady(); err != nil {
		t.Fatalf("InputReady: %v", err)
	}
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	eng.render(4800, 0.2)

	ended := eng.end()
	if ended == nil {
		t.Fatalf("backing end callback not registered")
	}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); ended() }()
	go func() { defer wg.Done(); _ = o.Stop() }()
	wg.Wait()

	if got := writes.Load(); got != 1 {
		t.Fatalf("take finalized %d times", got)
	}
	if o.State() != Idle {
		t.Fatalf("state=%s", o.State())
	}
	finished := 0
	for {
		select {
		case m := <-sub:
			if strings.HasPrefix(m.Text, "recording finished") {
				finished++
			}
			continue
		default:
		}
		break
	}
	if finished != 1 {
		t.Fatalf("finished status published %d times", finished)
	}
}

func TestEncodingFailureReportsError(t *testing.T) {
	eng := &fakeEngine{hasInput: true}
	o := New(eng, Config{
		Dir: t.TempDir(),
		Write: func(string, []float32, int) error {
			return errors.New("disk full")
		},
	})
	if err := o.InputReady(); err != nil {
		t.Fatalf("InputReady: %v", err)
	}
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := o.Stop()
	var ee *sitar.EncodingError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EncodingError, got %v", err)
	}
	if o.State() != Idle {
		t.Fatalf("state=%s", o.State())
	}
	if _, last := o.LastTake(); !errors.As(last, &ee) {
		t.Fatalf("LastTake error=%v", last)
	}
}

func TestDestinationDropsWhenFull(t *testing.T) {
	d := NewDestination(2)
	for i := 0; i < 5; i++ {
		d.WriteBus(int64(i), []float32{1, 2})
	}
	if d.Dropped() != 3 {
		t.Fatalf("dropped=%d want 3", d.Dropped())
	}
	c := <-d.Chunks()
	if c.Frame != 0 || len(c.Data) != 2 {
		t.Fatalf("unexpected chunk %+v", c)
	}
	d.Recycle(c)
}

func TestInputLostReturnsToIdle(t *testing.T) {
	eng := &fakeEngine{hasInput: true}
	o, _, _ := newTestOrchestrator(t, eng)
	if err := o.InputReady(); err != nil {
		t.Fatalf("InputReady: %v", err)
	}
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	eng.render(256, 0.1)
	if err := o.InputLost(); err != nil {
		t.Fatalf("InputLost: %v", err)
	}
	if o.State() != Idle {
		t.Fatalf("state=%s", o.State())
	}
}
