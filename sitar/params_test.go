package sitar

import (
	"math"
	"sync"
	"testing"
)

func TestStoreClampsOutOfRangeWrites(t *testing.T) {
	s := NewStore(NewDefaultParams())

	if got := s.Set(ParamAmpGain, -5); got != 0 {
		t.Fatalf("ampGain -5 stored as %g, want 0", got)
	}
	if got := s.Set(ParamAmpGain, 500); got != 6 {
		t.Fatalf("ampGain 500 stored as %g, want 6", got)
	}
	if got := s.Snapshot().AmpGain; got != 6 {
		t.Fatalf("snapshot ampGain=%g", got)
	}
	if got := s.Set(ParamDelayTime, 0); got != 0.02 {
		t.Fatalf("delayTime 0 stored as %g, want 0.02", got)
	}
	if got := s.Set(ParamBass, math.NaN()); got != 0.5 {
		t.Fatalf("NaN should fall back to default, got %g", got)
	}
}

func TestStoreNotifiesSubscribersInOrder(t *testing.T) {
	s := NewStore(NewDefaultParams())
	var got []string
	unsubA := s.Subscribe(func(c Change) { got = append(got, "a:"+c.ID.String()) })
	s.Subscribe(func(c Change) { got = append(got, "b:"+c.ID.String()) })

	s.Set(ParamMid, 0.9)
	if len(got) != 2 || got[0] != "a:mid" || got[1] != "b:mid" {
		t.Fatalf("unexpected notifications: %v", got)
	}

	unsubA()
	unsubA()
	got = nil
	s.SetMode(ModeExotic)
	if len(got) != 1 || got[0] != "b:sitarMode" {
		t.Fatalf("unexpected notifications after unsubscribe: %v", got)
	}
	if s.Snapshot().SitarMode != ModeExotic {
		t.Fatalf("mode not stored")
	}
}

func TestStoreReplaceNotifiesEveryControl(t *testing.T) {
	s := NewStore(NewDefaultParams())
	seen := map[ParamID]bool{}
	s.Subscribe(func(c Change) { seen[c.ID] = true })

	p := NewDefaultParams()
	p.Master = 2
	s.Replace(p)
	if s.Snapshot().Master != 1 {
		t.Fatalf("replace should clamp, master=%g", s.Snapshot().Master)
	}
	for _, id := range NumericParams {
		if !seen[id] {
			t.Fatalf("no notification for %s", id)
		}
	}
	if !seen[ParamSitarMode] || !seen[ParamMonitorEnabled] {
		t.Fatalf("switch notifications missing: %v", seen)
	}
}

func TestStoreConcurrentWrites(t *testing.T) {
	s := NewStore(NewDefaultParams())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.Set(ParamReverbAmount, float64(j%10)/10)
				_ = s.Snapshot()
			}
		}(i)
	}
	wg.Wait()
	if v := s.Snapshot().ReverbAmount; v < 0 || v > 1 {
		t.Fatalf("reverbAmount out of range: %g", v)
	}
}

func TestParseNames(t *testing.T) {
	for _, id := range append(append([]ParamID(nil), NumericParams...), ParamSitarMode, ParamDelayEnabled) {
		got, ok := ParseParamID(id.String())
		if !ok || got != id {
			t.Fatalf("ParseParamID(%q) = %v, %v", id.String(), got, ok)
		}
	}
	for _, m := range []SitarMode{ModeSharp, ModeMajor, ModeMinor, ModeExotic} {
		got, ok := ParseSitarMode(" " + m.String() + " ")
		if !ok || got != m {
			t.Fatalf("ParseSitarMode(%q) = %v, %v", m.String(), got, ok)
		}
	}
	if _, ok := ParseSitarMode("dorian"); ok {
		t.Fatalf("unknown mode accepted")
	}
}
