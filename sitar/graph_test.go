package sitar

import (
	"math"
	"testing"
)

const testRate = 48000

func testImpulse(t *testing.T) ([]float32, []float32) {
	t.Helper()
	l, r, err := ReverbImpulse(0.2, testRate)
	if err != nil {
		t.Fatalf("ReverbImpulse: %v", err)
	}
	return l, r
}

func newTestGraph(t *testing.T, p ParameterSet) *Graph {
	t.Helper()
	l, r := testImpulse(t)
	g, err := NewGraph(testRate, DefaultBlockSize, p, l, r)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	return g
}

// neutralParams routes the signal through unity stages with every effect off.
func neutralParams() ParameterSet {
	p := NewDefaultParams()
	p.AmpGain = 1
	p.DriveEnabled = false
	p.SitarAmount = 0
	p.DelayEnabled = false
	p.ReverbAmount = 0
	p.Master = 1.0 / MasterScale
	p.AmpTone = 1
	return p
}

func TestGraphProducesFiniteStereo(t *testing.T) {
	g := newTestGraph(t, NewDefaultParams())
	in := sine(testRate/2, 220, testRate, 0.5)
	mon := make([]float32, len(in)*2)
	rec := make([]float32, len(in)*2)

	if n := g.Process(0, in, 1, mon, rec); n != len(in) {
		t.Fatalf("processed %d frames, want %d", n, len(in))
	}
	if !allFinite(mon) || !allFinite(rec) {
		t.Fatalf("non-finite output")
	}
	if stereoRMS(rec) < 1e-3 {
		t.Fatalf("recording bus is silent")
	}
	if d := maxAbsDiff(mon, rec); d > 1e-6 {
		t.Fatalf("monitor enabled should equal record bus, diff=%g", d)
	}
}

func TestGraphDownmixesInterleavedInput(t *testing.T) {
	mono := sine(2048, 330, testRate, 0.4)
	stereo := make([]float32, len(mono)*2)
	for i, v := range mono {
		stereo[i*2] = v
		stereo[i*2+1] = v
	}

	a := newTestGraph(t, NewDefaultParams())
	b := newTestGraph(t, NewDefaultParams())
	outA := make([]float32, len(mono)*2)
	outB := make([]float32, len(mono)*2)
	a.Process(0, mono, 1, nil, outA)
	b.Process(0, stereo, 2, nil, outB)
	if d := maxAbsDiff(outA, outB); d > 1e-6 {
		t.Fatalf("dual-mono input should match mono, diff=%g", d)
	}
}

func TestGraphMonitorGateLeavesRecordingBus(t *testing.T) {
	p := NewDefaultParams()
	p.MonitorEnabled = false
	g := newTestGraph(t, p)

	in := sine(4096, 220, testRate, 0.5)
	mon := make([]float32, len(in)*2)
	rec := make([]float32, len(in)*2)
	g.Process(0, in, 1, mon, rec)
	if rms := stereoRMS(mon); rms != 0 {
		t.Fatalf("monitor should be muted, rms=%g", rms)
	}
	if stereoRMS(rec) < 1e-3 {
		t.Fatalf("recording bus should still carry signal")
	}
}

func TestGraphNeutralPathIsNearUnity(t *testing.T) {
	g := newTestGraph(t, neutralParams())
	in := sine(8192, 100, testRate, 0.25)
	rec := make([]float32, len(in)*2)
	g.Process(0, in, 1, nil, rec)

	tail := rec[len(rec)/2:]
	want := 0.25 / math.Sqrt2
	if rms := stereoRMS(tail); math.Abs(rms-want) > 0.02 {
		t.Fatalf("neutral path rms=%g want about %g", rms, want)
	}
	for i := 0; i < len(rec); i += 2 {
		if rec[i] != rec[i+1] {
			t.Fatalf("dry-only output should be identical on both channels at frame %d", i/2)
		}
	}
}

func TestGraphReverbWetIsStereo(t *testing.T) {
	p := neutralParams()
	p.ReverbAmount = 1
	g := newTestGraph(t, p)

	in := make([]float32, 4096)
	in[0] = 1
	rec := make([]float32, len(in)*2)
	g.Process(0, in, 1, nil, rec)

	lat := g.Reverb().Latency()
	for i := 0; i < lat; i++ {
		if rec[i*2] != 0 || rec[i*2+1] != 0 {
			t.Fatalf("fully wet output before convolver latency at %d", i)
		}
	}
	var diff float64
	for i := lat; i < len(in); i++ {
		diff += math.Abs(float64(rec[i*2] - rec[i*2+1]))
	}
	if diff < 1e-3 {
		t.Fatalf("wet reverb should decorrelate channels")
	}
}

func TestGraphDelayProducesEcho(t *testing.T) {
	p := neutralParams()
	p.DelayEnabled = true
	p.DelayMix = 1
	p.DelayFeedback = 0
	p.DelayTime = 0.05
	g := newTestGraph(t, p)

	d := int(p.DelayTime * testRate)
	in := make([]float32, 2*d)
	in[0] = 1
	rec := make([]float32, len(in)*2)
	g.Process(0, in, 1, nil, rec)

	window := func(from, n int) float64 {
		var e float64
		for i := from; i < from+n; i++ {
			e += math.Abs(float64(rec[i*2]))
		}
		return e
	}
	if early := window(d/2, 100); early > 1e-4 {
		t.Fatalf("unexpected energy before echo: %g", early)
	}
	if echo := window(d-4, 100); echo < 0.1 {
		t.Fatalf("echo missing around %d frames: %g", d, echo)
	}
}

func TestGraphSitarAmountChangesTimbre(t *testing.T) {
	in := sine(4096, 1200, testRate, 0.5)

	p := neutralParams()
	dry := newTestGraph(t, p)
	p.SitarAmount = 1
	wet := newTestGraph(t, p)

	a := make([]float32, len(in)*2)
	b := make([]float32, len(in)*2)
	dry.Process(0, in, 1, nil, a)
	wet.Process(0, in, 1, nil, b)
	if d := maxAbsDiff(a, b); d < 1e-3 {
		t.Fatalf("sitar wet path has no audible effect, diff=%g", d)
	}
}

func TestGraphModeSwitchRetunesInOneStep(t *testing.T) {
	g := newTestGraph(t, NewDefaultParams())
	for _, m := range []SitarMode{ModeMajor, ModeMinor, ModeExotic, ModeSharp} {
		g.SetSitarMode(m)
		got := g.Tuning()
		want := SitarModeTable(m)
		if got.BandpassFreq != want.BandpassFreq || got.BandpassQ != want.BandpassQ ||
			got.SympFreq != want.SympFreq || got.SympQ != want.SympQ ||
			got.HighpassFreq != want.HighpassFreq {
			t.Fatalf("%s: tuning %+v want %+v", m, got, want)
		}
		if math.Abs(got.DriveAmount-want.DriveAmount) > 0.05 {
			t.Fatalf("%s: saturator amount %g want %g", m, got.DriveAmount, want.DriveAmount)
		}
		if g.Mode() != m {
			t.Fatalf("mode=%s want %s", g.Mode(), m)
		}
	}
}

func TestGraphApplySmoothsGain(t *testing.T) {
	g := newTestGraph(t, neutralParams())
	p := neutralParams()
	p.AmpGain = 3
	g.Apply(ParamAmpGain, p, 0, SmoothingTau)

	if got := g.Target(ParamAmpGain); got != 3 {
		t.Fatalf("target=%g want 3", got)
	}
	n := int(SmoothingTau * testRate)
	g.Process(0, make([]float32, n), 1, nil, nil)
	v := g.Value(ParamAmpGain)
	want := 1 + 2*(1-math.Exp(-1))
	if math.Abs(v-want) > 0.05 {
		t.Fatalf("after one time constant gain=%g want about %g", v, want)
	}
	g.Process(int64(n), make([]float32, 20*n), 1, nil, nil)
	if v := g.Value(ParamAmpGain); math.Abs(v-3) > 1e-3 {
		t.Fatalf("gain did not settle: %g", v)
	}
}

func TestGraphApplyAllWithoutTauIsInstant(t *testing.T) {
	g := newTestGraph(t, NewDefaultParams())
	p := NewDefaultParams()
	p.Master = 0.2
	p.AmpTone = 0
	p.SitarMode = ModeMinor
	g.ApplyAll(p, 0, 0)

	if got := g.Target(ParamMaster); math.Abs(got-0.6) > 1e-12 {
		t.Fatalf("master target=%g", got)
	}
	if got := g.Value(ParamMaster); math.Abs(got-0.6) > 1e-12 {
		t.Fatalf("master value=%g", got)
	}
	if got := g.Target(ParamAmpTone); math.Abs(got-ToneMinFreq) > 1e-9 {
		t.Fatalf("tone cutoff=%g", got)
	}
	if g.Mode() != ModeMinor {
		t.Fatalf("mode not applied")
	}
}

func TestParameterMappings(t *testing.T) {
	if got := ToneCutoff(0); math.Abs(got-200) > 1e-9 {
		t.Fatalf("ToneCutoff(0)=%g", got)
	}
	if got := ToneCutoff(1); math.Abs(got-16000) > 1e-6 {
		t.Fatalf("ToneCutoff(1)=%g", got)
	}
	if got := TonestackGainDB(0.5, BassRangeDB); got != 0 {
		t.Fatalf("centre tonestack gain=%g", got)
	}
	if got := TonestackGainDB(1, PresenceRangeDB); got != 14 {
		t.Fatalf("full presence=%g", got)
	}
	p := NewDefaultParams()
	p.DriveEnabled = false
	if DriveAmountFor(p) != 0 {
		t.Fatalf("disabled drive should be identity")
	}
}

func TestNewGraphRejectsBadRate(t *testing.T) {
	if _, err := NewGraph(0, 128, NewDefaultParams(), nil, nil); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
}

func TestGraphLowSampleRateKeepsSignal(t *testing.T) {
	for _, sr := range []int{16000, 22050} {
		for _, mode := range []SitarMode{ModeSharp, ModeExotic} {
			l, r, err := ReverbImpulse(0.1, sr)
			if err != nil {
				t.Fatalf("ReverbImpulse: %v", err)
			}
			p := NewDefaultParams()
			p.AmpTone = 1
			p.SitarMode = mode
			g, err := NewGraph(sr, DefaultBlockSize, p, l, r)
			if err != nil {
				t.Fatalf("NewGraph(%d): %v", sr, err)
			}
			in := sine(sr/2, 220, sr, 0.5)
			rec := make([]float32, len(in)*2)
			g.Process(0, in, 1, nil, rec)
			if !allFinite(rec) {
				t.Fatalf("%d Hz %s: non-finite output", sr, mode)
			}
			if rms := stereoRMS(rec); rms < 1e-3 {
				t.Fatalf("%d Hz %s: output silent (rms=%g)", sr, mode, rms)
			}
		}
	}
}
