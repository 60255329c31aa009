package sitar

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-sitar/dsp"
)

// Stage constants of the fixed topology.
const (
	BassFreq      = 120.0
	MidFreq       = 900.0
	MidQ          = 1.0
	TrebleFreq    = 3500.0
	BassRangeDB   = 12.0
	MidRangeDB    = 10.0
	TrebleRangeDB = 12.0

	ToneMinFreq = 200.0
	ToneMaxFreq = 16000.0

	DriveScale = 6.0

	JawariDelaySeconds = 0.0015
	JawariFeedback     = 0.35

	MaxDelaySeconds = 2.0

	MasterScale     = 3.0
	PresenceFreq    = 5500.0
	PresenceRangeDB = 28.0 // ±14 dB

	// SmoothingTau is the time constant of live parameter changes.
	SmoothingTau = 0.010

	DefaultBlockSize = 128
)

// TonestackGainDB maps a 0..1 tonestack control to shelf/peak gain.
func TonestackGainDB(control, rangeDB float64) float64 {
	return (control - 0.5) * rangeDB
}

// ToneCutoff maps the 0..1 tone control to the low-pass corner, sweeping
// 200 Hz .. 16 kHz exponentially.
func ToneCutoff(control float64) float64 {
	return ToneMinFreq * math.Pow(ToneMaxFreq/ToneMinFreq, control)
}

// DriveAmountFor returns the shaper amount of the amp stage.
func DriveAmountFor(p ParameterSet) float64 {
	if !p.DriveEnabled {
		return 0
	}
	return p.DriveAmount * DriveScale
}

// Graph is the fixed-topology processing graph:
//
//	input → mono → bass/mid/treble → gain → drive → tone
//	  → sitar (dry ∥ [bandpass → jawari saturator → 1.5 ms feedback delay → highpass] + sympathetic bandpass)
//	  → delay (dry ∥ feedback delay line) → master → presence
//	  → reverb (dry ∥ stereo convolution) → post bus → {monitor bus, recording bus}
//
// Stages are wired at construction; afterwards only their parameters change.
// Process must be called from a single goroutine; parameter setters may be
// called concurrently from another one.
type Graph struct {
	sampleRate int
	blockSize  int

	bass   *filterStage
	mid    *filterStage
	treble *filterStage

	ampGain *gainStage
	drive   *dsp.Shaper
	tone    *filterStage

	sitarDry       *gainStage
	sitarWet       *gainStage
	jawariBand     *filterStage
	jawariSat      *dsp.Shaper
	jawariDelay    *delayStage
	jawariFeedback *gainStage
	jawariHigh     *filterStage
	sympathetic    *filterStage

	preDelay      *gainStage
	delayDry      *gainStage
	delayWet      *gainStage
	delayFeedback *gainStage
	echo          *delayStage

	master    *gainStage
	presence  *filterStage
	reverbDry *gainStage
	reverbWet *gainStage
	reverb    *Convolver

	monitorBus *gainStage
	recordBus  *gainStage

	filters []*filterStage
	mode    atomic.Int32

	// Per-block scratch, sized to blockSize.
	mono []float32
	dryG []float64
	wetG []float64
	revL []float32
	revR []float32
}

// NewGraph wires the full topology for sampleRate with initial values from p
// and the given stereo reverb impulse.
func NewGraph(sampleRate, blockSize int, p ParameterSet, irLeft, irRight []float32) (*Graph, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	p = p.Clamped()
	tuning := SitarModeTable(p.SitarMode)
	sr := sampleRate

	g := &Graph{
		sampleRate: sr,
		blockSize:  blockSize,

		bass:   newFilterStage(lowShelf, sr, BassFreq, shelfQ, TonestackGainDB(p.Bass, BassRangeDB)),
		mid:    newFilterStage(peaking, sr, MidFreq, MidQ, TonestackGainDB(p.Mid, MidRangeDB)),
		treble: newFilterStage(highShelf, sr, TrebleFreq, shelfQ, TonestackGainDB(p.Treble, TrebleRangeDB)),

		ampGain: newGainStage(sr, p.AmpGain),
		drive:   dsp.NewShaper(DriveCurve(DriveAmountFor(p))),
		tone:    newFilterStage(lowpass, sr, ToneCutoff(p.AmpTone), shelfQ, 0),

		sitarDry:       newGainStage(sr, 1-p.SitarAmount),
		sitarWet:       newGainStage(sr, p.SitarAmount),
		jawariBand:     newFilterStage(bandpass, sr, tuning.BandpassFreq, tuning.BandpassQ, 0),
		jawariSat:      dsp.NewShaper(DriveCurve(tuning.DriveAmount)),
		jawariFeedback: newGainStage(sr, JawariFeedback),
		jawariHigh:     newFilterStage(highpass, sr, tuning.HighpassFreq, shelfQ, 0),
		sympathetic:    newFilterStage(bandpass, sr, tuning.SympFreq, tuning.SympQ, 0),

		preDelay:      newGainStage(sr, 1),
		delayDry:      newGainStage(sr, delayDryGain(p)),
		delayWet:      newGainStage(sr, delayWetGain(p)),
		delayFeedback: newGainStage(sr, p.DelayFeedback),

		master:    newGainStage(sr, p.Master*MasterScale),
		presence:  newFilterStage(highShelf, sr, PresenceFreq, shelfQ, TonestackGainDB(p.Presence, PresenceRangeDB)),
		reverbDry: newGainStage(sr, 1-p.ReverbAmount),
		reverbWet: newGainStage(sr, p.ReverbAmount),
		reverb:    NewConvolver(sr),

		monitorBus: newGainStage(sr, boolToFloat(p.MonitorEnabled)),
		recordBus:  newGainStage(sr, 1),

		mono: make([]float32, blockSize),
		dryG: make([]float64, blockSize),
		wetG: make([]float64, blockSize),
		revL: make([]float32, blockSize),
		revR: make([]float32, blockSize),
	}

	var err error
	if g.jawariDelay, err = newDelayStage(sr, 0.01, JawariDelaySeconds); err != nil {
		return nil, fmt.Errorf("jawari delay: %w", err)
	}
	if g.echo, err = newDelayStage(sr, MaxDelaySeconds, p.DelayTime); err != nil {
		return nil, fmt.Errorf("echo delay: %w", err)
	}
	if len(irLeft) > 0 || len(irRight) > 0 {
		if err := g.reverb.SetIR(irLeft, irRight); err != nil {
			return nil, fmt.Errorf("reverb impulse: %w", err)
		}
	}

	g.filters = []*filterStage{
		g.bass, g.mid, g.treble, g.tone,
		g.jawariBand, g.jawariHigh, g.sympathetic, g.presence,
	}
	g.mode.Store(int32(p.SitarMode))
	return g, nil
}

func delayDryGain(p ParameterSet) float64 {
	if !p.DelayEnabled {
		return 1
	}
	return 1 - p.DelayMix
}

func delayWetGain(p ParameterSet) float64 {
	if !p.DelayEnabled {
		return 0
	}
	return p.DelayMix
}

// SampleRate returns the graph rate in Hz.
func (g *Graph) SampleRate() int { return g.sampleRate }

// BlockSize returns the largest block processed in one pass.
func (g *Graph) BlockSize() int { return g.blockSize }

// Reverb exposes the convolution stage (custom impulse loading).
func (g *Graph) Reverb() *Convolver { return g.reverb }

// Mode returns the active sitar mode.
func (g *Graph) Mode() SitarMode { return SitarMode(g.mode.Load()) }

// Process runs interleaved input with inChannels channels through the graph
// starting at absolute frame index frame, writing interleaved stereo into
// monitor and record (either may be nil). It returns the number of frames
// processed.
func (g *Graph) Process(frame int64, in []float32, inChannels int, monitor, record []float32) int {
	if inChannels < 1 {
		inChannels = 1
	}
	total := len(in) / inChannels
	for done := 0; done < total; {
		n := min(g.blockSize, total-done)
		off := done * inChannels
		var mon, rec []float32
		if monitor != nil {
			mon = monitor[done*2 : (done+n)*2]
		}
		if record != nil {
			rec = record[done*2 : (done+n)*2]
		}
		g.processBlock(frame+int64(done), in[off:off+n*inChannels], inChannels, n, mon, rec)
		done += n
	}
	return total
}

func (g *Graph) processBlock(frame int64, in []float32, ch, n int, monitor, record []float32) {
	for _, f := range g.filters {
		f.prepare(frame, n)
	}

	for i := 0; i < n; i++ {
		t := frame + int64(i)

		// Input conditioning: downmix to one channel.
		var x float64
		for c := 0; c < ch; c++ {
			x += float64(in[i*ch+c])
		}
		x /= float64(ch)

		// Tonestack.
		x = g.bass.process(x)
		x = g.mid.process(x)
		x = g.treble.process(x)

		// Amp.
		x = g.ampGain.process(x, t)
		x = g.drive.ProcessSample(x)
		x = g.tone.process(x)

		// Sitar network.
		dry := g.sitarDry.process(x, t)
		buzz := g.jawariSat.ProcessSample(g.jawariBand.process(x))
		tap := g.jawariDelay.read(t)
		g.jawariDelay.write(buzz + g.jawariFeedback.process(tap, t))
		wet := g.jawariHigh.process(tap) + g.sympathetic.process(x)
		x = dry + g.sitarWet.process(wet, t)

		// Delay network.
		pre := g.preDelay.process(x, t)
		echo := g.echo.read(t)
		g.echo.write(pre + g.delayFeedback.process(echo, t))
		x = g.delayDry.process(pre, t) + g.delayWet.process(echo, t)

		// Master and presence.
		x = g.master.process(x, t)
		x = g.presence.process(x)

		g.mono[i] = float32(x)
		g.dryG[i] = g.reverbDry.gain.Next(t)
		g.wetG[i] = g.reverbWet.gain.Next(t)
	}

	g.reverb.ProcessTo(g.revL[:n], g.revR[:n], g.mono[:n])

	for i := 0; i < n; i++ {
		t := frame + int64(i)
		dry := g.dryG[i] * float64(g.mono[i])
		l := dry + g.wetG[i]*float64(g.revL[i])
		r := dry + g.wetG[i]*float64(g.revR[i])

		mon := g.monitorBus.gain.Next(t)
		rec := g.recordBus.gain.Next(t)
		if monitor != nil {
			monitor[i*2] = float32(l * mon)
			monitor[i*2+1] = float32(r * mon)
		}
		if record != nil {
			record[i*2] = float32(l * rec)
			record[i*2+1] = float32(r * rec)
		}
	}
}

// Apply pushes the value of control id from p into its stage. With tau > 0 the
// change approaches the target exponentially starting at time at (seconds on
// the render clock); tau <= 0 applies it at the next sample. Mode switches and
// drive curve swaps are always immediate.
func (g *Graph) Apply(id ParamID, p ParameterSet, at, tau float64) {
	switch id {
	case ParamBass:
		g.bass.setGainDB(TonestackGainDB(p.Bass, BassRangeDB), at, tau)
	case ParamMid:
		g.mid.setGainDB(TonestackGainDB(p.Mid, MidRangeDB), at, tau)
	case ParamTreble:
		g.treble.setGainDB(TonestackGainDB(p.Treble, TrebleRangeDB), at, tau)
	case ParamAmpGain:
		g.ampGain.setGain(p.AmpGain, at, tau)
	case ParamAmpTone:
		g.tone.setFrequency(ToneCutoff(p.AmpTone), at, tau)
	case ParamMaster:
		g.master.setGain(p.Master*MasterScale, at, tau)
	case ParamPresence:
		g.presence.setGainDB(TonestackGainDB(p.Presence, PresenceRangeDB), at, tau)
	case ParamDriveAmount, ParamDriveEnabled:
		g.SetDriveCurve(DriveCurve(DriveAmountFor(p)))
	case ParamDelayTime:
		g.echo.setTime(p.DelayTime, at, tau)
	case ParamDelayFeedback:
		g.delayFeedback.setGain(p.DelayFeedback, at, tau)
	case ParamDelayMix, ParamDelayEnabled:
		g.delayDry.setGain(delayDryGain(p), at, tau)
		g.delayWet.setGain(delayWetGain(p), at, tau)
	case ParamReverbAmount:
		g.reverbDry.setGain(1-p.ReverbAmount, at, tau)
		g.reverbWet.setGain(p.ReverbAmount, at, tau)
	case ParamSitarAmount:
		g.sitarDry.setGain(1-p.SitarAmount, at, tau)
		g.sitarWet.setGain(p.SitarAmount, at, tau)
	case ParamSitarMode:
		g.SetSitarMode(p.SitarMode)
	case ParamMonitorEnabled:
		g.monitorBus.setGain(boolToFloat(p.MonitorEnabled), at, tau)
	}
}

// ApplyAll pushes every control of p.
func (g *Graph) ApplyAll(p ParameterSet, at, tau float64) {
	p = p.Clamped()
	for _, id := range NumericParams {
		g.Apply(id, p, at, tau)
	}
	g.Apply(ParamDriveEnabled, p, at, tau)
	g.Apply(ParamDelayEnabled, p, at, tau)
	g.Apply(ParamMonitorEnabled, p, at, tau)
	g.Apply(ParamSitarMode, p, at, tau)
}

// SetSitarMode retunes the jawari bandpass, saturator, highpass and the
// sympathetic bandpass in one step, without smoothing.
func (g *Graph) SetSitarMode(m SitarMode) {
	t := SitarModeTable(m)
	g.jawariBand.setFrequency(t.BandpassFreq, 0, 0)
	g.jawariBand.setQ(t.BandpassQ, 0, 0)
	g.jawariSat.SetCurve(DriveCurve(t.DriveAmount))
	g.jawariHigh.setFrequency(t.HighpassFreq, 0, 0)
	g.sympathetic.setFrequency(t.SympFreq, 0, 0)
	g.sympathetic.setQ(t.SympQ, 0, 0)
	if !m.Valid() {
		m = ModeSharp
	}
	g.mode.Store(int32(m))
}

// SetDriveCurve swaps the amp shaper curve.
func (g *Graph) SetDriveCurve(curve []float64) {
	g.drive.SetCurve(curve)
}

// Tuning reports the sitar network's current target tuning.
func (g *Graph) Tuning() ModeTuning {
	return ModeTuning{
		BandpassFreq: g.jawariBand.freq.Target(),
		BandpassQ:    g.jawariBand.q.Target(),
		SympFreq:     g.sympathetic.freq.Target(),
		SympQ:        g.sympathetic.q.Target(),
		HighpassFreq: g.jawariHigh.freq.Target(),
		DriveAmount:  curveAmount(g.jawariSat.Curve()),
	}
}

// curveAmount recovers k from a DriveCurve by inverting it at x = 0.5.
func curveAmount(curve []float64) float64 {
	if len(curve) < 2 {
		return 0
	}
	// y(x) = (1+k)x / (1+kx)  ⇒  k = (y - x) / (x - xy)
	i := (len(curve) - 1) * 3 / 4
	x := float64(i)*2/float64(len(curve)-1) - 1
	y := curve[i]
	den := x - x*y
	if den == 0 {
		return 0
	}
	return (y - x) / den
}

// Target returns the target value of the stage parameter driven by id, as
// the stage sees it (after mapping). It exists for inspection and tests.
func (g *Graph) Target(id ParamID) float64 {
	switch id {
	case ParamBass:
		return g.bass.gainDB.Target()
	case ParamMid:
		return g.mid.gainDB.Target()
	case ParamTreble:
		return g.treble.gainDB.Target()
	case ParamAmpGain:
		return g.ampGain.gain.Target()
	case ParamAmpTone:
		return g.tone.freq.Target()
	case ParamMaster:
		return g.master.gain.Target()
	case ParamPresence:
		return g.presence.gainDB.Target()
	case ParamDelayTime:
		return g.echo.time.Target()
	case ParamDelayFeedback:
		return g.delayFeedback.gain.Target()
	case ParamDelayMix, ParamDelayEnabled:
		return g.delayWet.gain.Target()
	case ParamReverbAmount:
		return g.reverbWet.gain.Target()
	case ParamSitarAmount:
		return g.sitarWet.gain.Target()
	case ParamMonitorEnabled:
		return g.monitorBus.gain.Target()
	case ParamDriveAmount, ParamDriveEnabled:
		return curveAmount(g.drive.Curve())
	case ParamSitarMode:
		return float64(g.Mode())
	}
	return 0
}

// Value returns the currently rendered value of the stage parameter driven
// by id (see Target).
func (g *Graph) Value(id ParamID) float64 {
	switch id {
	case ParamAmpGain:
		return g.ampGain.gain.Value()
	case ParamMaster:
		return g.master.gain.Value()
	case ParamSitarAmount:
		return g.sitarWet.gain.Value()
	case ParamReverbAmount:
		return g.reverbWet.gain.Value()
	case ParamMonitorEnabled:
		return g.monitorBus.gain.Value()
	case ParamAmpTone:
		return g.tone.freq.Value()
	case ParamDelayTime:
		return g.echo.time.Value()
	}
	return g.Target(id)
}
