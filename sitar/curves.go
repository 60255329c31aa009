package sitar

import (
	"sync"
	"time"

	"github.com/cwbudde/algo-sitar/irsynth"
)

// DriveCurveLength is the number of points in every shaper curve.
const DriveCurveLength = 1024

// DriveCurve builds an odd-symmetric soft-saturation transfer curve
// y = (1+k)x / (1+k|x|) over x in [-1, 1] with k = amount.
// k = 0 is the identity. Negative amounts are treated as 0.
func DriveCurve(amount float64) []float64 {
	k := amount
	if k < 0 {
		k = 0
	}
	curve := make([]float64, DriveCurveLength)
	for i := range curve {
		x := float64(i)*2/float64(DriveCurveLength-1) - 1
		ax := x
		if ax < 0 {
			ax = -ax
		}
		curve[i] = (1 + k) * x / (1 + k*ax)
	}
	return curve
}

// ModeTuning is the fixed retuning tuple of one sitar mode.
type ModeTuning struct {
	BandpassFreq float64
	BandpassQ    float64
	SympFreq     float64
	SympQ        float64
	HighpassFreq float64
	DriveAmount  float64
}

var modeTable = map[SitarMode]ModeTuning{
	ModeSharp:  {BandpassFreq: 5000, BandpassQ: 10, SympFreq: 7800, SympQ: 18, HighpassFreq: 2600, DriveAmount: 5.0},
	ModeMajor:  {BandpassFreq: 3800, BandpassQ: 8, SympFreq: 7000, SympQ: 16, HighpassFreq: 2200, DriveAmount: 4.0},
	ModeMinor:  {BandpassFreq: 3200, BandpassQ: 9, SympFreq: 6400, SympQ: 15, HighpassFreq: 2000, DriveAmount: 4.5},
	ModeExotic: {BandpassFreq: 4200, BandpassQ: 14, SympFreq: 9500, SympQ: 20, HighpassFreq: 3000, DriveAmount: 7.0},
}

// SitarModeTable returns the tuning of mode. Unknown modes get the sharp tuning.
func SitarModeTable(mode SitarMode) ModeTuning {
	if t, ok := modeTable[mode]; ok {
		return t
	}
	return modeTable[ModeSharp]
}

// DefaultReverbSeconds is the length of the generated reverb impulse.
const DefaultReverbSeconds = 2.5

type impulseKey struct {
	durationMS int
	sampleRate int
}

type impulseEntry struct {
	once        sync.Once
	left, right []float32
	err         error
}

var impulseCache sync.Map

// ReverbImpulse returns the stereo decaying-noise impulse for the given
// duration and rate. It is generated once per process from a random seed and
// reused afterwards; callers must not modify the returned slices.
func ReverbImpulse(durationS float64, sampleRate int) ([]float32, []float32, error) {
	key := impulseKey{durationMS: int(durationS * 1000), sampleRate: sampleRate}
	v, _ := impulseCache.LoadOrStore(key, &impulseEntry{})
	e := v.(*impulseEntry)
	e.once.Do(func() {
		cfg := irsynth.DefaultConfig()
		cfg.SampleRate = sampleRate
		cfg.DurationS = durationS
		cfg.Seed = time.Now().UnixNano()
		e.left, e.right, e.err = irsynth.GenerateStereo(cfg)
	})
	return e.left, e.right, e.err
}
