package irsynth

import (
	"fmt"
	"math"
	"math/rand"
)

// Config controls synthetic reverb impulse generation.
type Config struct {
	SampleRate int
	DurationS  float64
	Seed       int64

	// DecayPower shapes the envelope (1-t)^DecayPower over the normalized
	// impulse time t in [0, 1).
	DecayPower float64
}

func DefaultConfig() Config {
	return Config{
		SampleRate: 48000,
		DurationS:  2.5,
		Seed:       1,
		DecayPower: 2.5,
	}
}

func (c *Config) Validate() error {
	if c.SampleRate < 8000 {
		return fmt.Errorf("sample rate too low: %d", c.SampleRate)
	}
	if c.DurationS <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	if c.DecayPower <= 0 {
		return fmt.Errorf("decay power must be > 0")
	}
	return nil
}

// GenerateStereo synthesizes a stereo decaying-noise impulse response:
// each channel is independent uniform noise in [-1, 1] shaped by (1-t)^DecayPower.
func GenerateStereo(cfg Config) ([]float32, []float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	n := int(math.Round(cfg.DurationS * float64(cfg.SampleRate)))
	if n < 1 {
		n = 1
	}
	left := make([]float32, n)
	right := make([]float32, n)

	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n)
		env := math.Pow(1-t, cfg.DecayPower)
		left[i] = float32((rng.Float64()*2 - 1) * env)
		right[i] = float32((rng.Float64()*2 - 1) * env)
	}
	return left, right, nil
}

// Envelope returns the decay envelope value at normalized time t.
func Envelope(t, power float64) float64 {
	if t <= 0 {
		return 1
	}
	if t >= 1 {
		return 0
	}
	return math.Pow(1-t, power)
}
