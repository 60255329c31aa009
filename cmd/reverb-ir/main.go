package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-sitar/analysis"
	"github.com/cwbudde/algo-sitar/internal/wavio"
	"github.com/cwbudde/algo-sitar/irsynth"
)

func main() {
	cfg := irsynth.DefaultConfig()

	output := flag.String("output", "reverb-ir.wav", "Output WAV path")
	flag.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Output sample rate")
	flag.Float64Var(&cfg.DurationS, "duration", cfg.DurationS, "IR length in seconds")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	flag.Float64Var(&cfg.DecayPower, "decay-power", cfg.DecayPower, "Envelope exponent of (1-t)^p")
	flag.Parse()

	left, right, err := irsynth.GenerateStereo(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reverb-ir error: %v\n", err)
		os.Exit(1)
	}

	if err := wavio.WriteStereoLR(*output, left, right, cfg.SampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "wav write error: %v\n", err)
		os.Exit(1)
	}

	both := append(append([]float32(nil), left...), right...)
	fmt.Printf("Wrote %s\n", *output)
	fmt.Printf("SampleRate: %d Hz, Duration: %.3f s, Samples: %d\n", cfg.SampleRate, cfg.DurationS, len(left))
	fmt.Printf("Peak: %.6f, RMS: %.6f\n", analysis.Peak(both), analysis.RMS(both))
}
