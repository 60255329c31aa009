package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/cwbudde/algo-sitar/analysis"
	"github.com/cwbudde/algo-sitar/internal/wavio"
	"github.com/cwbudde/algo-sitar/offline"
	"github.com/cwbudde/algo-sitar/preset"
	"github.com/cwbudde/algo-sitar/sitar"
)

func main() {
	// Command-line flags
	input := flag.String("input", "", "Input WAV file (dry instrument)")
	output := flag.String("output", offline.ExportFileName, "Output WAV file path")
	presetPath := flag.String("preset", "", "Preset JSON file path (defaults when empty)")
	mode := flag.String("mode", "", "Sitar mode override: sharp, major, minor or exotic")
	irPath := flag.String("ir", "", "Reverb IR WAV override (optional)")
	sampleRate := flag.Int("sample-rate", 0, "Render sample rate in Hz (input rate when 0)")
	reverbSeconds := flag.Float64("reverb-seconds", sitar.DefaultReverbSeconds, "Generated reverb impulse length")
	blockSize := flag.Int("block-size", sitar.DefaultBlockSize, "Processing block size in frames")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: -input is required")
		flag.Usage()
		os.Exit(2)
	}

	params := sitar.NewDefaultParams()
	if *presetPath != "" {
		p, err := preset.LoadJSON(*presetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading preset %q: %v\n", *presetPath, err)
			os.Exit(1)
		}
		params = p
	}
	if *mode != "" {
		m, ok := sitar.ParseSitarMode(strings.ToLower(*mode))
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown sitar mode %q\n", *mode)
			os.Exit(2)
		}
		params.SitarMode = m
	}

	in, err := wavio.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
	if *sampleRate > 0 {
		if in, err = wavio.Resample(in, *sampleRate); err != nil {
			fmt.Fprintf(os.Stderr, "Error resampling input: %v\n", err)
			os.Exit(1)
		}
	}

	irL, irR, err := loadImpulse(*irPath, *reverbSeconds, in.SampleRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing reverb: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Rendering %s (%.2f s, %d ch) at %d Hz, mode %s...\n",
		*input, in.Duration(), in.Channels, in.SampleRate, params.SitarMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := offline.Render(ctx, offline.Job{
		Input:        in.Data,
		Channels:     in.Channels,
		SampleRate:   in.SampleRate,
		Params:       params,
		ImpulseLeft:  irL,
		ImpulseRight: irR,
		BlockSize:    *blockSize,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering: %v\n", err)
		os.Exit(1)
	}

	if err := wavio.WriteStereo(*output, res.Data, res.SampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing WAV file: %v\n", err)
		os.Exit(1)
	}

	peak := analysis.Peak(res.Data)
	fmt.Printf("Successfully wrote %s (%d frames, %.2f s, peak %.1f dBFS)\n",
		*output, res.Frames(), res.Duration(), analysis.LinToDB(peak))
}

// loadImpulse returns the IR file resampled to rate, or the generated
// impulse when path is empty.
func loadImpulse(path string, seconds float64, rate int) ([]float32, []float32, error) {
	if path == "" {
		return sitar.ReverbImpulse(seconds, rate)
	}
	return wavio.ReadStereo(path, rate)
}
