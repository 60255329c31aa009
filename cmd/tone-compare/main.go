package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-sitar/analysis"
	"github.com/cwbudde/algo-sitar/internal/wavio"
	"github.com/cwbudde/algo-sitar/offline"
	"github.com/cwbudde/algo-sitar/preset"
	"github.com/cwbudde/algo-sitar/sitar"
)

func main() {
	refPath := flag.String("reference", "neon-sitar-take.wav", "Reference WAV (e.g. a recorded take)")
	candPath := flag.String("candidate", "", "Candidate WAV; rendered from -input when empty")
	inputPath := flag.String("input", "", "Dry input WAV to render offline as candidate")
	presetPath := flag.String("preset", "", "Preset JSON for the offline candidate")
	sampleRate := flag.Int("sample-rate", 48000, "Analysis sample rate")
	align := flag.Bool("align", true, "Align signals on their peaks before comparing")
	flag.Parse()

	sr := *sampleRate

	ref, err := loadMono(*refPath, sr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ref: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Reference: %d frames @ %d Hz (%.2fs)\n", len(ref), sr, float64(len(ref))/float64(sr))

	var cand []float64
	switch {
	case *candPath != "":
		cand, err = loadMono(*candPath, sr)
	case *inputPath != "":
		cand, err = renderCandidate(*inputPath, *presetPath, sr)
	default:
		err = fmt.Errorf("either -candidate or -input is required")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "candidate: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Candidate: %d frames @ %d Hz (%.2fs)\n\n", len(cand), sr, float64(len(cand))/float64(sr))

	refPeak, candPeak := peak(ref), peak(cand)
	fmt.Printf("Peak levels: ref=%.4f (%.1f dB)  cand=%.4f (%.1f dB)  ratio=%.1fdB\n",
		refPeak, analysis.LinToDB(refPeak), candPeak, analysis.LinToDB(candPeak),
		analysis.LinToDB(candPeak)-analysis.LinToDB(refPeak))

	if *align {
		var lag int
		ref, cand, lag = analysis.AlignPeaks(ref, cand)
		fmt.Printf("Aligned: lag=%d (%.1fms)\n", lag, float64(lag)/float64(sr)*1000)
	}
	fmt.Println()

	reports, err := analysis.CompareSpectra(ref, cand, sr, analysis.NoteSegments, analysis.GuitarBands)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compare: %v\n", err)
		os.Exit(1)
	}
	for _, rep := range reports {
		fmt.Printf("--- %s (%d STFT frames) ---\n", rep.Segment.Name, rep.Frames)
		for _, b := range rep.Bands {
			marker := ""
			if b.RMSEDB > 15 {
				marker = " <<<"
			}
			if b.RMSEDB > 25 {
				marker = " <<< !!!"
			}
			fmt.Printf("  %-22s RMSE=%5.1fdB  ref=%6.1fdB  cand=%6.1fdB  diff=%+5.1fdB%s\n",
				b.Band.Name, b.RMSEDB, b.RefDB, b.CandDB, b.Diff(), marker)
		}
		fmt.Println()
	}
}

func loadMono(path string, rate int) ([]float64, error) {
	a, err := wavio.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if a, err = wavio.Resample(a, rate); err != nil {
		return nil, err
	}
	return toFloat64(wavio.Mono(a)), nil
}

func renderCandidate(inputPath, presetPath string, rate int) ([]float64, error) {
	params := sitar.NewDefaultParams()
	if presetPath != "" {
		p, err := preset.LoadJSON(presetPath)
		if err != nil {
			return nil, err
		}
		params = p
	}
	in, err := wavio.ReadFile(inputPath)
	if err != nil {
		return nil, err
	}
	if in, err = wavio.Resample(in, rate); err != nil {
		return nil, err
	}
	res, err := offline.Render(context.Background(), offline.Job{
		Input:      in.Data,
		Channels:   in.Channels,
		SampleRate: in.SampleRate,
		Params:     params,
	})
	if err != nil {
		return nil, err
	}
	return toFloat64(analysis.StereoToMono(res.Data)), nil
}

func toFloat64(x []float32) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}

func peak(x []float64) float64 {
	p := 0.0
	for _, v := range x {
		if v < 0 {
			v = -v
		}
		p = max(p, v)
	}
	return p
}
