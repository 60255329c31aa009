package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwbudde/algo-sitar/device"
	"github.com/cwbudde/algo-sitar/internal/config"
	"github.com/cwbudde/algo-sitar/internal/server"
	"github.com/cwbudde/algo-sitar/internal/wavio"
	"github.com/cwbudde/algo-sitar/session"
	"github.com/cwbudde/algo-sitar/sitar"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("sitar-live failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	sc := session.Config{
		Engine: sitar.EngineConfig{
			SampleRate:    cfg.SampleRate,
			BlockSize:     cfg.BlockSize,
			ReverbSeconds: cfg.ReverbSeconds,
		},
		Provider: &device.FileProvider{
			Path:       cfg.InputPath,
			SampleRate: cfg.SampleRate,
			Loop:       cfg.InputLoop,
		},
		Preview:      device.PreviewSink{},
		OutputDir:    cfg.OutputDir,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	}
	if cfg.Monitor {
		sc.Monitor = openMonitor
	}
	if cfg.ReverbIRPath != "" {
		l, r, err := wavio.ReadStereo(cfg.ReverbIRPath, cfg.SampleRate)
		if err != nil {
			return fmt.Errorf("reverb impulse: %w", err)
		}
		sc.Engine.ReverbIRLeft, sc.Engine.ReverbIRRight = l, r
	}

	sess, err := session.New(sc)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Error("session close", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.InputPath != "" {
		// failures are on the status channel; the user retries via POST /input
		_ = sess.AcquireInput(ctx)
	}

	srv := server.New(server.Config{Port: cfg.Port}, sess, logger)
	return srv.Run(ctx)
}

func openMonitor(sampleRate int) (sitar.Output, error) {
	m, err := device.OpenMonitor(sampleRate)
	if err != nil {
		return nil, err
	}
	return m, nil
}
