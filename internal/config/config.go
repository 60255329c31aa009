package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Audio
	SampleRate    int
	BlockSize     int
	ReverbSeconds float64
	ReverbIRPath  string // optional WAV impulse replacing the generated one

	// Live input: a WAV file played as the instrument, paced in real time
	InputPath string
	InputLoop bool
	Monitor   bool // open the default output device for the monitor bus

	// Takes and exports
	OutputDir    string
	PollInterval time.Duration

	// Server
	Port int

	LogLevel slog.Level
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		SampleRate:    envInt("SITAR_SAMPLE_RATE", 48000),
		BlockSize:     envInt("SITAR_BLOCK_SIZE", 128),
		ReverbSeconds: envFloat("SITAR_REVERB_SECONDS", 2.5),
		ReverbIRPath:  envStr("SITAR_REVERB_IR", ""),

		InputPath: envStr("SITAR_INPUT", ""),
		InputLoop: envBool("SITAR_INPUT_LOOP", true),
		Monitor:   envBool("SITAR_MONITOR", true),

		OutputDir:    envStr("SITAR_OUTPUT_DIR", "."),
		PollInterval: time.Duration(envInt("SITAR_POLL_MS", 250)) * time.Millisecond,

		Port: envInt("SITAR_PORT", 8080),

		LogLevel: envLevel("SITAR_LOG_LEVEL", slog.LevelInfo),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return l
}
