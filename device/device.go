// Package device is the boundary to audio hardware: live input acquisition
// and the monitor/preview outputs.
package device

import (
	"context"
	"errors"

	"github.com/cwbudde/algo-sitar/sitar"
)

// Constraints are the processing flags requested for a live input. An
// instrument needs the raw signal, so all of them default to false.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// RawConstraints returns constraints with every processing stage disabled.
func RawConstraints() Constraints { return Constraints{} }

// ErrProcessingUnsupported is the cause when a provider cannot honour a
// requested input processing flag.
var ErrProcessingUnsupported = errors.New("input processing not supported")

// Provider acquires a live input.
type Provider interface {
	// Acquire opens the input. Failures are *sitar.DeviceError.
	Acquire(ctx context.Context, c Constraints) (sitar.Input, error)
}

func checkRaw(name string, c Constraints) error {
	if c.EchoCancellation || c.NoiseSuppression || c.AutoGainControl {
		return &sitar.DeviceError{Device: name, Err: ErrProcessingUnsupported}
	}
	return nil
}
