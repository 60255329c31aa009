package sitar

import (
	"errors"
	"fmt"
)

// Sentinel causes for input acquisition failures.
var (
	ErrNoDevice         = errors.New("no input device")
	ErrPermissionDenied = errors.New("input access denied")
)

// DeviceError reports a failed live-input acquisition. The user may retry.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("input device %q: %v", e.Device, e.Err)
	}
	return fmt.Sprintf("input device: %v", e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// DecodeError reports an unusable audio file.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// GraphNotReadyError reports an action that needs the live graph before the
// input was set up.
type GraphNotReadyError struct {
	Op string
}

func (e *GraphNotReadyError) Error() string {
	return fmt.Sprintf("%s: processing graph not ready (no live input)", e.Op)
}

// EncodingError reports a failed recording finalization.
type EncodingError struct {
	Path string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Path, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// IsRecoverable reports whether the user can fix err by retrying or picking
// another file.
func IsRecoverable(err error) bool {
	var de *DeviceError
	var ce *DecodeError
	return errors.As(err, &de) || errors.As(err, &ce)
}
