// Package sensor provides the motion sensor port and the monitor loop
// that debounces the raw binary signal into motion events.
package sensor

import "errors"

// Port is the abstract boundary over a binary motion signal.
type Port interface {
	// Read returns the current motion level. It fails with
	// ErrSensorUnavailable (wrapped) when the hardware cannot be read.
	Read() (bool, error)

	// Close releases the underlying hardware line.
	Close() error
}

// ErrSensorUnavailable indicates the sensor hardware cannot be read.
// Reads are retried with backoff; the error is never fatal to the process.
var ErrSensorUnavailable = errors.New("motion sensor unavailable")
