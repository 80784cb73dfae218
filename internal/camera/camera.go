// Package camera defines the camera port, the exclusive-access gate shared
// by the preview path and the recording coordinator, and the device backends
// (GStreamer V4L2 capture and a synthetic test-pattern generator).
//
// The physical device is an exclusive resource. Nobody touches a Device
// directly: all frame reads go through a Gate handle, and the gate admits
// one holder at a time. The preview streamer takes short per-frame
// acquisitions; the coordinator holds the gate for the whole recording
// window and feeds the preview tap from the frames it records.
package camera

import (
	"context"
	"errors"
	"time"
)

// Frame is a single JPEG-encoded video frame with metadata.
type Frame struct {
	// Seq is the monotonic sequence number assigned by the device.
	Seq uint64
	// Timestamp is when the frame was captured.
	Timestamp time.Time
	// Width in pixels.
	Width int
	// Height in pixels.
	Height int
	// Data is the JPEG-encoded frame.
	Data []byte
	// TraceID correlates the frame across log lines and the preview tap.
	TraceID string
}

// Device is the raw camera port. Implementations must deliver frames only
// while started and must make Stop idempotent.
type Device interface {
	// Start begins capture. It returns once frames are flowing or with an
	// error if the device cannot be opened.
	Start(ctx context.Context) error

	// ReadFrame blocks until the next frame, the context is done, or the
	// device fails. Frame data is owned by the caller.
	ReadFrame(ctx context.Context) (Frame, error)

	// Stop halts capture and releases the underlying device.
	Stop() error
}

var (
	// ErrAcquisitionTimeout is returned when the gate could not be acquired
	// within the bounded wait.
	ErrAcquisitionTimeout = errors.New("camera acquisition timed out")
	// ErrDeviceStopped is returned when reading from a stopped device.
	ErrDeviceStopped = errors.New("camera device is stopped")
	// ErrHandleReleased is returned when using a handle after Release.
	ErrHandleReleased = errors.New("camera handle already released")
)
