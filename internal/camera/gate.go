package camera

import (
	"context"
	"sync/atomic"
	"time"
)

// Gate serializes exclusive access to a single camera device. Both the
// preview path and the recording coordinator must acquire the gate before
// touching the device, which guarantees no two conflicting handles exist
// at the same time.
type Gate struct {
	device Device
	sem    chan struct{}
}

// NewGate wraps a device in an arbitration gate.
func NewGate(device Device) *Gate {
	g := &Gate{
		device: device,
		sem:    make(chan struct{}, 1),
	}
	g.sem <- struct{}{}

	return g
}

// Acquire obtains the exclusive handle, waiting at most timeout.
// A timeout or cancelled context yields ErrAcquisitionTimeout so callers
// treat both as an acquisition failure.
func (g *Gate) Acquire(ctx context.Context, timeout time.Duration) (*Handle, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-g.sem:
		return &Handle{gate: g}, nil
	case <-timer.C:
		return nil, ErrAcquisitionTimeout
	case <-ctx.Done():
		return nil, ErrAcquisitionTimeout
	}
}

// TryAcquire obtains the handle only if the gate is free right now.
func (g *Gate) TryAcquire() (*Handle, bool) {
	select {
	case <-g.sem:
		return &Handle{gate: g}, true
	default:
		return nil, false
	}
}

// Handle is the exclusive right to read frames from the gated device.
// Handles are not safe for concurrent use and must be released exactly once.
type Handle struct {
	gate     *Gate
	released atomic.Bool
}

// ReadFrame reads the next frame from the underlying device.
func (h *Handle) ReadFrame(ctx context.Context) (Frame, error) {
	if h.released.Load() {
		return Frame{}, ErrHandleReleased
	}

	return h.gate.device.ReadFrame(ctx)
}

// Release returns exclusive access to the gate. Safe to call multiple
// times; only the first call has effect.
func (h *Handle) Release() {
	if h.released.Swap(true) {
		return
	}

	h.gate.sem <- struct{}{}
}
