package camera

import (
	"context"
	"time"

	"github.com/akulinich/watchpost/internal/logger"
)

const (
	// streamerAcquireTimeout bounds how long the preview path waits for the
	// gate. While a recording holds the gate this times out quickly and the
	// streamer falls back to the recording's tap frames.
	streamerAcquireTimeout = 150 * time.Millisecond

	// offlineInterval is how often placeholder frames are published when
	// the device cannot be read at all.
	offlineInterval = time.Second
)

// Streamer is the continuous preview consumer. It takes short bounded-wait
// acquisitions of the arbitration gate, reads one frame per acquisition,
// and publishes it to the tap. While the coordinator owns the gate the
// streamer stays out of the way: the active session publishes its own
// frames to the same tap.
type Streamer struct {
	gate     *Gate
	tap      *Tap
	interval time.Duration
	width    int
	height   int
}

// NewStreamer creates a preview streamer pacing reads at the given FPS.
func NewStreamer(gate *Gate, tap *Tap, width, height int, fps float64) *Streamer {
	if fps <= 0 {
		fps = 1
	}

	return &Streamer{
		gate:     gate,
		tap:      tap,
		interval: time.Duration(float64(time.Second) / fps),
		width:    width,
		height:   height,
	}
}

// Run drives the preview loop until the context is cancelled.
func (s *Streamer) Run(ctx context.Context) {
	ctx = logger.WithName(ctx, "preview")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var offlineSince time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		handle, err := s.gate.Acquire(ctx, streamerAcquireTimeout)
		if err != nil {
			// Recording in progress: the session feeds the tap.
			continue
		}

		frame, err := handle.ReadFrame(ctx)
		handle.Release()

		if err != nil {
			if ctx.Err() != nil {
				return
			}

			// Throttle placeholder publishing so a dead device does not
			// spin the loop.
			if offlineSince.IsZero() || time.Since(offlineSince) >= offlineInterval {
				offlineSince = time.Now()
				logger.WarnKV(ctx, "Camera read failed, serving placeholder", "error", err)
				s.tap.Publish(OfflineFrame(s.width, s.height, time.Now()))
			}

			continue
		}

		offlineSince = time.Time{}
		s.tap.Publish(frame)
	}
}
