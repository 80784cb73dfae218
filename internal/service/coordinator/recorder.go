package coordinator

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/akulinich/watchpost/internal/bus"
	"github.com/akulinich/watchpost/internal/camera"
	"github.com/akulinich/watchpost/internal/domain/watch"
	"github.com/akulinich/watchpost/internal/logger"
)

// artifactTimeFormat produces sortable artifact names, e.g.
// motion_20250101_120000.mjpeg.
const artifactTimeFormat = "20060102_150405"

// record runs one full recording session: exclusive acquisition, capture,
// release, accounting, notification handoff. It blocks the Run loop for the
// session duration, which is what serializes recordings.
func (c *Coordinator) record(ctx context.Context) {
	handle, err := c.gate.Acquire(ctx, c.policy.AcquireTimeout)
	if err != nil {
		// Aborted trigger: no session, no cooldown penalty.
		logger.ErrorKV(ctx, "Camera acquisition failed, trigger aborted", "error", err)
		c.events.Publish(bus.Event{
			Name:     bus.EventAcquisitionFailed,
			Severity: bus.SeverityDanger,
			Message:  "Camera busy, recording aborted",
		})

		return
	}

	start := time.Now()
	artifact := filepath.Join(c.policy.OutputDir, fmt.Sprintf("motion_%s.mjpeg", start.Format(artifactTimeFormat)))
	session := watch.NewRecordingSession(start, c.policy.RecordDuration, artifact)

	// The session stops at the planned deadline, on disable, or on process
	// shutdown, all bounded by one frame interval.
	sessionCtx, cancel := context.WithDeadline(ctx, start.Add(c.policy.RecordDuration))

	c.mu.Lock()
	c.state.RecordingActive = true
	c.stopActive = cancel
	c.mu.Unlock()

	logger.InfoKV(ctx, "Recording started",
		"session_id", session.ID,
		"artifact", artifact,
		"planned_duration", c.policy.RecordDuration,
	)
	c.events.Publish(bus.Event{
		Name:     bus.EventRecordingStarted,
		Severity: bus.SeverityInfo,
		Message:  "Recording started",
		Payload:  map[string]any{"session_id": session.ID},
	})

	session = c.capture(sessionCtx, handle, session)

	// Release before anything else: the cooldown window starts only once
	// the camera is free again.
	handle.Release()
	cancel()

	c.mu.Lock()
	c.state.RecordingActive = false
	c.stopActive = nil
	c.cooldownUntil = time.Now().Add(c.policy.Cooldown)

	if session.Status == watch.StatusCompleted {
		c.state.MotionCount++
	}

	snapshot := c.state.Clone()
	c.mu.Unlock()

	c.finish(ctx, session, snapshot)
}

// capture reads frames from the exclusive handle into the artifact file
// until the session context ends. Frames are mirrored to the preview tap so
// the live view keeps flowing while the gate is held.
func (c *Coordinator) capture(ctx context.Context, handle *camera.Handle, session watch.RecordingSession) watch.RecordingSession {
	file, err := os.Create(session.ArtifactPath)
	if err != nil {
		logger.ErrorKV(ctx, "Artifact create failed", "artifact", session.ArtifactPath, "error", err)
		session.Status = watch.StatusFailed
		session.EndedAt = time.Now()

		return session
	}

	writer := bufio.NewWriter(file)
	failed := false

	for {
		frame, readErr := handle.ReadFrame(ctx)
		if readErr != nil {
			if ctx.Err() != nil {
				// Planned deadline or early stop: a normal completion.
				break
			}

			logger.ErrorKV(ctx, "Capture I/O error", "session_id", session.ID, "error", readErr)
			failed = true

			break
		}

		c.tap.Publish(frame)

		if _, writeErr := writer.Write(frame.Data); writeErr != nil {
			logger.ErrorKV(ctx, "Artifact write failed", "session_id", session.ID, "error", writeErr)
			failed = true

			break
		}

		session.Frames++
	}

	if err = writer.Flush(); err != nil && !failed {
		logger.ErrorKV(ctx, "Artifact flush failed", "session_id", session.ID, "error", err)
		failed = true
	}

	if err = file.Close(); err != nil && !failed {
		logger.ErrorKV(ctx, "Artifact close failed", "session_id", session.ID, "error", err)
		failed = true
	}

	session.EndedAt = time.Now()
	session.Status = watch.StatusCompleted

	if failed {
		session.Status = watch.StatusFailed
	}

	return session
}

// finish publishes the session outcome and hands completed artifacts to
// the notifier. Failed sessions keep their partial artifact on disk but are
// never delivered.
func (c *Coordinator) finish(ctx context.Context, session watch.RecordingSession, snapshot *watch.SystemState) {
	if session.Status == watch.StatusFailed {
		logger.WarnKV(ctx, "Recording failed",
			"session_id", session.ID,
			"artifact", session.ArtifactPath,
			"frames", session.Frames,
		)
		c.events.Publish(bus.Event{
			Name:     bus.EventRecordingFailed,
			Severity: bus.SeverityDanger,
			Message:  "Recording failed",
			Payload:  map[string]any{"session_id": session.ID},
		})

		return
	}

	logger.InfoKV(ctx, "Recording finished",
		"session_id", session.ID,
		"artifact", session.ArtifactPath,
		"frames", session.Frames,
		"motion_count", snapshot.MotionCount,
	)
	c.events.Publish(bus.Event{
		Name:     bus.EventRecordingFinished,
		Severity: bus.SeveritySuccess,
		Message:  "Recording finished",
		Payload: map[string]any{
			"session_id":     session.ID,
			"motion_count":   snapshot.MotionCount,
			"uptime_seconds": int(snapshot.Uptime(time.Now()).Seconds()),
		},
	})

	c.notifier.Dispatch(ctx, watch.NotificationJob{
		SessionID:    session.ID,
		ArtifactPath: session.ArtifactPath,
		Caption:      fmt.Sprintf("Motion detected at %s", session.StartedAt.Format("2006-01-02 15:04:05")),
	})
}
