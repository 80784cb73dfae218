package watch

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a recording session.
type SessionStatus string

const (
	// StatusActive means the session currently owns the camera.
	StatusActive SessionStatus = "active"
	// StatusCompleted means the session finished normally, either after the
	// full planned duration or after an early stop caused by disabling
	// motion detection.
	StatusCompleted SessionStatus = "completed"
	// StatusFailed means a capture I/O error interrupted the session.
	StatusFailed SessionStatus = "failed"
	// StatusAborted means the camera could not be acquired and no recording
	// ever started.
	StatusAborted SessionStatus = "aborted"
)

// Terminal reports whether the status is an end state.
func (s SessionStatus) Terminal() bool {
	return s != StatusActive
}

// MotionEvent is a single debounced rising edge from the motion sensor.
// Events are transient: they are consumed by the coordinator immediately
// and never persisted.
type MotionEvent struct {
	// Timestamp is when the rising edge was observed.
	Timestamp time.Time
}

// RecordingSession tracks one exclusive camera acquisition from trigger to
// terminal status. The coordinator owns the session until it reaches a
// terminal status, then hands it (by value) to the notifier, which owns the
// artifact lifecycle from that point on.
type RecordingSession struct {
	// ID uniquely identifies the session in logs and bus events.
	ID string
	// StartedAt is when the camera was acquired.
	StartedAt time.Time
	// PlannedDuration is how long the session intends to record.
	PlannedDuration time.Duration
	// EndedAt is when the session reached a terminal status.
	EndedAt time.Time
	// ArtifactPath is the on-disk location of the recorded clip.
	ArtifactPath string
	// Frames is the number of frames written to the artifact.
	Frames int
	// Status is the current lifecycle state.
	Status SessionStatus
}

// NewRecordingSession creates an Active session starting now.
func NewRecordingSession(startedAt time.Time, plannedDuration time.Duration, artifactPath string) RecordingSession {
	return RecordingSession{
		ID:              uuid.NewString(),
		StartedAt:       startedAt,
		PlannedDuration: plannedDuration,
		ArtifactPath:    artifactPath,
		Status:          StatusActive,
	}
}

// NotificationJob carries a completed artifact to the notification port.
type NotificationJob struct {
	// SessionID links the job back to the recording session.
	SessionID string
	// ArtifactPath is the local file to deliver.
	ArtifactPath string
	// Caption is the human-readable message sent with the artifact.
	Caption string
	// Attempt counts delivery attempts made for this job.
	Attempt int
}
