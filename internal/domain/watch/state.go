package watch

import "time"

// SystemState is the process-wide appliance state. It is owned and mutated
// only by the coordinator; everyone else reads copies obtained through the
// coordinator's snapshot accessor.
type SystemState struct {
	// MotionEnabled reports whether motion events are accepted.
	MotionEnabled bool
	// RecordingActive reports whether a session currently owns the camera.
	RecordingActive bool
	// MotionCount is the number of sessions that reached StatusCompleted.
	MotionCount int
	// StartTime is when the appliance process started.
	StartTime time.Time
}

// Clone returns a copy of the state to avoid leaking internal references.
func (s *SystemState) Clone() *SystemState {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// Uptime returns how long the appliance has been running as of now.
func (s *SystemState) Uptime(now time.Time) time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}

	return now.Sub(s.StartTime)
}
