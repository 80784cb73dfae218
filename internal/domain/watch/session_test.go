package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestNewRecordingSession verifies fresh sessions start Active with unique IDs.
func TestNewRecordingSession(t *testing.T) {
	t.Parallel()

	started := time.Unix(1000, 0)

	first := NewRecordingSession(started, 10*time.Second, "recordings/a.mjpeg")
	second := NewRecordingSession(started, 10*time.Second, "recordings/b.mjpeg")

	require.Equal(t, StatusActive, first.Status)
	require.False(t, first.Status.Terminal())
	require.Equal(t, started, first.StartedAt)
	require.NotEqual(t, first.ID, second.ID)
}

// TestSessionStatus_Terminal checks every end state is reported as terminal.
func TestSessionStatus_Terminal(t *testing.T) {
	t.Parallel()

	for _, status := range []SessionStatus{StatusCompleted, StatusFailed, StatusAborted} {
		require.True(t, status.Terminal(), string(status))
	}
}

// TestSystemState_Clone verifies clones are detached copies.
func TestSystemState_Clone(t *testing.T) {
	t.Parallel()

	state := &SystemState{
		MotionEnabled: true,
		MotionCount:   3,
		StartTime:     time.Unix(500, 0),
	}

	cloned := state.Clone()
	require.NotSame(t, state, cloned)
	require.Equal(t, state, cloned)

	cloned.MotionCount = 9
	require.Equal(t, 3, state.MotionCount)

	var nilState *SystemState
	require.Nil(t, nilState.Clone())
}

// TestSystemState_Uptime covers the zero start time edge case.
func TestSystemState_Uptime(t *testing.T) {
	t.Parallel()

	var state SystemState
	require.Zero(t, state.Uptime(time.Unix(100, 0)))

	state.StartTime = time.Unix(40, 0)
	require.Equal(t, time.Minute, state.Uptime(time.Unix(100, 0)))
}
