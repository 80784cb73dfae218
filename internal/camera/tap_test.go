package camera

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestTap_LatestFrameWins verifies slow viewers see the newest frame only.
func TestTap_LatestFrameWins(t *testing.T) {
	t.Parallel()

	tap := NewTap()

	ch, err := tap.Attach("viewer")
	require.NoError(t, err)

	tap.Publish(Frame{Seq: 1})
	tap.Publish(Frame{Seq: 2})
	tap.Publish(Frame{Seq: 3})

	require.Equal(t, uint64(3), (<-ch).Seq)

	latest, ok := tap.Latest()
	require.True(t, ok)
	require.Equal(t, uint64(3), latest.Seq)
}

// TestTap_AttachDetach verifies viewer registration semantics.
func TestTap_AttachDetach(t *testing.T) {
	t.Parallel()

	tap := NewTap()

	ch, err := tap.Attach("viewer")
	require.NoError(t, err)

	_, err = tap.Attach("viewer")
	require.ErrorIs(t, err, ErrViewerExists)

	tap.Detach("viewer")

	_, err = tap.Attach("viewer")
	require.NoError(t, err)

	// Detached channel no longer receives.
	tap.Detach("viewer")
	tap.Publish(Frame{Seq: 9})

	select {
	case <-ch:
		t.Fatal("detached viewer received a frame")
	case <-time.After(20 * time.Millisecond):
	}
}

// TestTap_LatestEmpty verifies Latest reports absence before any publish.
func TestTap_LatestEmpty(t *testing.T) {
	t.Parallel()

	_, ok := NewTap().Latest()
	require.False(t, ok)
}
