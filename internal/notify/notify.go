// Package notify delivers finished recording artifacts to an outbound
// notification channel. Delivery runs on its own goroutine per job so
// upload latency never stalls sensing or the next cooldown window.
package notify

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/akulinich/watchpost/internal/bus"
	"github.com/akulinich/watchpost/internal/domain/watch"
	"github.com/akulinich/watchpost/internal/logger"
)

// Port is the abstract boundary over an outbound artifact-delivery channel.
type Port interface {
	// Send delivers the artifact with a caption.
	Send(ctx context.Context, artifactPath, caption string) error
	// Close releases the channel.
	Close() error
}

// Notifier runs notification jobs. A nil port disables delivery: artifacts
// are retained and no failure is ever reported, which is not an error.
type Notifier struct {
	port   Port
	events *bus.Bus
	wg     sync.WaitGroup
}

// NewNotifier creates a notifier. Pass a nil port to disable delivery.
func NewNotifier(port Port, events *bus.Bus) *Notifier {
	return &Notifier{
		port:   port,
		events: events,
	}
}

// Dispatch runs the job asynchronously on a tracked goroutine.
func (n *Notifier) Dispatch(ctx context.Context, job watch.NotificationJob) {
	n.wg.Add(1)

	go func() {
		defer n.wg.Done()
		n.deliver(ctx, job)
	}()
}

// deliver makes a single delivery attempt. On success the local artifact is
// deleted; on failure it is retained for manual recovery. There is no retry
// loop: one attempt per job bounds resource use, and the failure is surfaced
// on the bus instead.
func (n *Notifier) deliver(ctx context.Context, job watch.NotificationJob) {
	ctx = logger.WithName(ctx, "notifier")

	if n.port == nil {
		logger.DebugKV(ctx, "Notification port disabled, retaining artifact", "artifact", job.ArtifactPath)

		return
	}

	job.Attempt++

	if err := n.port.Send(ctx, job.ArtifactPath, job.Caption); err != nil {
		logger.ErrorKV(ctx, "Artifact delivery failed, artifact retained",
			"session_id", job.SessionID,
			"artifact", job.ArtifactPath,
			"attempt", job.Attempt,
			"error", err,
		)
		n.events.Publish(bus.Event{
			Name:     bus.EventNotifyFailed,
			Severity: bus.SeverityDanger,
			Message:  "Failed to deliver recording",
			Payload:  map[string]any{"session_id": job.SessionID, "artifact": job.ArtifactPath},
		})

		return
	}

	if err := os.Remove(job.ArtifactPath); err != nil {
		logger.WarnKV(ctx, "Delivered artifact could not be removed", "artifact", job.ArtifactPath, "error", err)
	}

	logger.InfoKV(ctx, "Artifact delivered", "session_id", job.SessionID, "artifact", job.ArtifactPath)
	n.events.Publish(bus.Event{
		Name:     bus.EventNotifySent,
		Severity: bus.SeveritySuccess,
		Message:  "Recording delivered",
		Payload:  map[string]any{"session_id": job.SessionID},
	})
}

// Close waits for in-flight jobs up to the timeout, then closes the port.
// A hung upload cannot block shutdown indefinitely.
func (n *Notifier) Close(timeout time.Duration) error {
	done := make(chan struct{})

	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}

	if n.port == nil {
		return nil
	}

	return n.port.Close()
}
