package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akulinich/watchpost/internal/alarm"
	"github.com/akulinich/watchpost/internal/bus"
	"github.com/akulinich/watchpost/internal/camera"
	"github.com/akulinich/watchpost/internal/domain/watch"
	"github.com/akulinich/watchpost/internal/logger"
	"github.com/akulinich/watchpost/internal/notify"
)

// Policy holds the recording policy knobs.
type Policy struct {
	// OutputDir is where artifact files are written.
	OutputDir string
	// RecordDuration is the planned length of each session.
	RecordDuration time.Duration
	// Cooldown is the minimum time after camera release before the next
	// recording may begin.
	Cooldown time.Duration
	// AcquireTimeout bounds the wait for exclusive camera access.
	AcquireTimeout time.Duration
	// AlarmDuration is how long the alarm sounds per motion trigger.
	AlarmDuration time.Duration
}

// ErrInvalidAlarmDuration is returned for non-positive manual alarm requests.
var ErrInvalidAlarmDuration = errors.New("alarm duration must be positive")

// Coordinator is the recording state machine. All mutable state is guarded
// by mu; the Run loop is the only writer of the recording fields.
type Coordinator struct {
	policy   Policy
	gate     *camera.Gate
	tap      *camera.Tap
	alarm    *alarm.Controller
	notifier *notify.Notifier
	events   *bus.Bus

	mu            sync.Mutex
	state         watch.SystemState
	cooldownUntil time.Time
	stopActive    context.CancelFunc
	runCtx        context.Context

	// tasks tracks spawned alarm goroutines so shutdown can wait for them.
	tasks sync.WaitGroup
}

// New creates a coordinator with motion detection enabled.
func New(policy Policy, gate *camera.Gate, tap *camera.Tap, alarmController *alarm.Controller, notifier *notify.Notifier, events *bus.Bus) *Coordinator {
	return &Coordinator{
		policy:   policy,
		gate:     gate,
		tap:      tap,
		alarm:    alarmController,
		notifier: notifier,
		events:   events,
		state: watch.SystemState{
			MotionEnabled: true,
			StartTime:     time.Now(),
		},
	}
}

// Restore applies persisted counters. Call it before the run loop starts;
// live session state is never restored.
func (c *Coordinator) Restore(motionEnabled bool, motionCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.MotionEnabled = motionEnabled
	c.state.MotionCount = motionCount
}

// Run consumes motion events until the context is cancelled. Recording
// sessions execute inside this loop, so the loop itself serializes camera
// ownership; events arriving mid-session sit in the monitor's one-slot
// inbox and are rejected by the cooldown check afterwards.
func (c *Coordinator) Run(ctx context.Context, events <-chan watch.MotionEvent) {
	ctx = logger.WithName(ctx, "coordinator")

	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			c.handleMotion(ctx, event)
		}
	}
}

// handleMotion applies the acceptance policy and runs one trigger cycle.
func (c *Coordinator) handleMotion(ctx context.Context, event watch.MotionEvent) {
	if !c.accept(event) {
		logger.DebugKV(ctx, "Motion event rejected", "timestamp", event.Timestamp)

		return
	}

	logger.InfoKV(ctx, "Motion detected", "timestamp", event.Timestamp)
	c.events.Publish(bus.Event{
		Name:     bus.EventMotion,
		Severity: bus.SeverityWarning,
		Message:  "Motion detected",
		Payload:  map[string]any{"timestamp": event.Timestamp},
	})

	c.spawnAlarm(ctx, c.policy.AlarmDuration)
	c.record(ctx)
}

// accept reports whether a motion event may start a recording: detection
// enabled, no session active, cooldown elapsed.
func (c *Coordinator) accept(event watch.MotionEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.MotionEnabled || c.state.RecordingActive {
		return false
	}

	return !time.Now().Before(c.cooldownUntil)
}

// spawnAlarm runs a tracked alarm trigger task. The task lives on the run
// context rather than the caller's, so a control request returning cannot
// cut the alarm short; only process shutdown does.
func (c *Coordinator) spawnAlarm(ctx context.Context, duration time.Duration) {
	c.mu.Lock()
	alarmCtx := c.runCtx
	c.mu.Unlock()

	if alarmCtx == nil {
		alarmCtx = context.WithoutCancel(ctx)
	}

	c.tasks.Add(1)

	go func() {
		defer c.tasks.Done()

		if err := c.alarm.Trigger(alarmCtx, duration); err != nil {
			logger.ErrorKV(alarmCtx, "Alarm trigger failed", "error", err)
		}
	}()
}

// SetMotionEnabled flips motion detection through the coordinator's public
// contract and returns the resulting snapshot. Disabling while a session is
// active stops it at the next frame boundary; the session still completes
// normally.
func (c *Coordinator) SetMotionEnabled(ctx context.Context, enabled bool) *watch.SystemState {
	c.mu.Lock()
	snapshot := c.applyMotionEnabled(enabled)
	c.mu.Unlock()

	c.announceMotionToggled(ctx, enabled)

	return snapshot
}

// ToggleMotion inverts motion detection in one critical section and returns
// the resulting snapshot. Concurrent toggles each take effect; none is lost
// to a stale read.
func (c *Coordinator) ToggleMotion(ctx context.Context) *watch.SystemState {
	c.mu.Lock()
	enabled := !c.state.MotionEnabled
	snapshot := c.applyMotionEnabled(enabled)
	c.mu.Unlock()

	c.announceMotionToggled(ctx, enabled)

	return snapshot
}

// applyMotionEnabled mutates the flag and stops an active session on
// disable. The caller holds mu.
func (c *Coordinator) applyMotionEnabled(enabled bool) *watch.SystemState {
	c.state.MotionEnabled = enabled
	if !enabled && c.stopActive != nil {
		c.stopActive()
	}

	return c.state.Clone()
}

func (c *Coordinator) announceMotionToggled(ctx context.Context, enabled bool) {
	message := "Motion detection disabled"
	if enabled {
		message = "Motion detection enabled"
	}

	logger.Info(ctx, message)
	c.events.Publish(bus.Event{
		Name:     bus.EventMotionToggled,
		Severity: bus.SeverityInfo,
		Message:  message,
		Payload:  map[string]any{"enabled": enabled},
	})
}

// TriggerAlarm sounds the alarm manually for the given duration.
func (c *Coordinator) TriggerAlarm(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return ErrInvalidAlarmDuration
	}

	c.spawnAlarm(ctx, duration)

	return nil
}

// Snapshot returns a copy of the system state.
func (c *Coordinator) Snapshot() *watch.SystemState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.Clone()
}

// SnapshotFrame returns the most recent preview frame, reading one through
// the gate if nothing has been published yet.
func (c *Coordinator) SnapshotFrame(ctx context.Context) (camera.Frame, error) {
	if frame, ok := c.tap.Latest(); ok {
		return frame, nil
	}

	handle, err := c.gate.Acquire(ctx, c.policy.AcquireTimeout)
	if err != nil {
		return camera.Frame{}, fmt.Errorf("snapshot acquisition: %w", err)
	}
	defer handle.Release()

	frame, err := handle.ReadFrame(ctx)
	if err != nil {
		return camera.Frame{}, fmt.Errorf("snapshot read: %w", err)
	}

	c.tap.Publish(frame)

	return frame, nil
}

// Close waits for outstanding alarm and notification tasks, forces the
// actuator off, and closes the notification port. Every step is bounded so
// a hung I/O call cannot block shutdown.
func (c *Coordinator) Close(timeout time.Duration) error {
	done := make(chan struct{})

	go func() {
		c.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}

	var errs []error

	if err := c.alarm.ForceOff(); err != nil {
		errs = append(errs, fmt.Errorf("force actuator off: %w", err))
	}

	if err := c.notifier.Close(timeout); err != nil {
		errs = append(errs, fmt.Errorf("close notifier: %w", err))
	}

	return errors.Join(errs...)
}
