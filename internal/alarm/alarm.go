// Package alarm drives the audible indicator. The actuator port is a bare
// on/off switch; Controller adds the timed trigger task and the bus
// announcement.
package alarm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akulinich/watchpost/internal/bus"
	"github.com/akulinich/watchpost/internal/logger"
)

// Actuator is the abstract boundary over an on/off indicator.
type Actuator interface {
	// SetOn turns the indicator on.
	SetOn() error
	// SetOff turns the indicator off.
	SetOff() error
	// Close releases the underlying hardware.
	Close() error
}

// Controller runs timed alarm triggers against the actuator.
type Controller struct {
	actuator Actuator
	events   *bus.Bus

	// mu serializes triggers so overlapping manual and motion triggers
	// cannot race the actuator off mid-sound.
	mu sync.Mutex
}

// NewController wires an actuator to the event bus.
func NewController(actuator Actuator, events *bus.Bus) *Controller {
	return &Controller{
		actuator: actuator,
		events:   events,
	}
}

// Trigger sounds the alarm for the given duration, blocking until done.
// Callers run it on its own goroutine so the coordinator loop is never
// stalled. The duration is fixed once started; only process shutdown
// (context cancellation) cuts it short, forcing the actuator off.
func (c *Controller) Trigger(ctx context.Context, duration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx = logger.WithName(ctx, "alarm")

	if err := c.actuator.SetOn(); err != nil {
		return fmt.Errorf("actuator on: %w", err)
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		logger.Warn(ctx, "Alarm cut short by shutdown")
	}

	if err := c.actuator.SetOff(); err != nil {
		return fmt.Errorf("actuator off: %w", err)
	}

	c.events.Publish(bus.Event{
		Name:     bus.EventAlarmTriggered,
		Severity: bus.SeverityDanger,
		Message:  fmt.Sprintf("Alarm triggered for %s", duration),
		Payload:  map[string]any{"duration_seconds": duration.Seconds()},
	})

	logger.InfoKV(ctx, "Alarm trigger finished", "duration", duration)

	return nil
}

// ForceOff turns the actuator off unconditionally. Used during shutdown.
func (c *Controller) ForceOff() error {
	return c.actuator.SetOff()
}
