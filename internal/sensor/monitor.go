package sensor

import (
	"context"
	"time"

	"github.com/akulinich/watchpost/internal/domain/watch"
	"github.com/akulinich/watchpost/internal/logger"
)

const (
	// DefaultPollInterval is how often the sensor is sampled.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultReadBackoff is the pause after a failed read.
	DefaultReadBackoff = time.Second
)

// Monitor polls the sensor port and turns rising edges into motion events.
// Only a low-to-high transition emits an event, so a sensor that stays high
// cannot storm the coordinator. While motion detection is disabled the
// monitor keeps polling to track edges but suppresses emission, so a stale
// edge does not fire the moment detection is re-enabled.
type Monitor struct {
	port     Port
	interval time.Duration
	backoff  time.Duration
	enabled  func() bool
	events   chan watch.MotionEvent

	prevLevel bool
}

// NewMonitor creates a monitor. The enabled callback is consulted on every
// poll; events land on the channel returned by Events.
func NewMonitor(port Port, interval, backoff time.Duration, enabled func() bool) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if backoff <= 0 {
		backoff = DefaultReadBackoff
	}

	return &Monitor{
		port:     port,
		interval: interval,
		backoff:  backoff,
		enabled:  enabled,
		events:   make(chan watch.MotionEvent, 1),
	}
}

// Events returns the channel carrying debounced motion events.
func (m *Monitor) Events() <-chan watch.MotionEvent {
	return m.events
}

// Run polls the sensor until the context is cancelled. Read errors are
// logged and retried after a backoff; they never stop the loop.
func (m *Monitor) Run(ctx context.Context) {
	ctx = logger.WithName(ctx, "sensor")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		level, err := m.port.Read()
		if err != nil {
			logger.WarnKV(ctx, "Sensor read failed, backing off", "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(m.backoff):
			}

			continue
		}

		m.observe(ctx, level, time.Now())
	}
}

// observe applies edge detection to one sample and emits an event on a
// rising edge while detection is enabled. A full coordinator inbox means a
// burst is already being handled; the extra edge is dropped.
func (m *Monitor) observe(ctx context.Context, level bool, now time.Time) {
	rising := level && !m.prevLevel
	m.prevLevel = level

	if !rising {
		return
	}

	if m.enabled != nil && !m.enabled() {
		logger.Debug(ctx, "Motion edge suppressed, detection disabled")

		return
	}

	select {
	case m.events <- watch.MotionEvent{Timestamp: now}:
		logger.DebugKV(ctx, "Motion edge emitted", "timestamp", now)
	default:
		logger.Debug(ctx, "Motion edge dropped, coordinator busy")
	}
}
