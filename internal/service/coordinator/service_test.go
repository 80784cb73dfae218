package coordinator

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akulinich/watchpost/internal/alarm"
	"github.com/akulinich/watchpost/internal/bus"
	"github.com/akulinich/watchpost/internal/camera"
	"github.com/akulinich/watchpost/internal/domain/watch"
	"github.com/akulinich/watchpost/internal/notify"
)

const eventWaitTimeout = 2 * time.Second

// scriptedDevice paces synthetic JPEG frames and can be told to fail after
// a fixed number of reads.
type scriptedDevice struct {
	interval  time.Duration
	failAfter int

	mu    sync.Mutex
	reads int
}

func newScriptedDevice(interval time.Duration) *scriptedDevice {
	return &scriptedDevice{interval: interval, failAfter: -1}
}

func (d *scriptedDevice) Start(_ context.Context) error { return nil }

func (d *scriptedDevice) Stop() error { return nil }

func (d *scriptedDevice) ReadFrame(ctx context.Context) (camera.Frame, error) {
	select {
	case <-ctx.Done():
		return camera.Frame{}, ctx.Err()
	case <-time.After(d.interval):
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.reads++
	if d.failAfter >= 0 && d.reads > d.failAfter {
		return camera.Frame{}, errors.New("device fault")
	}

	return camera.Frame{
		Seq:       uint64(d.reads),
		Timestamp: time.Now(),
		Data:      []byte{0xFF, 0xD8, 0xFF, 0xD9},
	}, nil
}

// timedActuator records when the indicator switched on and off.
type timedActuator struct {
	mu    sync.Mutex
	on    bool
	onAt  time.Time
	offAt time.Time
}

func (a *timedActuator) SetOn() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.on = true
	a.onAt = time.Now()

	return nil
}

func (a *timedActuator) SetOff() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.on = false
	a.offAt = time.Now()

	return nil
}

func (a *timedActuator) Close() error { return nil }

func (a *timedActuator) On() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.on
}

// span reports how long the indicator was on, once it has switched off.
func (a *timedActuator) span() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.on || a.offAt.IsZero() {
		return 0, false
	}

	return a.offAt.Sub(a.onAt), true
}

// recordingPort captures delivered artifacts and can simulate failures.
type recordingPort struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
}

func (p *recordingPort) Send(_ context.Context, artifactPath, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sendErr != nil {
		return p.sendErr
	}

	p.sent = append(p.sent, artifactPath)

	return nil
}

func (p *recordingPort) Close() error { return nil }

func (p *recordingPort) sentPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.sent...)
}

type fixture struct {
	coordinator *Coordinator
	gate        *camera.Gate
	motion      chan watch.MotionEvent
	events      chan bus.Event
	eventBus    *bus.Bus
	actuator    *timedActuator
	port        *recordingPort
	outputDir   string
	cancel      context.CancelFunc
}

func newFixture(t *testing.T, device camera.Device, policy Policy) *fixture {
	t.Helper()

	policy.OutputDir = t.TempDir()

	eventBus := bus.New()
	events := make(chan bus.Event, 64)
	require.NoError(t, eventBus.Subscribe("test", events))

	actuator := &timedActuator{}
	port := &recordingPort{}

	gate := camera.NewGate(device)
	tap := camera.NewTap()

	coord := New(policy, gate, tap, alarm.NewController(actuator, eventBus), notify.NewNotifier(port, eventBus), eventBus)

	ctx, cancel := context.WithCancel(context.Background())
	motion := make(chan watch.MotionEvent, 1)

	go coord.Run(ctx, motion)

	t.Cleanup(func() {
		cancel()
		require.NoError(t, coord.Close(time.Second))
		eventBus.Close()
	})

	return &fixture{
		coordinator: coord,
		gate:        gate,
		motion:      motion,
		events:      events,
		eventBus:    eventBus,
		actuator:    actuator,
		port:        port,
		outputDir:   policy.OutputDir,
		cancel:      cancel,
	}
}

func defaultPolicy() Policy {
	return Policy{
		RecordDuration: 80 * time.Millisecond,
		Cooldown:       50 * time.Millisecond,
		AcquireTimeout: 30 * time.Millisecond,
		AlarmDuration:  10 * time.Millisecond,
	}
}

// waitEvent blocks until an event with the given name arrives.
func waitEvent(t *testing.T, events <-chan bus.Event, name string) bus.Event {
	t.Helper()

	deadline := time.After(eventWaitTimeout)

	for {
		select {
		case event := <-events:
			if event.Name == name {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", name)

			return bus.Event{}
		}
	}
}

// requireNoEvent asserts that no event with the given name arrives within
// the window.
func requireNoEvent(t *testing.T, events <-chan bus.Event, name string, window time.Duration) {
	t.Helper()

	deadline := time.After(window)

	for {
		select {
		case event := <-events:
			require.NotEqual(t, name, event.Name)
		case <-deadline:
			return
		}
	}
}

func TestCoordinator_MotionTriggersFullCycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newScriptedDevice(5*time.Millisecond), defaultPolicy())

	f.motion <- watch.MotionEvent{Timestamp: time.Now()}

	waitEvent(t, f.events, bus.EventMotion)
	waitEvent(t, f.events, bus.EventRecordingStarted)
	finished := waitEvent(t, f.events, bus.EventRecordingFinished)
	waitEvent(t, f.events, bus.EventNotifySent)

	require.Equal(t, 1, finished.Payload["motion_count"])

	state := f.coordinator.Snapshot()
	require.False(t, state.RecordingActive)
	require.Equal(t, 1, state.MotionCount)

	// The delivered artifact is removed from disk.
	sent := f.port.sentPaths()
	require.Len(t, sent, 1)
	require.NoFileExists(t, sent[0])
}

func TestCoordinator_CooldownRejectsRetrigger(t *testing.T) {
	t.Parallel()

	policy := defaultPolicy()
	policy.Cooldown = time.Second

	f := newFixture(t, newScriptedDevice(5*time.Millisecond), policy)

	f.motion <- watch.MotionEvent{Timestamp: time.Now()}
	waitEvent(t, f.events, bus.EventRecordingFinished)

	f.motion <- watch.MotionEvent{Timestamp: time.Now()}
	requireNoEvent(t, f.events, bus.EventRecordingStarted, 150*time.Millisecond)

	require.Equal(t, 1, f.coordinator.Snapshot().MotionCount)
}

func TestCoordinator_DisabledMotionIsIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newScriptedDevice(5*time.Millisecond), defaultPolicy())

	f.coordinator.SetMotionEnabled(context.Background(), false)
	waitEvent(t, f.events, bus.EventMotionToggled)

	f.motion <- watch.MotionEvent{Timestamp: time.Now()}
	requireNoEvent(t, f.events, bus.EventRecordingStarted, 100*time.Millisecond)
}

func TestCoordinator_DisableStopsActiveSessionEarly(t *testing.T) {
	t.Parallel()

	policy := defaultPolicy()
	policy.RecordDuration = 5 * time.Second

	f := newFixture(t, newScriptedDevice(5*time.Millisecond), policy)

	f.motion <- watch.MotionEvent{Timestamp: time.Now()}
	waitEvent(t, f.events, bus.EventRecordingStarted)

	time.Sleep(30 * time.Millisecond)
	begin := time.Now()
	f.coordinator.SetMotionEnabled(context.Background(), false)

	finished := waitEvent(t, f.events, bus.EventRecordingFinished)
	require.Less(t, time.Since(begin), time.Second, "early stop should end the session promptly")

	// Stopping early still counts as a completed recording.
	require.Equal(t, 1, finished.Payload["motion_count"])
	require.Equal(t, 1, f.coordinator.Snapshot().MotionCount)
}

func TestCoordinator_AcquisitionFailureAbortsWithoutCooldown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newScriptedDevice(5*time.Millisecond), defaultPolicy())

	// Hold the gate so the trigger cannot acquire the camera.
	handle, err := f.gate.Acquire(context.Background(), time.Second)
	require.NoError(t, err)

	f.motion <- watch.MotionEvent{Timestamp: time.Now()}
	waitEvent(t, f.events, bus.EventAcquisitionFailed)
	require.Equal(t, 0, f.coordinator.Snapshot().MotionCount)

	// No cooldown penalty: the next trigger records immediately once the
	// camera is free.
	handle.Release()

	f.motion <- watch.MotionEvent{Timestamp: time.Now()}
	waitEvent(t, f.events, bus.EventRecordingStarted)
	waitEvent(t, f.events, bus.EventRecordingFinished)
	require.Equal(t, 1, f.coordinator.Snapshot().MotionCount)
}

func TestCoordinator_DeviceFaultFailsSessionAndReleasesCamera(t *testing.T) {
	t.Parallel()

	device := newScriptedDevice(5 * time.Millisecond)
	device.failAfter = 3

	f := newFixture(t, device, defaultPolicy())

	f.motion <- watch.MotionEvent{Timestamp: time.Now()}
	waitEvent(t, f.events, bus.EventRecordingStarted)
	waitEvent(t, f.events, bus.EventRecordingFailed)

	// A failed session is never delivered and never counted.
	requireNoEvent(t, f.events, bus.EventNotifySent, 100*time.Millisecond)
	require.Equal(t, 0, f.coordinator.Snapshot().MotionCount)
	require.Empty(t, f.port.sentPaths())

	// The camera was released despite the failure.
	handle, err := f.gate.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	handle.Release()

	// The partial artifact stays on disk for inspection.
	entries, err := os.ReadDir(f.outputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestCoordinator_UploadFailureRetainsArtifact(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newScriptedDevice(5*time.Millisecond), defaultPolicy())
	f.port.sendErr = errors.New("network down")

	f.motion <- watch.MotionEvent{Timestamp: time.Now()}
	waitEvent(t, f.events, bus.EventRecordingFinished)
	waitEvent(t, f.events, bus.EventNotifyFailed)

	// The recording itself succeeded, so the count is incremented and the
	// artifact is kept for a later manual retrieval.
	require.Equal(t, 1, f.coordinator.Snapshot().MotionCount)

	entries, err := os.ReadDir(f.outputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestCoordinator_TriggerAlarm(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newScriptedDevice(5*time.Millisecond), defaultPolicy())

	require.ErrorIs(t, f.coordinator.TriggerAlarm(context.Background(), 0), ErrInvalidAlarmDuration)
	require.ErrorIs(t, f.coordinator.TriggerAlarm(context.Background(), -time.Second), ErrInvalidAlarmDuration)

	require.NoError(t, f.coordinator.TriggerAlarm(context.Background(), 20*time.Millisecond))
	waitEvent(t, f.events, bus.EventAlarmTriggered)
	require.False(t, f.actuator.On())
}

func TestCoordinator_TriggerAlarmOutlivesCallerContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newScriptedDevice(5*time.Millisecond), defaultPolicy())

	const duration = 150 * time.Millisecond

	// Cancelling the caller's context right after the trigger returns, the
	// way an HTTP request context is cancelled when the handler finishes,
	// must not cut the alarm short.
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.coordinator.TriggerAlarm(ctx, duration))
	cancel()

	waitEvent(t, f.events, bus.EventAlarmTriggered)

	span, done := f.actuator.span()
	require.True(t, done)
	require.GreaterOrEqual(t, span, duration)
}

func TestCoordinator_ToggleMotion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newScriptedDevice(5*time.Millisecond), defaultPolicy())

	next := f.coordinator.ToggleMotion(context.Background())
	require.False(t, next.MotionEnabled)
	waitEvent(t, f.events, bus.EventMotionToggled)

	// An even number of concurrent toggles lands back on the same value
	// whatever the interleaving; a stale read would collapse two toggles
	// into one.
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			f.coordinator.ToggleMotion(context.Background())
		}()
	}

	wg.Wait()

	require.False(t, f.coordinator.Snapshot().MotionEnabled)
}

func TestCoordinator_SnapshotFrameReadsThroughGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, newScriptedDevice(5*time.Millisecond), defaultPolicy())

	frame, err := f.coordinator.SnapshotFrame(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, frame.Data)

	// The frame was published to the tap, so the next call is served from
	// the cache without touching the gate.
	handle, err := f.gate.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	defer handle.Release()

	cached, err := f.coordinator.SnapshotFrame(context.Background())
	require.NoError(t, err)
	require.Equal(t, frame.Seq, cached.Seq)
}
