// Package appliance wires the configured backends into the running
// process: sensor monitor, camera arbitration, preview streamer,
// coordinator, notifier, and the HTTP surface.
package appliance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/akulinich/watchpost/internal/alarm"
	"github.com/akulinich/watchpost/internal/bus"
	"github.com/akulinich/watchpost/internal/camera"
	"github.com/akulinich/watchpost/internal/config"
	"github.com/akulinich/watchpost/internal/logger"
	"github.com/akulinich/watchpost/internal/notify"
	"github.com/akulinich/watchpost/internal/repository/state"
	"github.com/akulinich/watchpost/internal/sensor"
	"github.com/akulinich/watchpost/internal/server"
	"github.com/akulinich/watchpost/internal/service/coordinator"
)

// Options controls the watchpost process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the
	// HTTP server.
	ListenAddress string
	// StateFile specifies the path to persist the counters JSON.
	StateFile string
}

// shutdownStepTimeout bounds each ordered shutdown step so a hung
// peripheral cannot block process exit.
const shutdownStepTimeout = 2 * time.Second

// outputDirMode is the permission mask for the artifact directory.
const outputDirMode = 0o750

// Run starts the appliance and blocks until the context is cancelled.
// Shutdown is ordered: stop accepting triggers, finish the active session,
// release the camera, silence the alarm, then close the remaining ports.
func (o *Options) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "watchpost")

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if o.ListenAddress != "" {
		cfg.Server.ListenAddress = o.ListenAddress
	}

	if o.StateFile != "" {
		cfg.StateFile = o.StateFile
	}

	level, ok := logger.ParseLogLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	logger.SetLevel(level)

	if err = os.MkdirAll(cfg.Recording.OutputDir, outputDirMode); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	device, err := buildCamera(&cfg.Camera)
	if err != nil {
		return fmt.Errorf("build camera: %w", err)
	}

	if err = device.Start(ctx); err != nil {
		return fmt.Errorf("start camera: %w", err)
	}

	sensorPort, err := buildSensor(&cfg.Sensor)
	if err != nil {
		return fmt.Errorf("build sensor: %w", err)
	}

	actuator, err := buildActuator(&cfg.Alarm)
	if err != nil {
		return fmt.Errorf("build actuator: %w", err)
	}

	notifyPort, err := buildNotifyPort(&cfg.Telegram)
	if err != nil {
		return fmt.Errorf("build notification port: %w", err)
	}

	eventBus := bus.New()

	gate := camera.NewGate(device)
	tap := camera.NewTap()
	streamer := camera.NewStreamer(gate, tap, cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.FPS)

	coord := coordinator.New(coordinator.Policy{
		OutputDir:      cfg.Recording.OutputDir,
		RecordDuration: cfg.Recording.Duration,
		Cooldown:       cfg.Recording.Cooldown,
		AcquireTimeout: cfg.Recording.AcquireTimeout,
		AlarmDuration:  cfg.Alarm.Duration,
	}, gate, tap, alarm.NewController(actuator, eventBus), notify.NewNotifier(notifyPort, eventBus), eventBus)

	repo := state.NewFileRepository(cfg.StateFile)
	restoreCounters(ctx, repo, coord)

	monitor := sensor.NewMonitor(sensorPort, cfg.Sensor.PollInterval, cfg.Sensor.ReadBackoff, func() bool {
		return coord.Snapshot().MotionEnabled
	})

	httpServer := server.New(cfg.Server.ListenAddress, coord, tap, eventBus)

	logger.InfoKV(ctx, "Watchpost starting",
		"listen_address", cfg.Server.ListenAddress,
		"sensor_backend", cfg.Sensor.Backend,
		"camera_backend", cfg.Camera.Backend,
		"alarm_backend", cfg.Alarm.Backend,
		"output_dir", cfg.Recording.OutputDir,
		"telegram_enabled", cfg.Telegram.Enabled,
	)

	var (
		workers sync.WaitGroup
		httpErr error
	)

	workers.Add(1)

	go func() {
		defer workers.Done()
		monitor.Run(ctx)
	}()

	workers.Add(1)

	go func() {
		defer workers.Done()
		streamer.Run(ctx)
	}()

	workers.Add(1)

	go func() {
		defer workers.Done()
		coord.Run(ctx, monitor.Events())
	}()

	workers.Add(1)

	go func() {
		defer workers.Done()
		httpErr = httpServer.Run(ctx)
	}()

	workers.Add(1)

	go func() {
		defer workers.Done()
		persistCounters(ctx, repo, coord, eventBus)
	}()

	<-ctx.Done()
	logger.Info(ctx, "Shutting down")

	// The workers observe the same context; waiting here lets the active
	// recording session finish its early stop and release the camera.
	workers.Wait()

	var errs []error

	if httpErr != nil {
		errs = append(errs, httpErr)
	}

	if err = device.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop camera: %w", err))
	}

	if err = coord.Close(shutdownStepTimeout); err != nil {
		errs = append(errs, fmt.Errorf("close coordinator: %w", err))
	}

	if err = sensorPort.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sensor: %w", err))
	}

	if err = actuator.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close actuator: %w", err))
	}

	if err = eventBus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close event bus: %w", err))
	}

	logger.Info(ctx, "Watchpost stopped")

	return errors.Join(errs...)
}

// restoreCounters seeds the coordinator from the persisted snapshot. A
// missing file is the first boot; a corrupt one is logged and ignored.
func restoreCounters(ctx context.Context, repo state.Repository, coord *coordinator.Coordinator) {
	snapshot, err := repo.Load(ctx)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			logger.WarnKV(ctx, "Persisted counters unreadable, starting fresh", "error", err)
		}

		return
	}

	coord.Restore(snapshot.MotionEnabled, snapshot.MotionCount)
	logger.InfoKV(ctx, "Counters restored",
		"motion_enabled", snapshot.MotionEnabled,
		"motion_count", snapshot.MotionCount,
	)
}

// persistCounters saves the counters whenever a recording finishes or
// detection is toggled.
func persistCounters(ctx context.Context, repo state.Repository, coord *coordinator.Coordinator, events *bus.Bus) {
	ctx = logger.WithName(ctx, "persister")

	ch := make(chan bus.Event, 16)
	if err := events.Subscribe("persister", ch); err != nil {
		logger.ErrorKV(ctx, "Counter persistence unavailable", "error", err)

		return
	}

	defer func() {
		_ = events.Unsubscribe("persister")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			if event.Name != bus.EventRecordingFinished && event.Name != bus.EventMotionToggled {
				continue
			}

			snapshot := coord.Snapshot()

			err := repo.Save(ctx, &state.Snapshot{
				MotionEnabled: snapshot.MotionEnabled,
				MotionCount:   snapshot.MotionCount,
			})
			if err != nil {
				logger.WarnKV(ctx, "Counter save failed", "error", err)
			}
		}
	}
}

// buildCamera selects the capture backend from configuration.
func buildCamera(cfg *config.CameraConfig) (camera.Device, error) {
	if cfg.Backend == "synthetic" {
		return camera.NewSynthetic(cfg.Width, cfg.Height, cfg.FPS), nil
	}

	return camera.NewGStreamer(camera.GStreamerConfig{
		DevicePath: cfg.DevicePath,
		Width:      cfg.Width,
		Height:     cfg.Height,
		FPS:        cfg.FPS,
	})
}

// buildSensor selects the motion sensor backend from configuration.
func buildSensor(cfg *config.SensorConfig) (sensor.Port, error) {
	if cfg.Backend == "simulated" {
		return sensor.NewSimulated(), nil
	}

	return sensor.NewGPIO(cfg.Chip, cfg.Pin)
}

// buildActuator selects the alarm backend from configuration.
func buildActuator(cfg *config.AlarmConfig) (alarm.Actuator, error) {
	if cfg.Backend == "none" {
		return alarm.NewNoop(), nil
	}

	return alarm.NewGPIO(cfg.Chip, cfg.Pin)
}

// buildNotifyPort creates the Telegram port when delivery is enabled.
// A nil port keeps artifacts on disk without reporting failures.
func buildNotifyPort(cfg *config.TelegramConfig) (notify.Port, error) {
	if !cfg.Enabled {
		return nil, nil //nolint:nilnil // A nil port means delivery is off.
	}

	return notify.NewTelegram(cfg.Token, cfg.ChatID)
}
