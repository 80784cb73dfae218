package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the appliance settings. Values come from a YAML file with
// environment overrides applied on top; credentials are environment-only
// and never persisted to YAML.
type Config struct {
	// LogLevel is the minimum log level (debug|info|warn|error|fatal).
	LogLevel string `yaml:"log_level" env:"WATCHPOST_LOG_LEVEL"`
	// StateFile is where the persistent counters are stored.
	StateFile string `yaml:"state_file" env:"WATCHPOST_STATE_FILE"`
	// Server configures the preview/control HTTP listener.
	Server ServerConfig `yaml:"server"`
	// Sensor configures the motion sensor port.
	Sensor SensorConfig `yaml:"sensor"`
	// Camera configures the capture device.
	Camera CameraConfig `yaml:"camera"`
	// Alarm configures the buzzer.
	Alarm AlarmConfig `yaml:"alarm"`
	// Recording configures the coordinator policy.
	Recording RecordingConfig `yaml:"recording"`
	// Telegram configures artifact delivery.
	Telegram TelegramConfig `yaml:"telegram"`
}

// ServerConfig configures the HTTP preview and control surface.
type ServerConfig struct {
	// ListenAddress is the HTTP listen address, e.g. ":5000".
	ListenAddress string `yaml:"listen_address" env:"WATCHPOST_LISTEN_ADDRESS"`
}

// SensorConfig configures the motion sensor port.
type SensorConfig struct {
	// Backend selects the sensor implementation: "gpio" or "simulated".
	Backend string `yaml:"backend"`
	// Chip is the GPIO character device name, e.g. "gpiochip0".
	Chip string `yaml:"chip"`
	// Pin is the BCM line offset of the PIR signal.
	Pin int `yaml:"pin"`
	// PollInterval is the sensor sampling period.
	PollInterval time.Duration `yaml:"poll_interval"`
	// ReadBackoff is the pause after a failed sensor read.
	ReadBackoff time.Duration `yaml:"read_backoff"`
}

// CameraConfig configures the capture device.
type CameraConfig struct {
	// Backend selects the camera implementation: "gstreamer" or "synthetic".
	Backend string `yaml:"backend"`
	// DevicePath is the V4L2 device for the gstreamer backend.
	DevicePath string `yaml:"device_path"`
	// Width of captured frames in pixels.
	Width int `yaml:"width"`
	// Height of captured frames in pixels.
	Height int `yaml:"height"`
	// FPS is the capture frame rate.
	FPS float64 `yaml:"fps"`
}

// AlarmConfig configures the buzzer.
type AlarmConfig struct {
	// Backend selects the actuator implementation: "gpio" or "none".
	Backend string `yaml:"backend"`
	// Chip is the GPIO character device name.
	Chip string `yaml:"chip"`
	// Pin is the BCM line offset of the buzzer.
	Pin int `yaml:"pin"`
	// Duration is how long the alarm sounds per motion trigger.
	Duration time.Duration `yaml:"duration"`
}

// RecordingConfig configures the coordinator policy.
type RecordingConfig struct {
	// OutputDir is where artifact files are written.
	OutputDir string `yaml:"output_dir" env:"WATCHPOST_OUTPUT_DIR"`
	// Duration is the planned length of each recording.
	Duration time.Duration `yaml:"duration"`
	// Cooldown is the minimum time after camera release before the next
	// recording may begin.
	Cooldown time.Duration `yaml:"cooldown"`
	// AcquireTimeout bounds the wait for exclusive camera access.
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

// TelegramConfig configures artifact delivery. The token and chat id are
// supplied through the environment only.
type TelegramConfig struct {
	// Enabled turns delivery on. With delivery off artifacts stay on disk.
	Enabled bool `yaml:"enabled"`
	// Token is the bot token. Environment-only.
	Token string `yaml:"-" env:"WATCHPOST_TELEGRAM_TOKEN"`
	// ChatID is the destination chat. Environment-only.
	ChatID int64 `yaml:"-" env:"WATCHPOST_TELEGRAM_CHAT_ID"`
}

// Defaults mirroring the reference appliance.
const (
	// DefaultConfigFilename is the default settings file name.
	DefaultConfigFilename = "watchpost.yaml"

	// DefaultStateFilename is the default persistent counters file name.
	DefaultStateFilename = "watchpost-state.json"

	// DefaultListenAddress is the default HTTP listen address.
	DefaultListenAddress = ":5000"

	// DefaultGPIOChip is the default GPIO character device.
	DefaultGPIOChip = "gpiochip0"

	// DefaultSensorPin is the PIR signal line (BCM17).
	DefaultSensorPin = 17

	// DefaultAlarmPin is the buzzer line (BCM18).
	DefaultAlarmPin = 18

	// DefaultAlarmDuration is how long the buzzer sounds per trigger.
	DefaultAlarmDuration = 5 * time.Second

	// DefaultRecordDuration is the planned recording length.
	DefaultRecordDuration = 3 * time.Minute

	// DefaultCooldown is the pause between recordings.
	DefaultCooldown = 5 * time.Minute

	// DefaultAcquireTimeout bounds exclusive camera acquisition.
	DefaultAcquireTimeout = 2 * time.Second

	// DefaultOutputDir is where artifacts are stored.
	DefaultOutputDir = "recordings"

	// DefaultWidth and DefaultHeight are the capture resolution.
	DefaultWidth  = 640
	DefaultHeight = 480

	// DefaultFPS is the capture frame rate.
	DefaultFPS = 30
)

var (
	// errUnknownSensorBackend is returned for unsupported sensor backends.
	errUnknownSensorBackend = errors.New(`sensor backend must be "gpio" or "simulated"`)
	// errUnknownCameraBackend is returned for unsupported camera backends.
	errUnknownCameraBackend = errors.New(`camera backend must be "gstreamer" or "synthetic"`)
	// errUnknownAlarmBackend is returned for unsupported alarm backends.
	errUnknownAlarmBackend = errors.New(`alarm backend must be "gpio" or "none"`)
	// errTelegramCredentials is returned when delivery is enabled without credentials.
	errTelegramCredentials = errors.New("telegram enabled but WATCHPOST_TELEGRAM_TOKEN or WATCHPOST_TELEGRAM_CHAT_ID is unset")
)

// Load reads settings from the provided path, applies environment
// overrides, and validates the result. A missing file is not an error:
// the appliance runs on defaults plus environment.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	var cfg Config

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Defaults + environment only.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fills defaults and checks the provided settings.
//
//nolint:cyclop // A flat defaulting-and-checking sequence reads better than a split.
func Validate(cfg *Config) error {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.Server.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.Sensor.Backend == "" {
		cfg.Sensor.Backend = "gpio"
	}

	if cfg.Sensor.Backend != "gpio" && cfg.Sensor.Backend != "simulated" {
		return errUnknownSensorBackend
	}

	if cfg.Sensor.Chip == "" {
		cfg.Sensor.Chip = DefaultGPIOChip
	}

	if cfg.Sensor.Pin <= 0 {
		cfg.Sensor.Pin = DefaultSensorPin
	}

	if cfg.Sensor.PollInterval <= 0 {
		cfg.Sensor.PollInterval = 100 * time.Millisecond
	}

	if cfg.Sensor.ReadBackoff <= 0 {
		cfg.Sensor.ReadBackoff = time.Second
	}

	if cfg.Camera.Backend == "" {
		cfg.Camera.Backend = "gstreamer"
	}

	if cfg.Camera.Backend != "gstreamer" && cfg.Camera.Backend != "synthetic" {
		return errUnknownCameraBackend
	}

	if cfg.Camera.DevicePath == "" {
		cfg.Camera.DevicePath = "/dev/video0"
	}

	if cfg.Camera.Width <= 0 {
		cfg.Camera.Width = DefaultWidth
	}

	if cfg.Camera.Height <= 0 {
		cfg.Camera.Height = DefaultHeight
	}

	if cfg.Camera.FPS <= 0 {
		cfg.Camera.FPS = DefaultFPS
	}

	if cfg.Alarm.Backend == "" {
		cfg.Alarm.Backend = "gpio"
	}

	if cfg.Alarm.Backend != "gpio" && cfg.Alarm.Backend != "none" {
		return errUnknownAlarmBackend
	}

	if cfg.Alarm.Chip == "" {
		cfg.Alarm.Chip = DefaultGPIOChip
	}

	if cfg.Alarm.Pin <= 0 {
		cfg.Alarm.Pin = DefaultAlarmPin
	}

	if cfg.Alarm.Duration <= 0 {
		cfg.Alarm.Duration = DefaultAlarmDuration
	}

	if cfg.Recording.OutputDir == "" {
		cfg.Recording.OutputDir = DefaultOutputDir
	}

	if cfg.Recording.Duration <= 0 {
		cfg.Recording.Duration = DefaultRecordDuration
	}

	if cfg.Recording.Cooldown <= 0 {
		cfg.Recording.Cooldown = DefaultCooldown
	}

	if cfg.Recording.AcquireTimeout <= 0 {
		cfg.Recording.AcquireTimeout = DefaultAcquireTimeout
	}

	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0) {
		return errTelegramCredentials
	}

	return nil
}
