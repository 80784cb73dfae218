package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate_Defaults checks an empty config fills the reference defaults.
func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	cfg := new(Config)
	require.NoError(t, Validate(cfg))

	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, DefaultStateFilename, cfg.StateFile)
	require.Equal(t, DefaultListenAddress, cfg.Server.ListenAddress)
	require.Equal(t, "gpio", cfg.Sensor.Backend)
	require.Equal(t, DefaultSensorPin, cfg.Sensor.Pin)
	require.Equal(t, 100*time.Millisecond, cfg.Sensor.PollInterval)
	require.Equal(t, "gstreamer", cfg.Camera.Backend)
	require.Equal(t, DefaultWidth, cfg.Camera.Width)
	require.Equal(t, DefaultHeight, cfg.Camera.Height)
	require.Equal(t, DefaultAlarmPin, cfg.Alarm.Pin)
	require.Equal(t, DefaultAlarmDuration, cfg.Alarm.Duration)
	require.Equal(t, DefaultOutputDir, cfg.Recording.OutputDir)
	require.Equal(t, DefaultRecordDuration, cfg.Recording.Duration)
	require.Equal(t, DefaultCooldown, cfg.Recording.Cooldown)
	require.Equal(t, DefaultAcquireTimeout, cfg.Recording.AcquireTimeout)
}

// TestValidate_Rejections covers malformed values.
func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	bad := &Config{Server: ServerConfig{ListenAddress: "bad:address"}}
	require.Error(t, Validate(bad))

	bad = &Config{Sensor: SensorConfig{Backend: "telepathy"}}
	require.Error(t, Validate(bad))

	bad = &Config{Camera: CameraConfig{Backend: "film"}}
	require.Error(t, Validate(bad))

	bad = &Config{Alarm: AlarmConfig{Backend: "siren"}}
	require.Error(t, Validate(bad))

	// Delivery enabled without credentials.
	bad = &Config{Telegram: TelegramConfig{Enabled: true}}
	require.Error(t, Validate(bad))
}

// TestLoad_FileAndEnvOverride ensures YAML values load and the environment
// wins over the file.
func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchpost.yaml")

	contents := []byte(`
log_level: debug
server:
  listen_address: ":8080"
recording:
  output_dir: clips
  cooldown: 10s
camera:
  backend: synthetic
`)
	require.NoError(t, os.WriteFile(path, contents, 0o600))

	t.Setenv("WATCHPOST_OUTPUT_DIR", "override-clips")
	t.Setenv("WATCHPOST_TELEGRAM_CHAT_ID", "0")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, ":8080", cfg.Server.ListenAddress)
	require.Equal(t, "synthetic", cfg.Camera.Backend)
	require.Equal(t, 10*time.Second, cfg.Recording.Cooldown)
	require.Equal(t, "override-clips", cfg.Recording.OutputDir)
}

// TestLoad_MissingFileUsesDefaults ensures the appliance starts without a
// settings file.
func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("WATCHPOST_TELEGRAM_CHAT_ID", "0")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultOutputDir, cfg.Recording.OutputDir)
}

// TestLoad_TelegramCredentialsFromEnv ensures credentials are read from the
// environment only.
func TestLoad_TelegramCredentialsFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchpost.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram:\n  enabled: true\n"), 0o600))

	t.Setenv("WATCHPOST_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("WATCHPOST_TELEGRAM_CHAT_ID", "42")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Telegram.Enabled)
	require.Equal(t, "123:abc", cfg.Telegram.Token)
	require.Equal(t, int64(42), cfg.Telegram.ChatID)
}
