package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akulinich/watchpost/internal/config"
	"github.com/akulinich/watchpost/internal/service/appliance"
	"github.com/akulinich/watchpost/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile path where the persistent counters are stored.
	stateFile string

	// rootCmd represents the base command for running the appliance.
	rootCmd = &cobra.Command{
		Use:   "watchpost [listen-address]",
		Short: "Run the motion-triggered recording appliance.",
		Long: `Starts the watchpost appliance: polls the motion sensor, records video
on motion, sounds the buzzer, delivers recordings over Telegram, and serves
the live preview and controls over HTTP.

The HTTP listen address can be provided as an argument to override the
configuration (e.g., :8080, 0.0.0.0:5000). Telegram credentials are read
from WATCHPOST_TELEGRAM_TOKEN and WATCHPOST_TELEGRAM_CHAT_ID.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &appliance.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StateFile:     stateFile,
			}

			return options.Run(ctx)
		},
	}
)

// Execute runs the watchpost CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&stateFile, "state-file", "s", "", "path to persist the counters")
}
