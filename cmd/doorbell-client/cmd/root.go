package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/doorbell/internal/config"
	"github.com/oshokin/doorbell/internal/logger"
	"github.com/oshokin/doorbell/internal/service/client"
	"github.com/oshokin/doorbell/internal/version"
)

var (
	// configPath to the configuration file.
	configPath string
	// logLevel overrides the default info level.
	logLevel string
	// allowMultiple skips the single instance check.
	allowMultiple bool

	// rootCmd represents the base command for listening to the doorbell.
	rootCmd = &cobra.Command{
		Use:   "doorbell-client [server-url]",
		Short: "Play a sound whenever the doorbell rings.",
		Long: `Keeps a WebSocket connection to doorbell-server and plays the configured
clip for every ring, one playback at a time.

Failed handshakes are retried after a fixed delay; after max_attempts
consecutive failures the client gives up and exits with an error. A dropped
session is followed by a reconnect after the same delay.
Server URL can be provided as argument to override config (e.g., ws://pi:8080/doorbell).`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return logger.Configure(logLevel)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var serverURL string
			if len(args) > 0 {
				serverURL = args[0]
			}

			return client.Run(ctx, &client.Options{
				ConfigPath:    configPath,
				ServerURL:     serverURL,
				AllowMultiple: allowMultiple,
			})
		},
	}
)

// Execute runs the doorbell-client CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file (YAML or TOML)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn or error")
	rootCmd.Flags().BoolVar(&allowMultiple, "allow-multiple", false, "allow several clients on one host")
}
