package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/doorbell/internal/config"
	"github.com/oshokin/doorbell/internal/logger"
	"github.com/oshokin/doorbell/internal/service/server"
	"github.com/oshokin/doorbell/internal/version"
)

var (
	// configPath to the configuration file.
	configPath string
	// logLevel overrides the default info level.
	logLevel string

	// rootCmd represents the base command for running the doorbell server.
	rootCmd = &cobra.Command{
		Use:   "doorbell-server [listen-address]",
		Short: "Watch the doorbell button and notify connected clients.",
		Long: `Samples the doorbell button on a GPIO line and pushes every ring to the
clients connected over WebSocket.

While the button is held a ring is pushed once per suppress interval; while it
is idle every client receives a keepalive ping once per idle interval.
If the GPIO line cannot be acquired the server keeps running and serves
keepalives only, reporting the sensor as NOT_SERVING on the status endpoint.
Listen address can be provided as argument to override config (e.g., :8080).`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return logger.Configure(logLevel)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
			})
		},
	}
)

// Execute runs the doorbell-server CLI and exits with non-zero status on error.
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
}
