package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/doorbell/internal/config"
	"github.com/oshokin/doorbell/internal/logger"
	"github.com/oshokin/doorbell/internal/service/status"
	"github.com/oshokin/doorbell/internal/version"
)

var (
	// configPath to the configuration file.
	configPath string
	// logLevel overrides the default info level.
	logLevel string
	// watch keeps polling until interrupted.
	watch bool

	// rootCmd represents the base command for querying server health.
	rootCmd = &cobra.Command{
		Use:   "doorbell-status [status-address]",
		Short: "Report doorbell-server and sensor health.",
		Long: `Queries the gRPC health endpoint of doorbell-server and prints the status
of the server and of the doorbell sensor.

Exits with a non-zero status when either is not serving. With --watch the
check repeats every 5 seconds until interrupted.
Status address can be provided as argument to override config (e.g., pi:8081).`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return logger.Configure(logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var statusAddress string
			if len(args) > 0 {
				statusAddress = args[0]
			}

			return status.Run(ctx, &status.Options{
				ConfigPath:    configPath,
				StatusAddress: statusAddress,
				Watch:         watch,
				PollInterval:  status.DefaultPollInterval,
				Output:        cmd.OutOrStdout(),
			})
		},
	}
)

// Execute runs the doorbell-status CLI and exits with non-zero status on error.
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
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep checking until interrupted")
}
