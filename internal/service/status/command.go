package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/oshokin/doorbell/internal/config"
	"github.com/oshokin/doorbell/internal/logger"
	"github.com/oshokin/doorbell/internal/service/common"
	"github.com/oshokin/doorbell/internal/service/server"
)

// Options controls the status checks and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings file.
	ConfigPath string
	// StatusAddress provides an optional status endpoint override.
	StatusAddress string
	// Watch keeps polling at PollInterval until ctx is canceled.
	Watch bool
	// PollInterval defines the interval between checks in watch mode.
	PollInterval time.Duration
	// Output receives the reports; defaults to stdout.
	Output io.Writer
}

// DefaultPollInterval defines the watch mode polling interval.
const DefaultPollInterval = 5 * time.Second

// ErrNotServing is returned by a single check when a service is not serving.
var ErrNotServing = errors.New("doorbell is not serving")

// checkedServices are the health services reported on every check.
//
//nolint:gochecknoglobals // Fixed list of services exposed by doorbell-server.
var checkedServices = []string{"", server.SensorServiceName}

// Run checks the status endpoint once or, in watch mode, until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "doorbell-status")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	settings := cfg.Client
	if opts.StatusAddress != "" {
		settings.StatusAddress = opts.StatusAddress
	}

	if err = settings.ValidateStatus(); err != nil {
		return fmt.Errorf("validate client settings: %w", err)
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	client, err := common.Dial(ctx, settings.StatusAddress, common.WithCallTimeout(settings.CallTimeout))
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	// Ensure connection cleanup on function exit.
	defer func() {
		_ = client.Close()
	}()

	if !opts.Watch {
		return check(ctx, client, out)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	logger.InfoKV(ctx, "Watching doorbell status",
		"status_address", settings.StatusAddress,
		"interval", opts.PollInterval.String())

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		if err = check(ctx, client, out); err != nil {
			logger.ErrorKV(ctx, "Status check failed", "error", err)
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
		}
	}
}

// check prints one report line per service and returns ErrNotServing when
// any of them is not serving.
func check(ctx context.Context, client *common.Client, out io.Writer) error {
	var notServing []string

	for _, service := range checkedServices {
		resp, err := client.Check(ctx, service)
		if err != nil {
			return err
		}

		line, err := protojson.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encode status: %w", err)
		}

		name := service
		if name == "" {
			name = "server"
		}

		if _, err = fmt.Fprintf(out, "%s %s\n", name, line); err != nil {
			return fmt.Errorf("write status: %w", err)
		}

		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			notServing = append(notServing, name)
		}
	}

	if len(notServing) > 0 {
		return fmt.Errorf("%w: %v", ErrNotServing, notServing)
	}

	return nil
}
