package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/doorbell/internal/api/ws"
	"github.com/oshokin/doorbell/internal/config"
	"github.com/oshokin/doorbell/internal/domain/doorbell"
	"github.com/oshokin/doorbell/internal/events"
	"github.com/oshokin/doorbell/internal/logger"
	"github.com/oshokin/doorbell/internal/metrics"
	"github.com/oshokin/doorbell/internal/sensor"
)

// Options controls the doorbell-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings file.
	ConfigPath string
	// ListenAddress overrides the WebSocket listen address from the config.
	ListenAddress string
	// Driver replaces the GPIO character device driver, e.g. in tests.
	Driver sensor.Driver
}

const (
	// readHeaderTimeout bounds reading handshake request headers.
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout bounds the HTTP server shutdown.
	shutdownTimeout = 5 * time.Second
)

// Run starts the sensor monitor, the WebSocket endpoint and the optional
// status and event sinks, and blocks until ctx is canceled.
//
//nolint:funlen // Startup wiring reads best in one place.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "doorbell-server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	settings := cfg.Server
	if opts.ListenAddress != "" {
		settings.ListenAddress = opts.ListenAddress
	}

	if err = settings.Validate(); err != nil {
		return fmt.Errorf("validate server settings: %w", err)
	}

	m := metrics.New()
	reporter := newHealthReporter()
	observers := []sensor.Observer{m, reporter}

	if settings.NATSURL != "" {
		publisher, connectErr := events.Connect(ctx, settings.NATSURL, settings.NATSSubject)
		if connectErr != nil {
			return connectErr
		}

		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				logger.WarnKV(ctx, "Unable to drain NATS connection", "error", closeErr)
			}
		}()

		observers = append(observers, publisher)
	}

	driver := opts.Driver
	if driver == nil {
		driver = sensor.NewGPIODriver(settings.GPIOChip, settings.GPIOBias)
	}

	polarity := doorbell.ActiveLow
	if settings.ActiveHigh {
		polarity = doorbell.ActiveHigh
	}

	monitor := sensor.NewMonitor(driver, sensor.Options{
		Pin:          settings.GPIOPin,
		Polarity:     polarity,
		PollInterval: settings.PollInterval,
		Observers:    observers,
	})

	handler := ws.NewHandler(newService(monitor, ChannelOptions{
		SuppressInterval: settings.SuppressInterval,
		IdleInterval:     settings.IdleInterval,
	}, m), settings.WriteTimeout)

	mux := http.NewServeMux()
	mux.Handle(settings.Path, handler)

	if settings.MetricsPath != "" {
		mux.Handle(settings.MetricsPath, m.Handler())
	}

	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		// Sessions inherit the run context so they say goodbye on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", settings.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.ListenAddress, err)
	}

	var background sync.WaitGroup

	background.Go(func() {
		_ = monitor.Run(ctx)
	})

	grpcServer, err := serveStatus(ctx, &background, &lc, settings.StatusAddress, reporter)
	if err != nil {
		_ = lis.Close()
		cancel()
		background.Wait()

		return err
	}

	logger.InfoKV(ctx, "Doorbell server listening",
		"listen_address", lis.Addr().String(),
		"path", settings.Path,
		"metrics_path", settings.MetricsPath,
		"status_address", settings.StatusAddress)

	// Done channel is closed after shutdown finishes to ensure we block
	// until the servers fully stop before returning.
	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()
		logger.Info(ctx, "Shutting down doorbell server")

		reporter.server.Shutdown()

		if grpcServer != nil {
			grpcServer.GracefulStop()
		}

		shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer stop()

		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.WarnKV(ctx, "HTTP server shutdown", "error", shutdownErr)
		}
	}()

	if err = httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		<-done
		background.Wait()

		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	handler.Wait()
	background.Wait()
	logger.Info(ctx, "Doorbell server stopped")

	return nil
}

// serveStatus starts the gRPC health endpoint when an address is configured.
func serveStatus(
	ctx context.Context,
	background *sync.WaitGroup,
	lc *net.ListenConfig,
	address string,
	reporter *healthReporter,
) (*grpc.Server, error) {
	if address == "" {
		return nil, nil //nolint:nilnil // Status endpoint is optional.
	}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, reporter.server)

	background.Go(func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.ErrorKV(ctx, "Status server stopped", "error", err)
		}
	})

	return grpcServer, nil
}
