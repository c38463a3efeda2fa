package client

import (
	"context"
	"fmt"
	"os"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/doorbell/internal/api/ws"
	"github.com/oshokin/doorbell/internal/config"
	"github.com/oshokin/doorbell/internal/logger"
	"github.com/oshokin/doorbell/internal/service/common"
	"github.com/oshokin/doorbell/internal/service/player"
)

// Options controls the doorbell-client process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings file.
	ConfigPath string
	// ServerURL overrides the server URL from the config.
	ServerURL string
	// AllowMultiple skips the single instance check.
	AllowMultiple bool
	// Player replaces the command-line audio player, e.g. in tests.
	Player Player
}

// wsConnector adapts the WebSocket dialer to the supervisor.
type wsConnector struct {
	dialer *ws.Dialer
}

func (c wsConnector) Connect(ctx context.Context) (Session, error) {
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// Run listens for rings and plays the configured clip until ctx is canceled
// or the server stays unreachable for the configured number of attempts.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "doorbell-client")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	settings := cfg.Client
	if opts.ServerURL != "" {
		settings.ServerURL = opts.ServerURL
	}

	if err = settings.Validate(); err != nil {
		return fmt.Errorf("validate client settings: %w", err)
	}

	if !opts.AllowMultiple {
		name, nameErr := currentExecutable()
		if nameErr != nil {
			return nameErr
		}

		if err = ensureSingleInstance(ps.Processes, os.Getpid(), name); err != nil {
			return err
		}
	}

	clipPlayer := opts.Player
	if clipPlayer == nil {
		p, playerErr := player.New(settings.PlayerCommand)
		if playerErr != nil {
			return fmt.Errorf("create player: %w", playerErr)
		}

		if err = p.Load(settings.ClipName, settings.ClipPath); err != nil {
			return err
		}

		clipPlayer = p
	}

	// Identify this host in the handshake so the server can log who listens.
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	dialer := ws.NewDialer(settings.ServerURL, actor, settings.HandshakeTimeout, settings.ReadTimeout)

	logger.InfoKV(ctx, "Doorbell client starting",
		"server_url", settings.ServerURL,
		"actor", actor.String(),
		"clip", settings.ClipPath,
		"max_attempts", settings.MaxAttempts,
		"retry_delay", settings.RetryDelay)

	supervisor := NewSupervisor(
		wsConnector{dialer: dialer},
		NewDispatcher(clipPlayer, settings.ClipName),
		RetryPolicy{
			Delay:       settings.RetryDelay,
			MaxAttempts: settings.MaxAttempts,
		},
	)

	if err = supervisor.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Doorbell client stopped", "error", err)
		return err
	}

	logger.Info(ctx, "Doorbell client stopped")

	return nil
}
