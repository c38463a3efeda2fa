package integration

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/doorbell/internal/config"
	"github.com/oshokin/doorbell/internal/domain/doorbell"
	"github.com/oshokin/doorbell/internal/sensor"
	"github.com/oshokin/doorbell/internal/service/server"
)

var errNoChip = errors.New("gpiochip0: no such device")

// reservePort picks a free localhost address for the test server.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// buttonDriver simulates a doorbell button wired active-low.
type buttonDriver struct {
	// pressed is the button position.
	pressed atomic.Bool
	// broken makes Acquire fail.
	broken bool
}

// Acquire returns a pin reading the button position.
func (d *buttonDriver) Acquire(int) (sensor.Pin, error) {
	if d.broken {
		return nil, errNoChip
	}

	return buttonPin{driver: d}, nil
}

// buttonPin reads Low while the button is pressed.
type buttonPin struct {
	driver *buttonDriver
}

func (p buttonPin) Read() (doorbell.Level, error) {
	if p.driver.pressed.Load() {
		return doorbell.Low, nil
	}

	return doorbell.High, nil
}

func (buttonPin) Close() error { return nil }

// testbed is a running doorbell-server with its settings.
type testbed struct {
	configPath    string
	serverURL     string
	statusAddress string
	driver        *buttonDriver
	stop          func()
}

// startServer runs doorbell-server with short intervals until the test ends or stop is called.
func startServer(t *testing.T, driver *buttonDriver, client config.Client) *testbed {
	t.Helper()

	listenAddress := reservePort(t)
	statusAddress := reservePort(t)
	configPath := filepath.Join(t.TempDir(), "doorbell-settings.yaml")

	client.ServerURL = "ws://" + listenAddress + "/doorbell"
	client.StatusAddress = statusAddress
	client.ClipPath = filepath.Join(t.TempDir(), "doorbell.mp3")

	require.NoError(t, config.Save(configPath, &config.Config{
		Server: config.Server{
			ListenAddress:    listenAddress,
			Path:             "/doorbell",
			MetricsPath:      "/metrics",
			StatusAddress:    statusAddress,
			PollInterval:     10 * time.Millisecond,
			SuppressInterval: 200 * time.Millisecond,
			IdleInterval:     50 * time.Millisecond,
			WriteTimeout:     time.Second,
		},
		Client: client,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{
			ConfigPath: configPath,
			Driver:     driver,
		})
	}()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", listenAddress, 50*time.Millisecond)
		if err != nil {
			return false
		}

		_ = conn.Close()

		return true
	}, 5*time.Second, 20*time.Millisecond)

	var once sync.Once

	stop := func() {
		once.Do(func() {
			cancel()
			require.NoError(t, <-done)
		})
	}

	t.Cleanup(stop)

	return &testbed{
		configPath:    configPath,
		serverURL:     client.ServerURL,
		statusAddress: statusAddress,
		driver:        driver,
		stop:          stop,
	}
}

// countingPlayer counts playbacks.
type countingPlayer struct {
	plays atomic.Int32
}

func (p *countingPlayer) Play(context.Context, string) error {
	p.plays.Add(1)
	return nil
}
