package status

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/doorbell/internal/config"
	"github.com/oshokin/doorbell/internal/service/server"
)

// startHealth serves a health server with the given sensor status.
func startHealth(t *testing.T, sensor healthpb.HealthCheckResponse_ServingStatus) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(server.SensorServiceName, sensor)

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	go func() {
		_ = grpcServer.Serve(lis)
	}()

	t.Cleanup(grpcServer.Stop)

	return lis.Addr().String()
}

// writeConfig saves a settings file pointing at the status address.
func writeConfig(t *testing.T, address string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(path, &config.Config{
		Client: config.Client{
			StatusAddress: address,
			CallTimeout:   time.Second,
		},
	}))

	return path
}

// linesByService indexes report lines by service name.
func linesByService(out string) map[string]string {
	result := make(map[string]string)

	for line := range strings.Lines(out) {
		name, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
		result[name] = rest
	}

	return result
}

// TestRun_Serving prints both services and succeeds when everything serves.
func TestRun_Serving(t *testing.T) {
	t.Parallel()

	address := startHealth(t, healthpb.HealthCheckResponse_SERVING)

	var out bytes.Buffer

	err := Run(context.Background(), &Options{
		ConfigPath: writeConfig(t, address),
		Output:     &out,
	})
	require.NoError(t, err)

	lines := linesByService(out.String())
	require.Contains(t, lines["server"], "SERVING")
	require.Contains(t, lines[server.SensorServiceName], "SERVING")
	require.NotContains(t, lines[server.SensorServiceName], "NOT_SERVING")
}

// TestRun_DegradedSensor fails when the sensor is not serving.
func TestRun_DegradedSensor(t *testing.T) {
	t.Parallel()

	address := startHealth(t, healthpb.HealthCheckResponse_NOT_SERVING)

	var out bytes.Buffer

	err := Run(context.Background(), &Options{
		ConfigPath:    writeConfig(t, "127.0.0.1:1"),
		StatusAddress: address, // Override config address.
		Output:        &out,
	})
	require.ErrorIs(t, err, ErrNotServing)
	require.Contains(t, linesByService(out.String())[server.SensorServiceName], "NOT_SERVING")
}

// TestRun_WatchReturnsOnCancel runs watch mode and cancels it.
func TestRun_WatchReturnsOnCancel(t *testing.T) {
	t.Parallel()

	address := startHealth(t, healthpb.HealthCheckResponse_SERVING)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- Run(ctx, &Options{
			ConfigPath:   writeConfig(t, address),
			Watch:        true,
			PollInterval: 20 * time.Millisecond,
			Output:       new(bytes.Buffer),
		})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	require.NoError(t, <-done)
}
