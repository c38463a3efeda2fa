package server

import (
	"context"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/doorbell/internal/api/ws"
	"github.com/oshokin/doorbell/internal/domain/doorbell"
	"github.com/oshokin/doorbell/internal/metrics"
)

// SensorServiceName is the health service name reporting sensor availability.
const SensorServiceName = "doorbell.sensor"

// service runs a notification channel for every accepted connection.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// state is the shared sensor state.
	state StateReader
	// opts holds the push cadence.
	opts ChannelOptions
	// metrics counts sessions and sent messages.
	metrics *metrics.Metrics
}

// newService creates the session service.
func newService(state StateReader, opts ChannelOptions, m *metrics.Metrics) *service {
	return &service{
		state:   state,
		opts:    opts,
		metrics: m,
	}
}

// Serve pushes notifications to conn until the session ends.
func (s *service) Serve(ctx context.Context, conn *ws.ServerConn) error {
	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()

	return NewChannel(s.state, conn, s.opts, s.metrics).Run(ctx)
}

// healthReporter mirrors sensor availability into the gRPC health service.
type healthReporter struct {
	server *health.Server
}

// newHealthReporter reports the server as serving and the sensor as not
// serving until the monitor acquires the pin.
func newHealthReporter() *healthReporter {
	server := health.NewServer()
	server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	server.SetServingStatus(SensorServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &healthReporter{server: server}
}

// SensorAvailable updates the sensor health status.
func (h *healthReporter) SensorAvailable(_ context.Context, available bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if available {
		status = healthpb.HealthCheckResponse_SERVING
	}

	h.server.SetServingStatus(SensorServiceName, status)
}

// SensorChanged is a no-op: transitions do not affect health.
func (h *healthReporter) SensorChanged(context.Context, doorbell.State) {}
