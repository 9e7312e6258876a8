// Package grpc provides the gRPC health endpoint shared by long-running
// processes.
package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Health is a gRPC server exposing only grpc.health.v1.Health.
type Health struct {
	server *gogrpc.Server
	status *health.Server
}

// NewHealth builds a traced health server reporting the overall status and
// each named service as SERVING.
func NewHealth(services ...string) *Health {
	server := gogrpc.NewServer(gogrpc.StatsHandler(otelgrpc.NewServerHandler()))
	status := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, status)
	status.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	for _, service := range services {
		status.SetServingStatus(service, grpc_health_v1.HealthCheckResponse_SERVING)
	}
	return &Health{server: server, status: status}
}

// SetServing updates the status of service ("" is the overall status).
func (h *Health) SetServing(service string, serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.status.SetServingStatus(service, status)
}

// Serve accepts connections on listener until the server stops.
func (h *Health) Serve(listener net.Listener) error {
	err := h.server.Serve(listener)
	if err == gogrpc.ErrServerStopped {
		return nil
	}
	return err
}

// GracefulStop reports NOT_SERVING to watchers and drains open calls.
func (h *Health) GracefulStop() {
	h.status.Shutdown()
	h.server.GracefulStop()
}

// Stop closes every connection immediately.
func (h *Health) Stop() {
	h.status.Shutdown()
	h.server.Stop()
}

// WaitForHealth blocks until the gRPC health check reports SERVING or the context ends.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	healthClient := grpc_health_v1.NewHealthClient(conn)
	backoff := 200 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		response, err := healthClient.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		if err == nil && response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
			return nil
		}
		if logf != nil {
			if err != nil {
				logf("waiting for gRPC health: %v", err)
			} else {
				logf("waiting for gRPC health: status %s", response.GetStatus().String())
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for gRPC health: %w", ctx.Err())
		case <-time.After(backoff):
		}

		if backoff < time.Second {
			backoff = min(backoff*2, time.Second)
		}
	}
}
