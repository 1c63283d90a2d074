package observability

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer serves the standard gRPC health protocol, mirroring the HTTP
// readiness checks so orchestrators that only speak gRPC can probe the service.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	checks []HealthCheck
}

// NewHealthServer creates a gRPC health server for the given checks.
func NewHealthServer(checks ...HealthCheck) *HealthServer {
	hs := &HealthServer{
		server: grpc.NewServer(),
		health: health.NewServer(),
		checks: checks,
	}
	healthpb.RegisterHealthServer(hs.server, hs.health)
	return hs
}

// Refresh runs the checks once and publishes the result, both for the overall
// service ("") and per dependency.
func (hs *HealthServer) Refresh(ctx context.Context) {
	deps, ok := CheckDependencies(ctx, hs.checks)
	for name, dep := range deps {
		hs.health.SetServingStatus(name, servingStatus(dep.Status == "healthy"))
	}
	hs.health.SetServingStatus("", servingStatus(ok))
}

// Serve refreshes readiness every interval and serves on addr until ctx is done.
func (hs *HealthServer) Serve(ctx context.Context, addr string, interval time.Duration) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			hs.Refresh(checkCtx)
			cancel()

			select {
			case <-ctx.Done():
				hs.health.Shutdown()
				hs.server.GracefulStop()
				return
			case <-ticker.C:
			}
		}
	}()

	return hs.server.Serve(lis)
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
