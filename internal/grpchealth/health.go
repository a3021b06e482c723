// Package grpchealth exposes the standard gRPC health service for the
// identification server and a client to probe it.
package grpchealth

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/face-identify/internal/logging"
)

// ServiceName is the health service name reported next to the overall status.
const ServiceName = "face-identify"

// Server serves grpc.health.v1.Health.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewServer returns a server reporting NOT_SERVING until SetServing is called.
func NewServer(logger *zap.Logger) *Server {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{grpc: gs, health: hs, logger: logger.Named("grpc_health")}
	s.SetServing(false)
	return s
}

// SetServing flips the overall and named service status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks until Stop is called or the listener fails.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc health service listening", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight checks.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Check dials addr and returns the status reported for service.
func Check(ctx context.Context, addr, service string, logger *zap.Logger, opts ...grpc.DialOption) (healthpb.HealthCheckResponse_ServingStatus, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)
	conn, err := grpc.DialContext(dialCtx, addr, dialOpts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpchealth.dial", "", err)
		logger.Error("failed to dial health service", zap.Error(wrapped), zap.String("addr", addr))
		return healthpb.HealthCheckResponse_UNKNOWN, wrapped
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		wrapped := logging.NewOperationError("grpchealth.check", "", err)
		logger.Error("health check failed", zap.Error(wrapped), zap.String("addr", addr))
		return healthpb.HealthCheckResponse_UNKNOWN, wrapped
	}
	return resp.GetStatus(), nil
}
