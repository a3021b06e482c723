package grpchealth

import (
	"context"
	"net"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startBufconn(t *testing.T) (*Server, grpc.DialOption) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(zap.NewNop())
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	return srv, dialer
}

func TestCheckReportsServingStatus(t *testing.T) {
	srv, dialer := startBufconn(t)
	ctx := context.Background()

	status, err := Check(ctx, "bufnet", ServiceName, zap.NewNop(), dialer)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING before startup, got %v", status)
	}

	srv.SetServing(true)
	for _, service := range []string{"", ServiceName} {
		status, err := Check(ctx, "bufnet", service, zap.NewNop(), dialer)
		if err != nil {
			t.Fatalf("Check(%q) failed: %v", service, err)
		}
		if status != healthpb.HealthCheckResponse_SERVING {
			t.Fatalf("Check(%q): expected SERVING, got %v", service, status)
		}
	}
}

func TestCheckUnknownService(t *testing.T) {
	_, dialer := startBufconn(t)

	if _, err := Check(context.Background(), "bufnet", "other", zap.NewNop(), dialer); err == nil {
		t.Fatal("expected NotFound error for unregistered service")
	}
}
