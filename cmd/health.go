package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/face-identify/internal/grpchealth"
	"github.com/example/face-identify/internal/logging"
)

var healthCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe the gRPC health service of a running server",
	Long: `Query grpc.health.v1.Health on --addr and exit non-zero unless the server
reports SERVING. Suitable as a container health probe.`,
	Args: cobra.NoArgs,
	RunE: runHealthcheck,
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().String("addr", "127.0.0.1:9090", "Address of the gRPC health service")
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	logger, err := logging.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	status, err := grpchealth.Check(context.Background(), mustGetString(cmd, "addr"), grpchealth.ServiceName, logger)
	if err != nil {
		return err
	}
	fmt.Println(status.String())
	if status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("service is %s", status)
	}
	return nil
}
