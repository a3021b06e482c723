package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/face-identify/internal/imagecheck"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image>",
	Short: "Identify the people in a local image",
	Long: `Run a local image through detection and identification and print the
matches as JSON, the same payload POST /getimg returns.

Example:
  face-identify identify ./party.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("cannot read image: %w", err)
	}
	if _, err := imagecheck.Validate(data); err != nil {
		return err
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	svc, closeAll, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeAll()

	requestID, report, err := svc.IdentifyImage(ctx, data)
	if err != nil {
		return fmt.Errorf("identification %s failed: %w", requestID, err)
	}
	return printJSON(report.Matches)
}
