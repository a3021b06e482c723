package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/example/face-identify/internal/config"
	"github.com/example/face-identify/internal/faceapi"
	"github.com/example/face-identify/internal/logging"
)

// setup loads and validates the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, logger, nil
}

func newFaceClient(cfg *config.Config, logger *zap.Logger) (*faceapi.Client, error) {
	client, err := faceapi.New(faceapi.Config{
		Key:                 cfg.FaceAPI.Key,
		BaseURL:             cfg.FaceAPI.BaseURL,
		Timeout:             cfg.FaceAPI.Timeout,
		MaxCandidates:       cfg.FaceAPI.MaxCandidates,
		ConfidenceThreshold: cfg.FaceAPI.ConfidenceThreshold,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create face client: %w", err)
	}
	return client, nil
}

// groupFlag returns --group, falling back to FACE_GROUP_ID.
func groupFlag(cfgGroup, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return cfgGroup
}

// describeNotFound replaces a 404 from the service with a message naming what
// is missing. Other errors pass through.
func describeNotFound(err error, format string, args ...any) error {
	if faceapi.IsNotFound(err) {
		return fmt.Errorf(format+" does not exist", args...)
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
