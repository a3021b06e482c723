package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// MaxIdentifyBatch is the largest number of face IDs the identify call accepts.
const MaxIdentifyBatch = 10

// Unresolved identity policies.
const (
	UnresolvedDrop    = "drop"
	UnresolvedInclude = "include"
)

// Config holds every setting of the service and the CLI.
type Config struct {
	FaceAPI  FaceAPIConfig
	Pipeline PipelineConfig
	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Identity IdentityConfig
	LogLevel string
}

// FaceAPIConfig configures the Face API client and the person group used for identification.
type FaceAPIConfig struct {
	Key                 string
	BaseURL             string
	Timeout             time.Duration
	GroupID             string
	MaxCandidates       int
	ConfidenceThreshold float64 // 0 leaves the service default
}

// PipelineConfig tunes identify batching and the unresolved identity policy.
type PipelineConfig struct {
	BatchSize        int
	Concurrency      int
	UnresolvedPolicy string
}

// HTTPConfig configures the HTTP server, upload handling and the gRPC health listener.
type HTTPConfig struct {
	Addr            string
	GRPCAddr        string // empty disables the gRPC health service
	UploadDir       string
	MaxUploadSize   int64
	CORSOrigins     []string
	Gzip            bool
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects the recognition log database.
type DatabaseConfig struct {
	Driver string // postgres, mysql or sqlite
	DSN    string // empty disables the recognition log
}

// RedisConfig configures the person name cache.
type RedisConfig struct {
	Addr     string // empty disables the person name cache
	CacheTTL time.Duration
}

// IdentityConfig points at the external identity table.
type IdentityConfig struct {
	Path string // empty uses the embedded table
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		FaceAPI: FaceAPIConfig{
			Key:                 os.Getenv("FACE_API_KEY"),
			BaseURL:             envString("FACE_API_BASE_URL", "https://westus.api.cognitive.microsoft.com/face/v1.0"),
			Timeout:             envDuration("FACE_API_TIMEOUT", 15*time.Second),
			GroupID:             envString("FACE_GROUP_ID", "friends"),
			MaxCandidates:       envInt("FACE_MAX_CANDIDATES", 1),
			ConfidenceThreshold: envFloat("FACE_CONFIDENCE_THRESHOLD", 0),
		},
		Pipeline: PipelineConfig{
			BatchSize:        envInt("IDENTIFY_BATCH_SIZE", MaxIdentifyBatch),
			Concurrency:      envInt("IDENTIFY_CONCURRENCY", 4),
			UnresolvedPolicy: strings.ToLower(envString("UNRESOLVED_POLICY", UnresolvedDrop)),
		},
		HTTP: HTTPConfig{
			Addr:            envString("HTTP_ADDR", ":8080"),
			GRPCAddr:        os.Getenv("GRPC_ADDR"),
			UploadDir:       envString("UPLOAD_DIR", "media"),
			MaxUploadSize:   int64(envInt("MAX_UPLOAD_SIZE", 6<<20)),
			CORSOrigins:     envList("CORS_ORIGINS"),
			Gzip:            envBool("HTTP_GZIP", true),
			ShutdownTimeout: envDuration("HTTP_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(envString("DATABASE_DRIVER", "postgres")),
			DSN:    os.Getenv("DATABASE_DSN"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			CacheTTL: envDuration("PERSON_CACHE_TTL", 10*time.Minute),
		},
		Identity: IdentityConfig{
			Path: os.Getenv("IDENTITY_TABLE_PATH"),
		},
		LogLevel: os.Getenv("LOG_LEVEL"),
	}
}

// Validate reports settings that would make the service unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.FaceAPI.Key == "" {
		errs = append(errs, errors.New("FACE_API_KEY environment variable is required"))
	}
	if c.FaceAPI.BaseURL == "" {
		errs = append(errs, errors.New("FACE_API_BASE_URL must not be empty"))
	}
	if c.FaceAPI.GroupID == "" {
		errs = append(errs, errors.New("FACE_GROUP_ID must not be empty"))
	}
	if c.Pipeline.BatchSize > MaxIdentifyBatch {
		errs = append(errs, fmt.Errorf("IDENTIFY_BATCH_SIZE must be at most %d, got %d", MaxIdentifyBatch, c.Pipeline.BatchSize))
	}
	if t := c.FaceAPI.ConfidenceThreshold; math.IsNaN(t) || t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("FACE_CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.FaceAPI.ConfidenceThreshold))
	}
	switch c.Pipeline.UnresolvedPolicy {
	case UnresolvedDrop, UnresolvedInclude:
	default:
		errs = append(errs, fmt.Errorf("UNRESOLVED_POLICY must be %q or %q, got %q", UnresolvedDrop, UnresolvedInclude, c.Pipeline.UnresolvedPolicy))
	}
	if c.Database.DSN != "" {
		switch c.Database.Driver {
		case "postgres", "mysql", "sqlite":
		default:
			errs = append(errs, fmt.Errorf("DATABASE_DRIVER %q is not supported", c.Database.Driver))
		}
	}
	return errors.Join(errs...)
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
